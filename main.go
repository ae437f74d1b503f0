package main

import "peaque.dev/peaque/cmd"

func main() {
	cmd.Execute()
}
