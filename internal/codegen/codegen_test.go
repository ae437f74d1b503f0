package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/codegen"
)

func TestImportSetRendersSortedAndDeduped(t *testing.T) {
	s := codegen.NewImportSet()
	s.Named("/@src/src/api/users/route", "GET", "GET")
	s.Named("/@src/src/api/users/route", "POST", "POST")
	s.Default("/@src/src/pages/home/page", "HomePage")
	s.SideEffect("/@src/src/startup")

	out := s.Render()
	require.Equal(t, []string{
		`import { GET, POST } from "/@src/src/api/users/route";`,
		`import HomePage from "/@src/src/pages/home/page";`,
		`import "/@src/src/startup";`,
	}, out)
}

func TestImportSetAliasesNamedBindings(t *testing.T) {
	s := codegen.NewImportSet()
	s.Named("/@src/src/jobs/cleanup", "default", "cleanupJob")
	out := s.Render()
	require.Equal(t, []string{`import { default as cleanupJob } from "/@src/src/jobs/cleanup";`}, out)
}

func TestBuilderIsDeterministicAcrossRuns(t *testing.T) {
	build := func() string {
		b := codegen.New()
		b.Imports().Default("/@src/src/pages/home/page", "HomePage")
		b.Line("const server = createServer();")
		b.Block("server.get(\"/\", (req, res) => {", func() {
			b.Line("res.send(render(HomePage));")
		}, "});")
		return b.String()
	}

	first := build()
	second := build()
	require.Equal(t, first, second)
	require.Contains(t, first, "import HomePage from \"/@src/src/pages/home/page\";")
	require.Contains(t, first, "  res.send(render(HomePage));")
}
