package devserver

import (
	"crypto/sha1"
	"encoding/hex"
)

func contentHash(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
