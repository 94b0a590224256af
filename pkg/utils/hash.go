package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex encoded sha256 hash of arg.
// Comparing hashes of tokens keeps the comparison independent of the
// token length.
func HashToken(arg string) string {
	hasher := sha256.New()
	hasher.Write([]byte(arg))
	return hex.EncodeToString(hasher.Sum(nil))
}
