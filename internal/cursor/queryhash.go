package cursor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashQuery derives a stable QueryHash from the ordered parts of a listing
// request (kind, scope, filters). Callers must pass parts in a consistent
// order so the same logical listing always hashes the same.
func HashQuery(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s|", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
