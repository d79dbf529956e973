package journey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/nvandessel/journeygraph/internal/store"
)

// ETag returns a strong entity tag for g, derived from its compact JSON
// encoding. The empty graph has a stable tag.
func ETag(g store.Graph) string {
	data, err := json.Marshal(g.Normalize())
	if err != nil {
		return `""`
	}
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// MatchETag reports whether an If-Match header value matches the current
// tag. It accepts "*" and comma-separated lists. Comparison is strong, so
// weak tags (W/"...") never match.
func MatchETag(ifMatch, current string) bool {
	ifMatch = strings.TrimSpace(ifMatch)
	if ifMatch == "*" {
		return true
	}
	for _, tag := range strings.Split(ifMatch, ",") {
		tag = strings.TrimSpace(tag)
		if strings.HasPrefix(tag, "W/") {
			continue
		}
		if tag == current {
			return true
		}
	}
	return false
}
