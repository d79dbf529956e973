// Package sanitize cleans client- and operator-supplied identifiers before
// they reach logs, storage keys or the filesystem.
package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxRequestIDLength is the longest request ID kept from a client header.
const MaxRequestIDLength = 128

// MaxNameLength is the maximum allowed length for document names.
const MaxNameLength = 80

var (
	reRepeatedHyphens     = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// RequestID returns a client-supplied request ID reduced to
// [a-zA-Z0-9-_.:] and at most MaxRequestIDLength characters. An empty
// result means the caller should generate its own ID.
func RequestID(input string) string {
	s := keep(input, func(r rune) bool {
		return isAlnum(r) || r == '-' || r == '_' || r == '.' || r == ':'
	})
	if len(s) > MaxRequestIDLength {
		s = s[:MaxRequestIDLength]
	}
	return s
}

// DocumentName sanitizes a graph document name used as a sqlite row key or
// redis key suffix. Only [a-zA-Z0-9-_/] survive, repeated hyphens and
// underscores are collapsed, and the result is at most MaxNameLength long.
func DocumentName(input string) string {
	if input == "" {
		return ""
	}

	s := keep(input, func(r rune) bool {
		return isAlnum(r) || r == '-' || r == '_' || r == '/'
	})
	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")

	// Truncate rune-safe; all kept runes are ASCII but input may not be.
	if utf8.RuneCountInString(s) > MaxNameLength {
		runes := []rune(s)
		s = string(runes[:MaxNameLength])
	}
	return s
}

// FilePath strips control characters from a path and cleans it.
func FilePath(input string) string {
	if input == "" {
		return ""
	}
	return filepath.Clean(stripControlChars(input))
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func keep(s string, allowed func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripControlChars removes ASCII control characters (0x00-0x1F) and DEL.
func stripControlChars(s string) string {
	return keep(s, func(r rune) bool {
		return r >= 0x20 && r != 0x7F
	})
}
