// Package slug generates the short public identifiers embedded in QR codes.
package slug

import (
	"strings"

	"github.com/google/uuid"
)

// Length is the fixed number of characters in a slug
const Length = 8

// Source produces candidate slugs
type Source func() string

// Generate returns the first eight hex characters of a random UUIDv4.
func Generate() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id[:Length]
}

// IsValid reports whether s has the shape of a generated slug.
func IsValid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		if !isURLSafe(r) {
			return false
		}
	}
	return true
}

func isURLSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}
