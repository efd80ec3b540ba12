package id

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID creates a unique 16-character lowercase hex ID from a random
// UUID.
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Valid reports whether s has the shape GenerateID produces.
func Valid(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
