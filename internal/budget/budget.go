// Package budget trims free-text context to a backend-appropriate size and
// holds the per-task character and token limits for each backend class.
package budget

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	TruncationMarker = "\n[truncated]"
	ElisionMarker    = "\n[...]\n"
)

// Class groups backends by how much context they can afford.
type Class int

const (
	// ClassCloud backends have large context windows and follow format
	// instructions well.
	ClassCloud Class = iota
	// ClassLocal backends run on the user's machine; every prompt character
	// costs prefill time and every output token costs generation time.
	ClassLocal
)

func (c Class) String() string {
	switch c {
	case ClassLocal:
		return "local"
	default:
		return "cloud"
	}
}

// Mode is the trimming strategy for a class.
func (c Class) Mode() Mode {
	if c == ClassLocal {
		return ModeHeadTail
	}
	return ModeHead
}

// Mode selects how Trim shortens text.
type Mode int

const (
	// ModeHead keeps the first limit characters and appends TruncationMarker.
	ModeHead Mode = iota
	// ModeHeadTail keeps limit/2 characters from each end around ElisionMarker.
	// Resumes front-load identity while conversations back-load relevance.
	ModeHeadTail
)

// Trim shortens text to limit characters (runes) using mode. Text within the
// limit is returned unchanged; a non-positive limit disables trimming. In
// head-tail mode blank text trims to "".
func Trim(text string, limit int, mode Mode) string {
	if mode == ModeHeadTail && strings.TrimSpace(text) == "" {
		return ""
	}
	if limit <= 0 || len(text) <= limit || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	if mode == ModeHeadTail {
		half := limit / 2
		return string(runes[:half]) + ElisionMarker + string(runes[len(runes)-half:])
	}
	return string(runes[:limit]) + TruncationMarker
}

// BrevityHint returns a word-limit instruction for local backends and "" for
// cloud backends, which follow length guidance without it.
func BrevityHint(c Class, words int) string {
	if c != ClassLocal || words <= 0 {
		return ""
	}
	return fmt.Sprintf("\nIMPORTANT: Keep every field under %d words. Be concise.", words)
}
