// Package jsonrepair pulls a single JSON value out of free-form model output.
//
// Models wrap JSON in prose, code fences and typographic quotes, and small
// local models regularly stop mid-object when they run out of tokens. Locate
// finds the first object or array, and when strict parsing fails it closes
// dangling strings and brackets before trying again. Repair restores
// syntactic validity only; it cannot recover values the model never wrote.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const snippetLimit = 300

// MalformedOutputError is returned when no JSON value can be located in the
// model output, or when the located value cannot be parsed even after repair.
type MalformedOutputError struct {
	Reason  string
	Snippet string // leading part of the offending text, for logs
	Wrapped error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("the model returned output that could not be read as JSON (%s)", e.Reason)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Wrapped
}

var (
	fenceRe      = regexp.MustCompile("```(?:json|JSON)?\\s*([\\s\\S]*?)```")
	quoteReplace = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// Extract locates, repairs if needed, and decodes the first JSON value in raw.
// Objects decode to map[string]any and arrays to []any.
func Extract(raw string) (any, error) {
	var v any
	if err := ExtractInto(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ExtractInto is Extract decoding into v. A type mismatch between the JSON
// value and v is reported as a MalformedOutputError.
func ExtractInto(raw string, v any) error {
	text, err := Locate(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &MalformedOutputError{
			Reason:  "JSON does not match the expected shape",
			Snippet: truncate(text, snippetLimit),
			Wrapped: err,
		}
	}
	return nil
}

// Locate returns the text of the first syntactically valid JSON value in raw,
// repairing a truncated or slightly broken candidate when necessary.
func Locate(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &MalformedOutputError{Reason: "empty response from model"}
	}

	text := quoteReplace.Replace(raw)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		if fenced := strings.TrimSpace(m[1]); strings.ContainsAny(fenced, "{[") {
			text = fenced
		}
	}

	start, open, close := firstOpener(text)
	if start < 0 {
		return "", &MalformedOutputError{
			Reason:  "no JSON value in response",
			Snippet: truncate(text, snippetLimit),
		}
	}

	return parseOrRepair(scanValue(text, start, open, close))
}

// firstOpener reports the index of whichever of '{' or '[' appears first.
func firstOpener(text string) (int, byte, byte) {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	switch {
	case obj < 0 && arr < 0:
		return -1, 0, 0
	case arr < 0 || (obj >= 0 && obj < arr):
		return obj, '{', '}'
	default:
		return arr, '[', ']'
	}
}

// scanValue walks forward from start until the opening bracket is balanced,
// ignoring brackets inside string literals. When the text ends first the
// remainder of the text is the candidate.
func scanValue(text string, start int, open, close byte) string {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

func parseOrRepair(candidate string) (string, error) {
	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	repaired := Repair(candidate)
	if json.Valid([]byte(repaired)) {
		return repaired, nil
	}

	// Arrays-before-objects is wrong for shapes like [{"a":[1; close in
	// nesting order as a second attempt.
	nested := closeNested(candidate)
	if json.Valid([]byte(nested)) {
		return nested, nil
	}

	var v any
	err := json.Unmarshal([]byte(repaired), &v)
	return "", &MalformedOutputError{
		Reason:  "JSON could not be repaired",
		Snippet: truncate(candidate, snippetLimit),
		Wrapped: err,
	}
}

// Repair closes an unterminated string, drops one trailing comma, then
// appends a ']' for every unclosed array followed by a '}' for every unclosed
// object. Valid JSON is returned unchanged. This is a heuristic tuned to
// output truncated inside a trailing list; it does not guarantee the result
// parses.
func Repair(s string) string {
	st := scanState(s)

	if st.inString {
		if st.escaped {
			s = s[:len(s)-1]
		}
		s += `"`
	}
	s = stripTrailingComma(s)

	if st.brackets > 0 {
		s += strings.Repeat("]", st.brackets)
	}
	if st.braces > 0 {
		s += strings.Repeat("}", st.braces)
	}
	return s
}

type repairState struct {
	braces   int
	brackets int
	inString bool
	escaped  bool
	stack    []byte
}

func scanState(s string) repairState {
	var st repairState
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if st.escaped {
			st.escaped = false
			continue
		}
		if ch == '\\' && st.inString {
			st.escaped = true
			continue
		}
		if ch == '"' {
			st.inString = !st.inString
			continue
		}
		if st.inString {
			continue
		}
		switch ch {
		case '{':
			st.braces++
			st.stack = append(st.stack, '}')
		case '}':
			st.braces--
			st.stack = popIf(st.stack, '}')
		case '[':
			st.brackets++
			st.stack = append(st.stack, ']')
		case ']':
			st.brackets--
			st.stack = popIf(st.stack, ']')
		}
	}
	return st
}

func popIf(stack []byte, want byte) []byte {
	if n := len(stack); n > 0 && stack[n-1] == want {
		return stack[:n-1]
	}
	return stack
}

// closeNested is Repair with closers emitted innermost-first.
func closeNested(s string) string {
	st := scanState(s)
	if st.inString {
		if st.escaped {
			s = s[:len(s)-1]
		}
		s += `"`
	}
	s = stripTrailingComma(s)
	for i := len(st.stack) - 1; i >= 0; i-- {
		s += string(st.stack[i])
	}
	return s
}

func stripTrailingComma(s string) string {
	trimmed := strings.TrimRightFunc(s, unicode.IsSpace)
	if strings.HasSuffix(trimmed, ",") {
		return trimmed[:len(trimmed)-1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
