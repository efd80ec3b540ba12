package coach

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Models are loose about scalar types: scores arrive as 82, 82.5 or "82/100",
// lists arrive as a single string. These types accept the variants so a
// usable answer is not thrown away over formatting.

// flexInt decodes a JSON number or numeric string. Set reports presence.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = flexInt{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if v, err := n.Float64(); err == nil {
			*f = flexInt{Value: int(math.Round(v)), Set: true}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt{Value: int(math.Round(v)), Set: true}
	}
	return nil
}

// flexStrings decodes an array of strings or a single string. Non-string
// array members are dropped, as are blank entries.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	*f = nil
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		if s := strings.TrimSpace(single); s != "" {
			*f = flexStrings{s}
		}
		return nil
	}
	var many []any
	if err := json.Unmarshal(b, &many); err != nil {
		return nil
	}
	for _, item := range many {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			*f = append(*f, strings.TrimSpace(s))
		}
	}
	return nil
}

// flexText decodes a string, or an array of strings joined by spaces.
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	var parts flexStrings
	if err := parts.UnmarshalJSON(b); err != nil {
		return err
	}
	*f = flexText(strings.Join(parts, " "))
	return nil
}

func (f flexText) String() string {
	return strings.TrimSpace(string(f))
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
