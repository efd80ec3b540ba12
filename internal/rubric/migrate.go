package rubric

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Shape tags the score layout found in a grading response.
type Shape int

const (
	// ShapeMissing means the response carried no usable scores.
	ShapeMissing Shape = iota
	// ShapeRubric is the current layout: "rubric_scores" keyed by label.
	ShapeRubric
	// ShapeLegacySTAR is the older fixed "star_scores" layout with
	// situation, task, action and result keys.
	ShapeLegacySTAR
)

func (s Shape) String() string {
	switch s {
	case ShapeRubric:
		return "rubric"
	case ShapeLegacySTAR:
		return "legacy_star"
	default:
		return "missing"
	}
}

// Entry is one score as the model wrote it. Name is empty for array layouts.
type Entry struct {
	Name  string
	Value float64
}

// Raw is the tagged score payload of one grading response, in the order the
// model emitted it.
type Raw struct {
	Shape   Shape
	Entries []Entry
}

// ParseRaw inspects the two possible score fields of a grading response.
// rubric_scores wins when it holds any numbers; star_scores is the fallback.
func ParseRaw(rubricScores, starScores json.RawMessage) Raw {
	if entries := decodeEntries(rubricScores); len(entries) > 0 {
		return Raw{Shape: ShapeRubric, Entries: entries}
	}
	if entries := decodeEntries(starScores); len(entries) > 0 {
		return Raw{Shape: ShapeLegacySTAR, Entries: entries}
	}
	return Raw{Shape: ShapeMissing}
}

// Scores is the canonical rubric result for one answer.
type Scores struct {
	Labels []string       // exactly four, from the rubric type
	Values map[string]int // keyed by label, each in [0, MaxDimensionScore]
	// STARView maps the same four values positionally onto
	// situation/task/action/result for consumers that predate named rubrics.
	STARView map[string]int
}

// Ordered returns the values in label order.
func (s Scores) Ordered() []int {
	out := make([]int, len(s.Labels))
	for i, l := range s.Labels {
		out[i] = s.Values[l]
	}
	return out
}

// Total sums the four dimensions.
func (s Scores) Total() int {
	total := 0
	for _, v := range s.Values {
		total += v
	}
	return total
}

// Migrate maps raw onto the dimensions of t. Entries are matched to
// dimensions by label or key, ignoring case and punctuation; dimensions left
// unmatched take the remaining entries in emission order, so a legacy STAR
// layout on an opener question still lands its four numbers. Missing values
// are zero and every value is clamped to [0, MaxDimensionScore].
func Migrate(t Type, raw Raw) Scores {
	dims := t.Dimensions()
	values := make([]int, len(dims))
	matched := make([]bool, len(dims))
	used := make([]bool, len(raw.Entries))

	for i, d := range dims {
		for j, e := range raw.Entries {
			if used[j] || e.Name == "" {
				continue
			}
			n := normalizeName(e.Name)
			if n == normalizeName(d.Label) || n == normalizeName(d.Key) {
				values[i] = clamp(e.Value)
				matched[i] = true
				used[j] = true
				break
			}
		}
	}

	next := 0
	for i := range dims {
		if matched[i] {
			continue
		}
		for next < len(raw.Entries) && used[next] {
			next++
		}
		if next == len(raw.Entries) {
			break
		}
		values[i] = clamp(raw.Entries[next].Value)
		used[next] = true
	}

	s := Scores{
		Labels:   make([]string, len(dims)),
		Values:   make(map[string]int, len(dims)),
		STARView: make(map[string]int, len(dims)),
	}
	star := dimensions[STAR]
	for i, d := range dims {
		s.Labels[i] = d.Label
		s.Values[d.Label] = values[i]
		s.STARView[star[i].Key] = values[i]
	}
	return s
}

// decodeEntries reads an object or array of numbers while keeping emission
// order. Numeric strings such as "18" or "18/25" are accepted; other values
// are skipped.
func decodeEntries(raw json.RawMessage) []Entry {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}

	var entries []Entry
	for dec.More() {
		name := ""
		if delim == '{' {
			keyTok, err := dec.Token()
			if err != nil {
				return entries
			}
			name, _ = keyTok.(string)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return entries
		}
		if f, ok := toNumber(v); ok {
			entries = append(entries, Entry{Name: name, Value: f})
		}
	}
	return entries
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if i := strings.IndexByte(s, '/'); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clamp(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	v := int(math.Round(f))
	if v < 0 {
		return 0
	}
	if v > MaxDimensionScore {
		return MaxDimensionScore
	}
	return v
}
