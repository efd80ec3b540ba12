// Package rubric picks the grading rubric for a question category and maps
// whatever score layout a model produced onto that rubric.
package rubric

import "strings"

// Type is one of the three rubric families.
type Type string

const (
	Opener  Type = "opener"
	Closing Type = "closing"
	STAR    Type = "star"
)

// MaxDimensionScore bounds every dimension value.
const MaxDimensionScore = 25

// CategoryType maps a question category to its rubric. Matching ignores case
// and surrounding space; anything that is not an opener or closing question,
// including custom categories, is graded as a STAR answer.
func CategoryType(category string) Type {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "opener":
		return Opener
	case "closing":
		return Closing
	default:
		return STAR
	}
}

// Dimension is one named 0-25 scoring axis.
type Dimension struct {
	Key   string // snake_case, as older responses and prompts use
	Label string
	Hint  string // what a full score looks like
}

var dimensions = map[Type][]Dimension{
	Opener: {
		{Key: "narrative_arc", Label: "Narrative Arc", Hint: "a clear past, present and future story"},
		{Key: "relevant_experience", Label: "Relevant Experience", Hint: "highlights the experience that matters for this role"},
		{Key: "motivation_fit", Label: "Motivation & Fit", Hint: "explains why this role and company"},
		{Key: "delivery_confidence", Label: "Delivery & Confidence", Hint: "concise, confident, about 90 seconds"},
	},
	Closing: {
		{Key: "role_relevance", Label: "Role Relevance", Hint: "questions tie back to the actual role"},
		{Key: "company_research", Label: "Company Research", Hint: "shows homework on the company"},
		{Key: "strategic_thinking", Label: "Strategic Thinking", Hint: "asks about priorities, success measures or direction"},
		{Key: "interview_intelligence", Label: "Interview Intelligence", Hint: "reads the room and avoids salary or perks first"},
	},
	STAR: {
		{Key: "situation", Label: "Situation", Hint: "sets specific context briefly"},
		{Key: "task", Label: "Task", Hint: "makes their own responsibility clear"},
		{Key: "action", Label: "Action", Hint: "concrete steps they personally took"},
		{Key: "result", Label: "Result", Hint: "measurable outcome and what they learned"},
	},
}

// Dimensions returns the four axes for t in display order.
func (t Type) Dimensions() []Dimension {
	d, ok := dimensions[t]
	if !ok {
		d = dimensions[STAR]
	}
	return append([]Dimension(nil), d...)
}

// Labels returns the display labels for t in order.
func (t Type) Labels() []string {
	dims := t.Dimensions()
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.Label
	}
	return out
}

// Persona is the framing used when grading an answer of type t.
func (t Type) Persona() string {
	switch t {
	case Opener:
		return "You are Coach Alex, a warm but honest interview coach. This is an opening " +
			"\"tell me about yourself\" question: judge the story the candidate tells about " +
			"themselves. There is no task or measurable result to score here."
	case Closing:
		return "You are Coach Alex, a warm but honest interview coach. This is the closing " +
			"question where the candidate asks the interviewer questions: judge the quality " +
			"of what they ask, not a past experience."
	default:
		return "You are Coach Alex, a warm but honest interview coach. Judge this behavioral " +
			"answer with the STAR method: Situation, Task, Action, Result."
	}
}

// TipAngle is the coaching focus for a pre-answer tip.
func (t Type) TipAngle() string {
	switch t {
	case Opener:
		return "Help them shape a 60 to 90 second past, present and future story that lands on why this role."
	case Closing:
		return "Suggest two specific, researched questions they could ask, and what to avoid asking first."
	default:
		return "Show how to structure the answer with STAR, pointing to a concrete example from their background."
	}
}
