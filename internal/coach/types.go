package coach

import (
	"fmt"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/rubric"
)

// Connection identifies where a call goes. Credential holds an API key, or
// for Ollama an optional server URL.
type Connection struct {
	Backend    backend.Identity
	Credential string
	Model      string
}

// Question is one interview question in a plan. IDs run 1..n in interview
// order.
type Question struct {
	ID                 int    `json:"id"`
	Category           string `json:"category"`
	Question           string `json:"question"`
	WhatGreatLooksLike string `json:"what_great_looks_like"`
	Difficulty         string `json:"difficulty"`
}

// SessionPlan is produced once per coaching session.
type SessionPlan struct {
	CandidateName  string     `json:"candidate_name"`
	TargetRole     string     `json:"target_role"`
	CompanyHints   string     `json:"company_hints"`
	KeyStrengths   []string   `json:"key_strengths"`
	KeyGaps        []string   `json:"key_gaps"`
	OpeningMessage string     `json:"opening_message"`
	Questions      []Question `json:"question_pool"`
}

// Question returns the question with id, or false.
func (p *SessionPlan) Question(id int) (Question, bool) {
	for _, q := range p.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// GradeRecord is the normalized grade of one answer. RubricScores is keyed by
// the labels in RubricLabels; STARScores is the same four values mapped
// positionally onto situation/task/action/result.
type GradeRecord struct {
	Score                int            `json:"score"`
	Grade                string         `json:"grade"`
	RubricType           rubric.Type    `json:"rubric_type"`
	RubricLabels         []string       `json:"rubric_labels"`
	RubricScores         map[string]int `json:"rubric_scores"`
	STARScores           map[string]int `json:"star_scores"`
	WhatWorked           []string       `json:"what_worked"`
	WhatMissed           []string       `json:"what_missed"`
	CoachReaction        string         `json:"coach_reaction"`
	ModelAnswer          string         `json:"model_answer"`
	ModelAnswerBreakdown string         `json:"model_answer_breakdown"`
	FollowUpQuestion     string         `json:"follow_up_question"`
	Encouragement        string         `json:"encouragement"`
}

// AnsweredQuestion is one graded item of a session, the input to the report.
type AnsweredQuestion struct {
	QuestionID int         `json:"question_id"`
	Question   string      `json:"question"`
	Category   string      `json:"category"`
	Answer     string      `json:"answer"`
	Grade      GradeRecord `json:"grade"`
}

// Improvement is one prioritized area to work on.
type Improvement struct {
	Area  string `json:"area"`
	Issue string `json:"issue"`
	Fix   string `json:"fix"`
}

// SessionReport is produced once after the session's questions are answered.
type SessionReport struct {
	OverallScore         int            `json:"overall_score"`
	OverallGrade         string         `json:"overall_grade"`
	Tier                 string         `json:"tier"`
	Headline             string         `json:"headline"`
	TopStrengths         []string       `json:"top_strengths"`
	PriorityImprovements []Improvement  `json:"priority_improvements"`
	CategoryScores       map[string]int `json:"category_scores"`
	ActionPlan           []string       `json:"action_plan"`
	PersonalNote         string         `json:"personal_note"`
}

// Message is one chat turn. Role is "user" for the candidate and
// "assistant" for the coach.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PlanBuildError is returned when the model's plan has no usable questions.
type PlanBuildError struct {
	Reason string
}

func (e *PlanBuildError) Error() string {
	return fmt.Sprintf("could not build an interview plan: %s", e.Reason)
}
