package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/budget"
	"github.com/interviewcoach/backend/internal/jsonrepair"
	"github.com/interviewcoach/backend/internal/rubric"
)

// MaxAnswerChars caps the candidate answer sent for grading.
const MaxAnswerChars = 800

// GradeInput is one answer to grade. Resume and JobDescription are optional.
type GradeInput struct {
	Question       string
	Category       string
	Answer         string
	Resume         string
	JobDescription string
}

type gradeWire struct {
	Score                flexInt         `json:"score"`
	Grade                string          `json:"grade"`
	RubricScores         json.RawMessage `json:"rubric_scores"`
	STARScores           json.RawMessage `json:"star_scores"`
	WhatWorked           flexStrings     `json:"what_worked"`
	WhatMissed           flexStrings     `json:"what_missed"`
	CoachReaction        flexText        `json:"coach_reaction"`
	ModelAnswer          flexText        `json:"model_answer"`
	ModelAnswerBreakdown flexText        `json:"model_answer_breakdown"`
	FollowUpQuestion     flexText        `json:"follow_up_question"`
	Encouragement        flexText        `json:"encouragement"`
}

// GradeAnswer grades one answer with the rubric for its category.
func (c *Coach) GradeAnswer(ctx context.Context, conn Connection, in GradeInput) (*GradeRecord, error) {
	class, err := c.class(conn)
	if err != nil {
		return nil, err
	}
	kind := rubric.CategoryType(in.Category)
	r, j := c.contextBlock(class, budget.TaskGrade, in.Resume, in.JobDescription)
	prompt := gradePrompt(kind, in, r, j, c.budgets.Brevity(class, budget.TaskGrade))

	var wire gradeWire
	decode := func(text string) error {
		wire = gradeWire{}
		return jsonrepair.ExtractInto(text, &wire)
	}
	err = c.generateJSON(ctx, call{conn: conn, task: budget.TaskGrade, prompt: prompt, temperature: 0.3}, decode)
	if err != nil {
		return nil, fmt.Errorf("grade answer: %w", err)
	}

	raw := rubric.ParseRaw(wire.RubricScores, wire.STARScores)
	rec := normalizeGrade(kind, wire, raw)
	c.logger.Debug("answer graded",
		zap.String("backend", string(conn.Backend)),
		zap.String("category", in.Category),
		zap.String("rubric", string(kind)),
		zap.String("score_shape", raw.Shape.String()),
		zap.Int("score", rec.Score),
	)
	return rec, nil
}

func gradePrompt(kind rubric.Type, in GradeInput, resume, jobDescription, brevity string) string {
	dims := kind.Dimensions()

	var sb strings.Builder
	sb.WriteString(kind.Persona())
	sb.WriteString("\nGrade this interview answer. Return ONLY JSON:\n")
	sb.WriteString(`{"score":<0-100>,"grade":"A|B|C|D|F",`)
	sb.WriteString(`"rubric_scores":{`)
	for i, d := range dims {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `%q:<0-25>`, d.Label)
	}
	sb.WriteString(`},`)
	sb.WriteString(`"what_worked":["<strength>","<strength>"],`)
	sb.WriteString(`"what_missed":["<gap>","<gap>"],`)
	sb.WriteString(`"coach_reaction":"<1-2 warm sentences referencing their actual words>",`)
	sb.WriteString(`"model_answer":"<a strong first-person answer they could give>",`)
	sb.WriteString(`"model_answer_breakdown":"<why the model answer scores well on this rubric>",`)
	sb.WriteString(`"follow_up_question":"<one natural follow-up>",`)
	sb.WriteString(`"encouragement":"<1 sentence tip>"}`)
	sb.WriteString("\n\nRUBRIC (each 0-25):\n")
	for _, d := range dims {
		fmt.Fprintf(&sb, "- %s: %s\n", d.Label, d.Hint)
	}
	sb.WriteString(brevity)
	fmt.Fprintf(&sb, "\n\nCATEGORY: %s\n", in.Category)
	fmt.Fprintf(&sb, "QUESTION: %s\n", in.Question)
	fmt.Fprintf(&sb, "CANDIDATE ANSWER: %s\n", budget.Trim(in.Answer, MaxAnswerChars, budget.ModeHead))
	sb.WriteString("RESUME:\n" + resume)
	sb.WriteString("\nJOB:\n" + jobDescription)
	sb.WriteString("\nJSON only:")
	return sb.String()
}

// normalizeGrade produces the canonical record: labels always come from the
// rubric type, scores are clamped and the letter grade agrees with the rules
// when the model's letter is unusable. Rubric values are not reconciled with
// the overall score; the model generates them independently.
func normalizeGrade(kind rubric.Type, w gradeWire, raw rubric.Raw) *GradeRecord {
	scores := rubric.Migrate(kind, raw)

	score := w.Score.Value
	if !w.Score.Set && raw.Shape != rubric.ShapeMissing {
		score = scores.Total()
	}
	score = clampScore(score)

	return &GradeRecord{
		Score:                score,
		Grade:                letterGrade(w.Grade, score),
		RubricType:           kind,
		RubricLabels:         scores.Labels,
		RubricScores:         scores.Values,
		STARScores:           scores.STARView,
		WhatWorked:           orEmpty(w.WhatWorked),
		WhatMissed:           orEmpty(w.WhatMissed),
		CoachReaction:        w.CoachReaction.String(),
		ModelAnswer:          w.ModelAnswer.String(),
		ModelAnswerBreakdown: w.ModelAnswerBreakdown.String(),
		FollowUpQuestion:     w.FollowUpQuestion.String(),
		Encouragement:        w.Encouragement.String(),
	}
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// letterGrade keeps the model's letter when it is one of A-F (so "B+" reads as
// B) and derives it from score otherwise.
func letterGrade(given string, score int) string {
	given = strings.ToUpper(strings.TrimSpace(given))
	if given != "" && strings.ContainsRune("ABCDF", rune(given[0])) {
		return given[:1]
	}
	return LetterForScore(score)
}

// LetterForScore maps a 0-100 score onto A-F.
func LetterForScore(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
