package coach

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/budget"
	"github.com/interviewcoach/backend/internal/jsonrepair"
)

const (
	// PlanSize is the number of questions requested per session.
	PlanSize = 10

	DefaultCandidateName = "Candidate"
	DefaultTargetRole    = "General interview practice"

	defaultExperienceLevel = "Mid-level"
)

var (
	// DocumentSequence is the category order of a resume-based plan.
	DocumentSequence = []string{
		"Opener", "Behavioral", "Behavioral", "Technical", "Technical",
		"Situational", "Leadership", "Culture Fit", "Gap Challenge", "Closing",
	}
	// FieldSequence is the category order of a field-only plan.
	FieldSequence = []string{
		"Opener", "Behavioral", "Behavioral", "Technical", "Technical",
		"Situational", "Leadership", "Culture Fit", "Motivation", "Closing",
	}

	defaultFocusAreas = []string{"Behavioral", "Technical", "Situational"}
)

type planWire struct {
	CandidateName  string      `json:"candidate_name"`
	TargetRole     string      `json:"target_role"`
	CompanyHints   flexText    `json:"company_hints"`
	KeyStrengths   flexStrings `json:"key_strengths"`
	KeyGaps        flexStrings `json:"key_gaps"`
	OpeningMessage flexText    `json:"opening_message"`
	QuestionPool   []struct {
		Category           string   `json:"category"`
		Question           flexText `json:"question"`
		WhatGreatLooksLike flexText `json:"what_great_looks_like"`
		Difficulty         string   `json:"difficulty"`
	} `json:"question_pool"`
}

// decodePlan is the acceptance check for plan attempts: the output must be a
// plan object with at least one non-blank question.
func decodePlan(text string, into *planWire) error {
	*into = planWire{}
	if err := jsonrepair.ExtractInto(text, into); err != nil {
		return err
	}
	for _, q := range into.QuestionPool {
		if q.Question.String() != "" {
			return nil
		}
	}
	if into.QuestionPool == nil {
		return &PlanBuildError{Reason: "the reply has no question list"}
	}
	return &PlanBuildError{Reason: "the reply has no questions"}
}

// BuildSessionPlan asks for a ten-question plan tailored to a resume and job
// description. Either document may be empty. For local backends the model is
// warmed up first so it stays loaded for the session.
func (c *Coach) BuildSessionPlan(ctx context.Context, conn Connection, resume, jobDescription string) (*SessionPlan, error) {
	if c.warmer != nil {
		c.warmer.Warmup(ctx, conn.Backend, conn.Credential, conn.Model)
	}
	class, err := c.class(conn)
	if err != nil {
		return nil, err
	}
	r, j := c.contextBlock(class, budget.TaskPlan, resume, jobDescription)

	var sb strings.Builder
	sb.WriteString("You are an expert interview coach. Analyse this resume and job description.\n")
	sb.WriteString("Return ONLY valid JSON:\n")
	sb.WriteString(`{"candidate_name":"<first name from resume or Candidate>",`)
	sb.WriteString(`"target_role":"<role from JD>",`)
	sb.WriteString(`"company_hints":"<company name if visible or empty string>",`)
	sb.WriteString(`"key_strengths":["<strength>","<strength>","<strength>"],`)
	sb.WriteString(`"key_gaps":["<gap>","<gap>","<gap>"],`)
	sb.WriteString(`"opening_message":"<2-3 warm sentences welcoming candidate by name>",`)
	sb.WriteString(`"question_pool":[`)
	writeQuestionSchema(&sb, DocumentSequence, documentSlots)
	sb.WriteString("]}")
	sb.WriteString(c.budgets.Brevity(class, budget.TaskPlan))
	sb.WriteString("\n\nRESUME:\n" + r)
	sb.WriteString("\n\nJOB DESCRIPTION:\n" + j)
	sb.WriteString("\n\nJSON only:")

	var wire planWire
	err = c.generateJSON(ctx, call{conn: conn, task: budget.TaskPlan, prompt: sb.String(), temperature: 0.5},
		func(text string) error { return decodePlan(text, &wire) })
	if err != nil {
		return nil, fmt.Errorf("build session plan: %w", err)
	}

	plan := normalizePlan(wire, DocumentSequence)
	c.logger.Info("session plan built",
		zap.String("backend", string(conn.Backend)),
		zap.String("model", conn.Model),
		zap.Int("questions", len(plan.Questions)),
	)
	return plan, nil
}

// BuildFieldPlan asks for a plan from a job field, experience level and focus
// areas when there are no documents.
func (c *Coach) BuildFieldPlan(ctx context.Context, conn Connection, field, experienceLevel string, focusAreas []string) (*SessionPlan, error) {
	if c.warmer != nil {
		c.warmer.Warmup(ctx, conn.Backend, conn.Credential, conn.Model)
	}
	class, err := c.class(conn)
	if err != nil {
		return nil, err
	}

	field = strings.TrimSpace(field)
	if field == "" {
		field = DefaultTargetRole
	}
	level := strings.TrimSpace(experienceLevel)
	if level == "" {
		level = defaultExperienceLevel
	}
	focus := defaultFocusAreas
	if len(focusAreas) > 0 {
		focus = focusAreas
	}

	slots := fieldSlots(field, level)
	strengths := seededStrengths()
	gaps := seededGaps(field)

	var sb strings.Builder
	sb.WriteString("You are an expert interview coach. Build a 10-question interview practice plan.\n")
	sb.WriteString("Return ONLY valid JSON:\n")
	sb.WriteString(`{"candidate_name":"Candidate",`)
	fmt.Fprintf(&sb, `"target_role":%q,`, field)
	sb.WriteString(`"company_hints":"",`)
	fmt.Fprintf(&sb, `"key_strengths":[%s],`, quoteList(strengths))
	fmt.Fprintf(&sb, `"key_gaps":[%s],`, quoteList(gaps))
	fmt.Fprintf(&sb, `"opening_message":"<2-3 warm sentences for a %s %s candidate>",`, level, field)
	sb.WriteString(`"question_pool":[`)
	writeQuestionSchema(&sb, FieldSequence, slots)
	sb.WriteString("]}")
	sb.WriteString(c.budgets.Brevity(class, budget.TaskPlan))
	sb.WriteString("\n\nFIELD: " + field)
	sb.WriteString("\nEXPERIENCE: " + level)
	sb.WriteString("\nFOCUS: " + strings.Join(focus, ", "))
	sb.WriteString("\n\nJSON only:")

	var wire planWire
	err = c.generateJSON(ctx, call{conn: conn, task: budget.TaskPlan, prompt: sb.String(), temperature: 0.6},
		func(text string) error { return decodePlan(text, &wire) })
	if err != nil {
		return nil, fmt.Errorf("build field plan: %w", err)
	}

	if strings.TrimSpace(wire.TargetRole) == "" {
		wire.TargetRole = field
	}
	if len(wire.KeyStrengths) == 0 {
		wire.KeyStrengths = strengths
	}
	if len(wire.KeyGaps) == 0 {
		wire.KeyGaps = gaps
	}
	plan := normalizePlan(wire, FieldSequence)
	c.logger.Info("field plan built",
		zap.String("backend", string(conn.Backend)),
		zap.String("field", field),
		zap.Int("questions", len(plan.Questions)),
	)
	return plan, nil
}

// slot is the template of one question in the requested schema.
type slot struct {
	question, great, difficulty string
}

var documentSlots = []slot{
	{"<warm opener>", "<1 sentence>", "Easy"},
	{"<STAR question from experience>", "<1 sentence>", "Medium"},
	{"<challenge/failure question>", "<1 sentence>", "Medium"},
	{"<role-specific technical question>", "<1 sentence>", "Medium"},
	{"<deeper technical or tool question>", "<1 sentence>", "Hard"},
	{"<hypothetical scenario>", "<1 sentence>", "Medium"},
	{"<influence or team question>", "<1 sentence>", "Medium"},
	{"<values or motivation question>", "<1 sentence>", "Easy"},
	{"<probes weakest gap>", "<1 sentence>", "Hard"},
	{"Do you have any questions for me?", "Ask 2 thoughtful questions", "Easy"},
}

func fieldSlots(field, level string) []slot {
	return []slot{
		{"Tell me about yourself and what draws you to " + field + ".", "90-second story with key value", "Easy"},
		{"<STAR behavioral for " + field + " at " + level + ">", "Specific example with result", "Medium"},
		{"<challenge question for " + field + ">", "Shows self-awareness", "Medium"},
		{"<core technical question for " + field + ">", "Clear explanation with example", "Medium"},
		{"<advanced technical for " + field + ">", "Structured thinking", "Hard"},
		{"<workplace scenario for " + field + ">", "Logical approach", "Medium"},
		{"<collaboration question for " + level + " " + field + ">", "Shows impact on others", "Medium"},
		{"What work environment brings out your best?", "Authentic and specific", "Easy"},
		{"<career goals for " + field + ">", "Forward-looking and genuine", "Easy"},
		{"Do you have any questions for me?", "Ask 2 thoughtful researched questions", "Easy"},
	}
}

func seededStrengths() flexStrings {
	return flexStrings{"Prepare specific examples", "Show measurable outcomes", "Use STAR structure"}
}

func seededGaps(field string) flexStrings {
	return flexStrings{"Tailor to " + field + " context", "Quantify impact", "Be specific"}
}

func writeQuestionSchema(sb *strings.Builder, sequence []string, slots []slot) {
	for i, category := range sequence {
		if i > 0 {
			sb.WriteByte(',')
		}
		s := slots[i]
		fmt.Fprintf(sb, `{"id":%d,"category":%q,"question":%q,"what_great_looks_like":%q,"difficulty":%q}`,
			i+1, category, s.question, s.great, s.difficulty)
	}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ",")
}

// normalizePlan enforces the plan invariants on whatever the model produced:
// at most PlanSize non-blank questions, ids 1..n in order, an Opener first and
// a Closing at id PlanSize. A short plan is kept rather than rejected, with
// the model's categories for the remaining questions.
func normalizePlan(w planWire, sequence []string) *SessionPlan {
	plan := &SessionPlan{
		CandidateName:  strings.TrimSpace(w.CandidateName),
		TargetRole:     strings.TrimSpace(w.TargetRole),
		CompanyHints:   w.CompanyHints.String(),
		KeyStrengths:   orEmpty(w.KeyStrengths),
		KeyGaps:        orEmpty(w.KeyGaps),
		OpeningMessage: w.OpeningMessage.String(),
	}
	if plan.CandidateName == "" {
		plan.CandidateName = DefaultCandidateName
	}
	if plan.TargetRole == "" {
		plan.TargetRole = DefaultTargetRole
	}
	if plan.OpeningMessage == "" {
		plan.OpeningMessage = fmt.Sprintf("Welcome, %s! Let's practise for your %s interview, one question at a time.",
			plan.CandidateName, plan.TargetRole)
	}

	for _, q := range w.QuestionPool {
		text := q.Question.String()
		if text == "" {
			continue
		}
		if len(plan.Questions) == PlanSize {
			break
		}
		i := len(plan.Questions)
		category := strings.TrimSpace(q.Category)
		if category == "" {
			category = sequenceAt(sequence, i)
		}
		plan.Questions = append(plan.Questions, Question{
			ID:                 i + 1,
			Category:           category,
			Question:           text,
			WhatGreatLooksLike: q.WhatGreatLooksLike.String(),
			Difficulty:         normalizeDifficulty(q.Difficulty),
		})
	}

	if n := len(plan.Questions); n > 0 {
		plan.Questions[0].Category = "Opener"
		if n == PlanSize {
			plan.Questions[n-1].Category = "Closing"
		}
	}
	return plan
}

func sequenceAt(sequence []string, i int) string {
	if i < len(sequence) {
		return sequence[i]
	}
	return "Behavioral"
}

func normalizeDifficulty(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "easy":
		return "Easy"
	case "hard":
		return "Hard"
	default:
		return "Medium"
	}
}
