package coach

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/budget"
	"github.com/interviewcoach/backend/internal/jsonrepair"
)

// Report tiers, best first.
const (
	TierReady       = "Interview Ready"
	TierAlmost      = "Almost There"
	TierPractice    = "Needs Practice"
	TierSignificant = "Significant Work Needed"
)

const maxImprovements = 3

var reportCategories = []string{"Opener", "Behavioral", "Technical", "Situational", "Leadership", "Culture Fit"}

type reportWire struct {
	OverallScore         flexInt            `json:"overall_score"`
	OverallGrade         string             `json:"overall_grade"`
	Tier                 string             `json:"tier"`
	Headline             flexText           `json:"headline"`
	TopStrengths         flexStrings        `json:"top_strengths"`
	PriorityImprovements []improvementWire  `json:"priority_improvements"`
	CategoryScores       map[string]flexInt `json:"category_scores"`
	ActionPlan           flexStrings        `json:"action_plan"`
	PersonalNote         flexText           `json:"personal_note"`
}

type improvementWire struct {
	Area  flexText `json:"area"`
	Issue flexText `json:"issue"`
	Fix   flexText `json:"fix"`
}

// BuildSessionReport summarizes a finished session. The prompt carries a
// condensed digest of every graded answer rather than the answers themselves.
func (c *Coach) BuildSessionReport(ctx context.Context, conn Connection, items []AnsweredQuestion, resume, jobDescription string) (*SessionReport, error) {
	class, err := c.class(conn)
	if err != nil {
		return nil, err
	}
	r, j := c.contextBlock(class, budget.TaskReport, resume, jobDescription)

	var sb strings.Builder
	sb.WriteString("Generate a final interview coaching report. Return ONLY JSON:\n")
	sb.WriteString(`{"overall_score":<0-100>,"overall_grade":"A|B|C|D|F",`)
	fmt.Fprintf(&sb, `"tier":"%s|%s|%s|%s",`, TierReady, TierAlmost, TierPractice, TierSignificant)
	sb.WriteString(`"headline":"<one punchy sentence>",`)
	sb.WriteString(`"top_strengths":["<strength>","<strength>","<strength>"],`)
	sb.WriteString(`"priority_improvements":[`)
	sb.WriteString(`{"area":"<area>","issue":"<issue>","fix":"<fix>"},`)
	sb.WriteString(`{"area":"<area>","issue":"<issue>","fix":"<fix>"},`)
	sb.WriteString(`{"area":"<area>","issue":"<issue>","fix":"<fix>"}],`)
	sb.WriteString(`"category_scores":{`)
	for i, cat := range reportCategories {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `%q:0`, cat)
	}
	sb.WriteString(`},`)
	sb.WriteString(`"action_plan":["<action>","<action>","<action>","<action>"],`)
	sb.WriteString(`"personal_note":"<2-3 warm closing sentences>"}`)
	sb.WriteString(c.budgets.Brevity(class, budget.TaskReport))
	sb.WriteString("\n\nSESSION:\n" + Digest(items))
	sb.WriteString("RESUME:\n" + r)
	sb.WriteString("\nJOB:\n" + j)
	sb.WriteString("\nJSON only:")

	var wire reportWire
	decode := func(text string) error {
		wire = reportWire{}
		return jsonrepair.ExtractInto(text, &wire)
	}
	err = c.generateJSON(ctx, call{conn: conn, task: budget.TaskReport, prompt: sb.String(), temperature: 0.4}, decode)
	if err != nil {
		return nil, fmt.Errorf("build session report: %w", err)
	}

	report := normalizeReport(wire, items)
	c.logger.Info("session report built",
		zap.String("backend", string(conn.Backend)),
		zap.Int("answers", len(items)),
		zap.Int("overall_score", report.OverallScore),
	)
	return report, nil
}

// Digest condenses graded answers into the per-question summary the report
// prompt uses.
func Digest(items []AnsweredQuestion) string {
	var sb strings.Builder
	for i, item := range items {
		q := []rune(item.Question)
		if len(q) > 70 {
			q = q[:70]
		}
		fmt.Fprintf(&sb, "Q%d [%s]: %s\nScore: %d/100 | Missed: %s\n\n",
			i+1, item.Category, string(q), item.Grade.Score, strings.Join(item.Grade.WhatMissed, "; "))
	}
	return sb.String()
}

// CategoryAverages is the mean score per category over graded answers.
func CategoryAverages(items []AnsweredQuestion) map[string]int {
	sums := map[string]int{}
	counts := map[string]int{}
	for _, item := range items {
		sums[item.Category] += item.Grade.Score
		counts[item.Category]++
	}
	out := make(map[string]int, len(sums))
	for cat, sum := range sums {
		out[cat] = (sum + counts[cat]/2) / counts[cat]
	}
	return out
}

// TierForScore maps an overall score onto a readiness tier.
func TierForScore(score int) string {
	switch {
	case score >= 85:
		return TierReady
	case score >= 70:
		return TierAlmost
	case score >= 50:
		return TierPractice
	default:
		return TierSignificant
	}
}

func validTier(t string) (string, bool) {
	for _, known := range []string{TierReady, TierAlmost, TierPractice, TierSignificant} {
		if strings.EqualFold(strings.TrimSpace(t), known) {
			return known, true
		}
	}
	return "", false
}

func normalizeReport(w reportWire, items []AnsweredQuestion) *SessionReport {
	averages := CategoryAverages(items)

	score := w.OverallScore.Value
	if !w.OverallScore.Set {
		score = meanScore(items)
	}
	score = clampScore(score)

	tier, ok := validTier(w.Tier)
	if !ok {
		tier = TierForScore(score)
	}

	// The schema shows 0 for every category, so a 0 echoed back for a
	// category that was actually answered is treated as missing.
	categories := make(map[string]int, len(w.CategoryScores)+len(averages))
	for cat, v := range w.CategoryScores {
		_, answered := averages[cat]
		if v.Set && (v.Value > 0 || !answered) {
			categories[cat] = clampScore(v.Value)
		}
	}
	for cat, avg := range averages {
		if _, ok := categories[cat]; !ok {
			categories[cat] = avg
		}
	}

	var improvements []Improvement
	for _, imp := range w.PriorityImprovements {
		if len(improvements) == maxImprovements {
			break
		}
		if imp.Area.String() == "" && imp.Issue.String() == "" && imp.Fix.String() == "" {
			continue
		}
		improvements = append(improvements, Improvement{Area: imp.Area.String(), Issue: imp.Issue.String(), Fix: imp.Fix.String()})
	}
	if improvements == nil {
		improvements = []Improvement{}
	}

	return &SessionReport{
		OverallScore:         score,
		OverallGrade:         letterGrade(w.OverallGrade, score),
		Tier:                 tier,
		Headline:             w.Headline.String(),
		TopStrengths:         orEmpty(w.TopStrengths),
		PriorityImprovements: improvements,
		CategoryScores:       categories,
		ActionPlan:           orEmpty(w.ActionPlan),
		PersonalNote:         w.PersonalNote.String(),
	}
}

func meanScore(items []AnsweredQuestion) int {
	if len(items) == 0 {
		return 0
	}
	total := 0
	for _, item := range items {
		total += item.Grade.Score
	}
	return (total + len(items)/2) / len(items)
}

// SortedCategories returns the keys of scores in a stable display order:
// the standard categories first, then any others alphabetically.
func SortedCategories(scores map[string]int) []string {
	rank := make(map[string]int, len(reportCategories))
	for i, c := range reportCategories {
		rank[c] = i
	}
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
