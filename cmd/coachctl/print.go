package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/interviewcoach/backend/internal/coach"
)

func scoreColor(score int) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen)
	case score >= 60:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func printPlan(w io.Writer, p *coach.SessionPlan) {
	color.New(color.Bold).Fprintf(w, "%s", p.TargetRole)
	if p.CandidateName != "" {
		fmt.Fprintf(w, " · %s", p.CandidateName)
	}
	fmt.Fprintln(w)
	if p.CompanyHints != "" {
		fmt.Fprintln(w, p.CompanyHints)
	}
	printList(w, "Strengths", p.KeyStrengths)
	printList(w, "Gaps", p.KeyGaps)
	fmt.Fprintln(w)
	for _, q := range p.Questions {
		fmt.Fprintf(w, "%2d. [%s, %s] %s\n", q.ID, q.Category, q.Difficulty, q.Question)
		if q.WhatGreatLooksLike != "" {
			fmt.Fprintf(w, "    great answer: %s\n", q.WhatGreatLooksLike)
		}
	}
}

func printGrade(w io.Writer, g *coach.GradeRecord) {
	scoreColor(g.Score).Fprintf(w, "%d/100 (%s)", g.Score, g.Grade)
	if g.CoachReaction != "" {
		fmt.Fprintf(w, "  %s", g.CoachReaction)
	}
	fmt.Fprintln(w)

	parts := make([]string, 0, len(g.RubricLabels))
	for _, label := range g.RubricLabels {
		parts = append(parts, fmt.Sprintf("%s %d/25", label, g.RubricScores[label]))
	}
	if len(parts) > 0 {
		fmt.Fprintln(w, strings.Join(parts, " · "))
	}
	printList(w, "Worked", g.WhatWorked)
	printList(w, "Missed", g.WhatMissed)
	if g.ModelAnswer != "" {
		fmt.Fprintf(w, "Stronger answer: %s\n", g.ModelAnswer)
	}
	if g.FollowUpQuestion != "" {
		fmt.Fprintf(w, "Follow-up: %s\n", g.FollowUpQuestion)
	}
}

func printReport(w io.Writer, r *coach.SessionReport) {
	scoreColor(r.OverallScore).Fprintf(w, "%d/100 (%s) %s\n", r.OverallScore, r.OverallGrade, r.Tier)
	if r.Headline != "" {
		color.New(color.Bold).Fprintln(w, r.Headline)
	}
	for _, cat := range coach.SortedCategories(r.CategoryScores) {
		fmt.Fprintf(w, "  %-20s %3d\n", cat, r.CategoryScores[cat])
	}
	printList(w, "Strengths", r.TopStrengths)
	if len(r.PriorityImprovements) > 0 {
		fmt.Fprintln(w, "Work on:")
		for i, imp := range r.PriorityImprovements {
			fmt.Fprintf(w, "  %d. %s: %s Fix: %s\n", i+1, imp.Area, imp.Issue, imp.Fix)
		}
	}
	printList(w, "Action plan", r.ActionPlan)
	if r.PersonalNote != "" {
		fmt.Fprintln(w, r.PersonalNote)
	}
}
