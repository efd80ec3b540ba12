package rubric_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewcoach/backend/internal/rubric"
)

func TestCategoryType(t *testing.T) {
	tests := []struct {
		category string
		want     rubric.Type
	}{
		{"Opener", rubric.Opener},
		{"  opener ", rubric.Opener},
		{"Closing", rubric.Closing},
		{"CLOSING", rubric.Closing},
		{"Behavioral", rubric.STAR},
		{"Technical", rubric.STAR},
		{"Gap Challenge", rubric.STAR},
		{"Motivation", rubric.STAR},
		{"Culture Fit", rubric.STAR},
		{"", rubric.STAR},
		{"Something Custom", rubric.STAR},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := rubric.CategoryType(tt.category)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, rubric.CategoryType(tt.category), "deterministic")
		})
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"Narrative Arc", "Relevant Experience", "Motivation & Fit", "Delivery & Confidence"}, rubric.Opener.Labels())
	assert.Equal(t, []string{"Role Relevance", "Company Research", "Strategic Thinking", "Interview Intelligence"}, rubric.Closing.Labels())
	assert.Equal(t, []string{"Situation", "Task", "Action", "Result"}, rubric.STAR.Labels())
	assert.Equal(t, rubric.STAR.Labels(), rubric.Type("unknown").Labels())
}

func TestPersonaAndTipDifferByType(t *testing.T) {
	types := []rubric.Type{rubric.Opener, rubric.Closing, rubric.STAR}
	seen := map[string]bool{}
	for _, ty := range types {
		assert.Contains(t, ty.Persona(), "Coach Alex")
		assert.False(t, seen[ty.TipAngle()])
		seen[ty.TipAngle()] = true
	}
	assert.Contains(t, rubric.STAR.Persona(), "STAR")
}

func TestParseRaw(t *testing.T) {
	tests := []struct {
		name   string
		rubric string
		star   string
		want   rubric.Shape
		count  int
	}{
		{"current", `{"Narrative Arc": 20}`, ``, rubric.ShapeRubric, 1},
		{"legacy", ``, `{"situation":10,"task":12,"action":20,"result":15}`, rubric.ShapeLegacySTAR, 4},
		{"empty rubric falls back", `{}`, `{"situation":10}`, rubric.ShapeLegacySTAR, 1},
		{"array", `[20, 18, 15, 22]`, ``, rubric.ShapeRubric, 4},
		{"numeric strings", `{"a":"18","b":"20/25","c":"great"}`, ``, rubric.ShapeRubric, 2},
		{"nothing", `null`, ``, rubric.ShapeMissing, 0},
		{"not a container", `42`, `"x"`, rubric.ShapeMissing, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rubric.ParseRaw(json.RawMessage(tt.rubric), json.RawMessage(tt.star))
			assert.Equal(t, tt.want, raw.Shape, raw.Shape.String())
			assert.Len(t, raw.Entries, tt.count)
		})
	}
}

func TestParseRaw_KeepsEmissionOrder(t *testing.T) {
	raw := rubric.ParseRaw(json.RawMessage(`{"result": 4, "action": 3, "task": 2, "situation": 1}`), nil)
	require.Len(t, raw.Entries, 4)
	assert.Equal(t, "result", raw.Entries[0].Name)
	assert.Equal(t, "situation", raw.Entries[3].Name)
}

func TestMigrate_MatchesByLabelAndKey(t *testing.T) {
	raw := rubric.ParseRaw(json.RawMessage(`{
		"delivery_confidence": 15,
		"Narrative Arc": 22,
		"motivation & fit": 18,
		"RELEVANT EXPERIENCE": 20
	}`), nil)

	got := rubric.Migrate(rubric.Opener, raw)
	assert.Equal(t, rubric.Opener.Labels(), got.Labels)
	assert.Equal(t, []int{22, 20, 18, 15}, got.Ordered())
	assert.Equal(t, 75, got.Total())
}

func TestMigrate_LegacySTARIsMappedPositionally(t *testing.T) {
	raw := rubric.ParseRaw(nil, json.RawMessage(`{"situation":10,"task":12,"action":20,"result":15}`))

	got := rubric.Migrate(rubric.Closing, raw)
	assert.Equal(t, map[string]int{
		"Role Relevance":         10,
		"Company Research":       12,
		"Strategic Thinking":     20,
		"Interview Intelligence": 15,
	}, got.Values)
	assert.Equal(t, map[string]int{"situation": 10, "task": 12, "action": 20, "result": 15}, got.STARView)
}

func TestMigrate_ClampsAndFillsMissing(t *testing.T) {
	raw := rubric.ParseRaw(json.RawMessage(`{"Situation": 40, "Task": -3, "Action": 12.6}`), nil)

	got := rubric.Migrate(rubric.STAR, raw)
	assert.Equal(t, []int{25, 0, 13, 0}, got.Ordered())
	for _, v := range got.Values {
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, rubric.MaxDimensionScore)
	}
}

func TestMigrate_MixedNamedAndUnknownKeys(t *testing.T) {
	raw := rubric.ParseRaw(json.RawMessage(`{"clarity": 9, "Result": 21, "depth": 7, "impact": 5}`), nil)

	got := rubric.Migrate(rubric.STAR, raw)
	assert.Equal(t, []int{9, 7, 5, 21}, got.Ordered())
}

func TestMigrate_Missing(t *testing.T) {
	got := rubric.Migrate(rubric.Opener, rubric.Raw{Shape: rubric.ShapeMissing})
	assert.Len(t, got.Values, 4)
	assert.Equal(t, 0, got.Total())
	assert.Len(t, got.STARView, 4)
}
