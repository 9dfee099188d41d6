package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/planerr"
)

func TestDecodeAnalysis(t *testing.T) {
	raw := []byte(`{"ambiguous": true, "questions": [{"id": "Q1", "text": "Which database?"}]}`)
	resp, err := DecodeResponse(StageAnalyze, raw)
	require.NoError(t, err)
	require.NotNil(t, resp.Analysis)
	assert.True(t, resp.Analysis.Ambiguous)
	assert.Len(t, resp.Analysis.Questions, 1)
	assert.Nil(t, resp.Plan)
	assert.Nil(t, resp.Critique)
}

func TestDecodePlan(t *testing.T) {
	raw := []byte(`{
		"task_summary": "Configure persistence",
		"steps": [
			{"id": "s1", "description": "Pick a database"},
			{"id": "s2", "description": "Write migrations", "dependencies": ["s1"]}
		],
		"success_criteria": ["migrations apply cleanly"]
	}`)
	for _, stage := range []Stage{StagePlan, StageRevise} {
		resp, err := DecodeResponse(stage, raw)
		require.NoError(t, err, "stage %s", stage)
		require.NotNil(t, resp.Plan)
		assert.Equal(t, "Configure persistence", resp.Plan.TaskSummary)
		assert.Len(t, resp.Plan.Steps, 2)
		assert.Equal(t, []string{"s1"}, resp.Plan.Steps[1].DependsOn)
	}
}

func TestDecodeCritique(t *testing.T) {
	raw := []byte(`{"approved": false, "summary": "too vague", "issues": ["step 2 has no owner"]}`)
	resp, err := DecodeResponse(StageCritique, raw)
	require.NoError(t, err)
	require.NotNil(t, resp.Critique)
	assert.False(t, resp.Critique.Approved)
	assert.Equal(t, []string{"step 2 has no owner"}, resp.Critique.Issues)
}

func TestDecodeRejectsMalformedShapes(t *testing.T) {
	cases := []struct {
		name  string
		stage Stage
		raw   string
	}{
		{"not json", StageAnalyze, `clarifying questions?`},
		{"missing required field", StageAnalyze, `{"questions": []}`},
		{"wrong type", StageAnalyze, `{"ambiguous": "yes"}`},
		{"unknown field", StageAnalyze, `{"ambiguous": false, "confidence": 0.9}`},
		{"empty steps", StagePlan, `{"task_summary": "x", "steps": []}`},
		{"step without id", StagePlan, `{"task_summary": "x", "steps": [{"description": "y"}]}`},
		{"critique without verdict", StageCritique, `{"summary": "fine"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := DecodeResponse(c.stage, []byte(c.raw))
			require.Error(t, err)
			assert.True(t, planerr.IsKind(err, planerr.KindSchema), "want schema violation, got %v", err)
		})
	}
}

func TestDecodeUnknownStage(t *testing.T) {
	_, err := DecodeResponse(Stage("summarize"), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, planerr.IsKind(err, planerr.KindEngine))
}

func TestRegistry(t *testing.T) {
	RegisterFactory("testfake", func(spec Spec) (Engine, error) { return nil, nil })
	eng, err := Create(Spec{Type: "testfake"})
	require.NoError(t, err)
	assert.Nil(t, eng)

	_, err = Create(Spec{Type: "nope"})
	var unsupported *UnsupportedEngineError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "nope", unsupported.EngineType)
}
