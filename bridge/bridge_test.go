package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/engine"
	"github.com/planweave/planweave/engine/heuristic"
	"github.com/planweave/planweave/engine/script"
	"github.com/planweave/planweave/orchestrator"
	"github.com/planweave/planweave/planerr"
	"github.com/planweave/planweave/store"
	"github.com/planweave/planweave/workflow"
)

func fixtureEngine(t *testing.T, name string) engine.Engine {
	t.Helper()
	e, err := script.NewFromFile("testdata/" + name)
	require.NoError(t, err)
	return e
}

func run(t *testing.T, orc Advancer, input string) Response {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), strings.NewReader(input), &out, orc))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "output: %s", out.String())
	return resp
}

func TestEmptyInputFailsGracefully(t *testing.T) {
	orc := orchestrator.New(heuristic.New(), store.NewMemoryStore(), orchestrator.Config{})

	for _, input := range []string{"", "   \n"} {
		resp := run(t, orc, input)
		assert.Equal(t, "FAILED", resp.State)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "input_error", resp.Error.Kind)
	}
}

func TestUnparseableObjectFailsGracefully(t *testing.T) {
	orc := orchestrator.New(heuristic.New(), store.NewMemoryStore(), orchestrator.Config{})

	resp := run(t, orc, `{"task": `)
	assert.Equal(t, "FAILED", resp.State)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "input_error", resp.Error.Kind)
}

func TestQuestionsDetourThenResumeToComplete(t *testing.T) {
	st := store.NewMemoryStore()
	orc := orchestrator.New(fixtureEngine(t, "questions_then_plan.yaml"), st,
		orchestrator.Config{EnableQuestions: true})

	first := run(t, orc, `{"task": "Configure persistence layer"}`)
	assert.Equal(t, "QUESTIONING", first.State)
	require.NotEmpty(t, first.WorkflowID)
	require.Len(t, first.Questions, 1)
	assert.Equal(t, "Q1", first.Questions[0].ID)

	resume := `{"workflow_id": "` + first.WorkflowID + `", "task": "Configure persistence layer", "answers": {"Q1": "PostgreSQL"}}`
	second := run(t, orc, resume)
	assert.Equal(t, "COMPLETE", second.State)
	assert.Equal(t, first.WorkflowID, second.WorkflowID)
	require.NotNil(t, second.Plan)
	assert.Len(t, second.Plan.Steps, 3)
	assert.Empty(t, second.Questions)
}

func TestCriticRejectOnceCompletesWithOneRevision(t *testing.T) {
	orc := orchestrator.New(fixtureEngine(t, "critic_reject_once.yaml"), store.NewMemoryStore(),
		orchestrator.Config{EnableCritic: true})

	resp := run(t, orc, `{"task": "Roll out feature"}`)
	assert.Equal(t, "COMPLETE", resp.State)
	assert.Equal(t, 1, resp.Revisions)
	require.NotNil(t, resp.Critic)
	assert.True(t, resp.Critic.Approved)
}

func TestForwardDependencyPlanEndsFailed(t *testing.T) {
	orc := orchestrator.New(fixtureEngine(t, "forward_dependency.yaml"), store.NewMemoryStore(),
		orchestrator.Config{MaxAttempts: 2})

	resp := run(t, orc, `{"task": "Broken plan"}`)
	assert.Equal(t, "FAILED", resp.State)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "schema_violation", resp.Error.Kind)
	assert.Nil(t, resp.Plan)
}

func TestBareStringAndRawTextInputs(t *testing.T) {
	orc := orchestrator.New(heuristic.New(), store.NewMemoryStore(), orchestrator.Config{})

	resp := run(t, orc, `"Configure the persistence layer for the billing service"`)
	assert.Equal(t, "COMPLETE", resp.State)
	assert.NotNil(t, resp.Plan)

	resp = run(t, orc, "Configure the persistence layer for the billing service\n")
	assert.Equal(t, "COMPLETE", resp.State)
	assert.NotNil(t, resp.Plan)
}

func TestUnknownFieldInRequestIsRejected(t *testing.T) {
	orc := orchestrator.New(heuristic.New(), store.NewMemoryStore(), orchestrator.Config{})

	resp := run(t, orc, `{"task": "x", "bogus": true}`)
	assert.Equal(t, "FAILED", resp.State)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "input_error", resp.Error.Kind)
}

func TestResumeUnknownWorkflowReportsConflict(t *testing.T) {
	orc := orchestrator.New(heuristic.New(), store.NewMemoryStore(), orchestrator.Config{})

	resp := run(t, orc, `{"workflow_id": "missing", "task": "anything"}`)
	assert.Equal(t, "FAILED", resp.State)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "state_conflict", resp.Error.Kind)
}

type failingAdvancer struct{ err error }

func (f *failingAdvancer) Advance(ctx context.Context, req orchestrator.Request) (*workflow.Workflow, error) {
	return nil, f.err
}

func TestStoreFailureIsTheOnlyNonZeroPath(t *testing.T) {
	cause := planerr.Newf(planerr.KindStore, "store", "Save", "disk unavailable")
	var out bytes.Buffer

	err := Run(context.Background(), strings.NewReader(`{"task": "x"}`), &out, &failingAdvancer{err: cause})
	require.Error(t, err)

	// A body is still written for callers that only read stdout.
	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "FAILED", resp.State)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "store_error", resp.Error.Kind)
}
