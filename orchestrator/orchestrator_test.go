package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/engine"
	"github.com/planweave/planweave/engine/heuristic"
	"github.com/planweave/planweave/engine/script"
	"github.com/planweave/planweave/planerr"
	"github.com/planweave/planweave/store"
	"github.com/planweave/planweave/workflow"
)

const clearTask = "Configure the persistence layer for the billing service"

func scriptEngine(t *testing.T, fixture string) engine.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	e, err := script.NewFromFile(path)
	require.NoError(t, err)
	return e
}

// flakyEngine fails the first failures calls with a retryable engine error,
// then delegates.
type flakyEngine struct {
	inner    engine.Engine
	failures int
	calls    int
}

func (f *flakyEngine) ID() string { return "flaky" }

func (f *flakyEngine) Generate(ctx context.Context, stage engine.Stage, pc engine.PromptContext) (*engine.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, planerr.Newf(planerr.KindEngine, "flaky", "Generate", "transient failure %d", f.calls)
	}
	return f.inner.Generate(ctx, stage, pc)
}

func (f *flakyEngine) Close() error { return nil }

// brokenStore fails configured operations to exercise the store I/O path.
type brokenStore struct {
	store.Store
	saveErr error
}

func (b *brokenStore) Save(ctx context.Context, w *workflow.Workflow) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	return b.Store.Save(ctx, w)
}

func TestNewTaskRunsToComplete(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(heuristic.New(), st, Config{})

	w, err := o.Advance(context.Background(), Request{Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, w.State)
	assert.NotEmpty(t, w.ID)
	assert.NotNil(t, w.Plan)
	assert.Zero(t, w.Revisions)

	// Full path recorded and persisted.
	edges := make([]string, 0, len(w.History))
	for _, tr := range w.History {
		edges = append(edges, string(tr.From)+">"+string(tr.To))
	}
	assert.Equal(t, []string{
		"INIT>ANALYZING", "ANALYZING>PLANNING", "PLANNING>VALIDATING", "VALIDATING>COMPLETE",
	}, edges)

	stored, err := st.Load(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, stored.State)
	assert.Equal(t, int64(1), stored.StoreRevision)
}

func TestUnambiguousTaskNeverVisitsQuestioning(t *testing.T) {
	o := New(heuristic.New(), store.NewMemoryStore(), Config{EnableQuestions: true})

	w, err := o.Advance(context.Background(), Request{Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, w.State)
	for _, tr := range w.History {
		assert.NotEqual(t, workflow.StateQuestioning, tr.To)
	}
}

func TestQuestionsDisabledSkipsDetour(t *testing.T) {
	// A vague task with the detour disabled still plans straight through.
	o := New(heuristic.New(), store.NewMemoryStore(), Config{EnableQuestions: false})

	w, err := o.Advance(context.Background(), Request{Task: "fix stuff"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, w.State)
}

func TestQuestioningDetourAndResume(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(heuristic.New(), st, Config{EnableQuestions: true})
	ctx := context.Background()

	w, err := o.Advance(ctx, Request{Task: "fix stuff"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQuestioning, w.State)
	assert.NotEmpty(t, w.ID)
	assert.NotEmpty(t, w.Questions)

	// The detour is persisted before returning.
	stored, err := st.Load(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQuestioning, stored.State)

	// Resume without answers re-asks, without inventing progress.
	again, err := o.Advance(ctx, Request{WorkflowID: w.ID, Task: "fix stuff"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQuestioning, again.State)
	assert.Equal(t, stored.StoreRevision, again.StoreRevision)

	// Resume with answers completes in the same invocation.
	done, err := o.Advance(ctx, Request{
		WorkflowID: w.ID,
		Task:       "fix stuff",
		Answers:    map[string]string{"Q1": "the login page crash"},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, done.State)
	assert.Equal(t, "the login page crash", done.Answers["Q1"])
}

func TestEmptyTaskFailsWithoutPersisting(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(heuristic.New(), st, Config{})

	w, err := o.Advance(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, w.State)
	require.NotNil(t, w.Error)
	assert.Equal(t, string(planerr.KindInput), w.Error.Kind)

	ids, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResumeUnknownIDFails(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(heuristic.New(), st, Config{})

	w, err := o.Advance(context.Background(), Request{WorkflowID: "no-such-id", Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, w.State)
	require.NotNil(t, w.Error)
	assert.Equal(t, string(planerr.KindStateConflict), w.Error.Kind)

	// The bogus id must not have been materialized in the store.
	ids, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResumeTerminalWorkflowFails(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(heuristic.New(), st, Config{})
	ctx := context.Background()

	done, err := o.Advance(ctx, Request{Task: clearTask})
	require.NoError(t, err)
	require.Equal(t, workflow.StateComplete, done.State)

	w, err := o.Advance(ctx, Request{WorkflowID: done.ID, Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, w.State)
	require.NotNil(t, w.Error)
	assert.Equal(t, string(planerr.KindStateConflict), w.Error.Kind)
	assert.Contains(t, w.Error.Message, "terminal")

	// The stored snapshot is untouched.
	stored, err := st.Load(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, stored.State)
}

const rejectOnceFixture = `responses:
  - stage: analyze
    response:
      ambiguous: false
  - stage: plan
    response:
      task_summary: Roll out feature
      steps:
        - id: s1
          description: Flag it
  - stage: critique
    response:
      approved: false
      summary: too thin
      issues:
        - no rollback step
  - stage: revise
    response:
      task_summary: Roll out feature
      steps:
        - id: s1
          description: Flag it
        - id: s2
          description: Add a rollback step
          dependencies: [s1]
  - stage: critique
    response:
      approved: true
      summary: looks good
`

func TestCriticRejectOnceThenApprove(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(scriptEngine(t, rejectOnceFixture), st, Config{EnableCritic: true})

	w, err := o.Advance(context.Background(), Request{Task: "Roll out feature"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, w.State)
	assert.Equal(t, 1, w.Revisions)
	require.NotNil(t, w.CriticFeedback)
	assert.True(t, w.CriticFeedback.Approved)
	require.NotNil(t, w.Plan)
	assert.Len(t, w.Plan.Steps, 2)
}

const alwaysRejectFixture = `responses:
  - stage: analyze
    response:
      ambiguous: false
  - stage: plan
    response:
      task_summary: Roll out feature
      steps:
        - id: s1
          description: Flag it
  - stage: critique
    response:
      approved: false
      issues: [never good enough]
  - stage: revise
    response:
      task_summary: Roll out feature
      steps:
        - id: s1
          description: Flag it
  - stage: critique
    response:
      approved: false
      issues: [never good enough]
  - stage: revise
    response:
      task_summary: Roll out feature
      steps:
        - id: s1
          description: Flag it
  - stage: critique
    response:
      approved: false
      issues: [never good enough]
`

func TestRevisionLimitExceededFails(t *testing.T) {
	o := New(scriptEngine(t, alwaysRejectFixture), store.NewMemoryStore(),
		Config{EnableCritic: true, MaxRevisions: 2})

	w, err := o.Advance(context.Background(), Request{Task: "Roll out feature"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, w.State)
	assert.Equal(t, 2, w.Revisions)
	require.NotNil(t, w.Error)
	assert.Equal(t, string(planerr.KindRevisionLimit), w.Error.Kind)
	assert.Contains(t, w.Error.Message, "revision limit exceeded")
}

const forwardDepFixture = `responses:
  - stage: analyze
    response:
      ambiguous: false
  - stage: plan
    response:
      task_summary: Bad plan
      steps:
        - id: s1
          description: First
          dependencies: [s2]
        - id: s2
          description: Second
  - stage: plan
    response:
      task_summary: Bad plan
      steps:
        - id: s1
          description: First
          dependencies: [s2]
        - id: s2
          description: Second
`

func TestInvalidPlanIsRetriedThenFails(t *testing.T) {
	st := store.NewMemoryStore()
	o := New(scriptEngine(t, forwardDepFixture), st, Config{MaxAttempts: 2})

	w, err := o.Advance(context.Background(), Request{Task: "Bad plan"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, w.State)
	require.NotNil(t, w.Error)
	assert.Equal(t, string(planerr.KindSchema), w.Error.Kind)
	assert.Nil(t, w.Plan)

	// The failure is persisted, not just reported.
	stored, err := st.Load(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, stored.State)
}

func TestTransientEngineFailureIsRetried(t *testing.T) {
	eng := &flakyEngine{inner: heuristic.New(), failures: 1}
	o := New(eng, store.NewMemoryStore(), Config{MaxAttempts: 2})

	w, err := o.Advance(context.Background(), Request{Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, w.State)
	assert.Greater(t, eng.calls, 1)
}

func TestEngineFailureExhaustsAttempts(t *testing.T) {
	eng := &flakyEngine{inner: heuristic.New(), failures: 100}
	o := New(eng, store.NewMemoryStore(), Config{MaxAttempts: 3})

	w, err := o.Advance(context.Background(), Request{Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, w.State)
	require.NotNil(t, w.Error)
	assert.Equal(t, string(planerr.KindEngine), w.Error.Kind)
	assert.Equal(t, 3, eng.calls)
}

func TestStoreFailurePropagates(t *testing.T) {
	st := &brokenStore{Store: store.NewMemoryStore(), saveErr: errors.New("disk unavailable")}
	o := New(heuristic.New(), st, Config{})

	_, err := o.Advance(context.Background(), Request{Task: clearTask})
	require.Error(t, err)
	assert.True(t, planerr.IsKind(err, planerr.KindStore))
}

func TestSaveConflictReportsStateConflict(t *testing.T) {
	st := &brokenStore{Store: store.NewMemoryStore(), saveErr: store.ErrConflict}
	o := New(heuristic.New(), st, Config{})

	w, err := o.Advance(context.Background(), Request{Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, w.State)
	require.NotNil(t, w.Error)
	assert.Equal(t, string(planerr.KindStateConflict), w.Error.Kind)
	assert.Contains(t, w.Error.Message, "concurrently")
}

func TestClockIsInjectable(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	o := New(heuristic.New(), store.NewMemoryStore(), Config{},
		WithClock(func() time.Time { return fixed }))

	w, err := o.Advance(context.Background(), Request{Task: clearTask})
	require.NoError(t, err)
	assert.Equal(t, fixed, w.CreatedAt)
	assert.Equal(t, fixed, w.UpdatedAt)
	for _, tr := range w.History {
		assert.Equal(t, fixed, tr.Timestamp)
	}
}
