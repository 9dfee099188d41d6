// Package orchestrator drives a workflow through the planning state machine.
//
// Each Advance call runs synchronously until it reaches a return point:
// the QUESTIONING detour (caller must resume with answers), COMPLETE, or
// FAILED. The accumulated transitions are persisted before Advance returns,
// so a crash between invocations never loses more than the in-flight stage.
//
// Advance never returns an error for input, engine, or state problems —
// those end as FAILED snapshots in the returned workflow. The only error it
// propagates is a store I/O failure, when no snapshot can be written at all.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planweave/planweave/engine"
	"github.com/planweave/planweave/engine/heuristic"
	"github.com/planweave/planweave/logger"
	"github.com/planweave/planweave/metrics"
	"github.com/planweave/planweave/planerr"
	"github.com/planweave/planweave/store"
	"github.com/planweave/planweave/workflow"
)

// Default bounds applied when the configuration leaves them unset.
const (
	DefaultMaxRevisions = 3
	DefaultMaxAttempts  = 2
)

// Request is one Advance invocation's input: either a new task
// (WorkflowID empty) or a resume of a stored workflow.
type Request struct {
	WorkflowID string
	Task       string
	Context    map[string]any
	Answers    map[string]string
}

// Config carries the orchestrator feature switches and bounds.
type Config struct {
	// EnableQuestions allows the ANALYZING -> QUESTIONING detour.
	EnableQuestions bool
	// EnableCritic enables the VALIDATING critic loop.
	EnableCritic bool
	// MaxRevisions bounds critic-triggered plan regenerations.
	MaxRevisions int
	// MaxAttempts bounds engine calls per stage, including the first.
	MaxAttempts int
}

// Orchestrator advances workflows using one reasoning engine and one store,
// both injected at construction.
type Orchestrator struct {
	engine engine.Engine
	store  store.Store
	cfg    Config
	now    func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. Zero or negative bounds in cfg fall back to
// the defaults.
func New(eng engine.Engine, st store.Store, cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxRevisions <= 0 {
		cfg.MaxRevisions = DefaultMaxRevisions
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	o := &Orchestrator{engine: eng, store: st, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Advance runs the workflow identified by req until the next return point
// and returns its snapshot. The returned error is non-nil only when the
// store itself failed; every other failure is reported inside the snapshot.
func (o *Orchestrator) Advance(ctx context.Context, req Request) (*workflow.Workflow, error) {
	w, ephemeral, err := o.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		// The request never attached to a stored workflow (bad input,
		// unknown id, terminal resume); report without persisting.
		return w, nil
	}

	for !workflow.IsTerminal(w.State) {
		switch w.State {
		case workflow.StateAnalyzing:
			if questioning := o.analyze(ctx, w); questioning {
				return o.persist(ctx, w)
			}
		case workflow.StateQuestioning:
			// A resume without answers lands here; return the stored
			// questions again rather than inventing progress.
			return w, nil
		case workflow.StatePlanning, workflow.StateRevising:
			o.plan(ctx, w)
		case workflow.StateValidating:
			o.validate(ctx, w)
		default:
			o.fail(w, planerr.Newf(planerr.KindStateConflict, "orchestrator", "Advance",
				"cannot advance from state %s", w.State))
		}
	}

	metrics.ObserveFinished(string(w.State))
	return o.persist(ctx, w)
}

// resolve turns the request into a workflow positioned at the stage to run
// next. The ephemeral flag marks FAILED snapshots that must not be
// persisted; only store I/O failures surface as errors.
func (o *Orchestrator) resolve(ctx context.Context, req Request) (*workflow.Workflow, bool, error) {
	if req.WorkflowID == "" {
		if req.Task == "" {
			return failedSnapshot(req, planerr.KindInput, "task is required", o.now()), true, nil
		}
		w := workflow.New(req.Task, req.Context, o.now())
		o.transition(w, workflow.StateAnalyzing)
		return w, false, nil
	}

	w, err := o.store.Load(ctx, req.WorkflowID)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
		return failedSnapshot(req, planerr.KindStateConflict,
			fmt.Sprintf("workflow %q not found", req.WorkflowID), o.now()), true, nil
	case err != nil:
		return nil, false, planerr.New(planerr.KindStore, "orchestrator", "resolve", err)
	}

	if workflow.IsTerminal(w.State) {
		return failedSnapshot(req, planerr.KindStateConflict,
			fmt.Sprintf("workflow %q is already terminal (%s)", w.ID, w.State), o.now()), true, nil
	}
	if w.State != workflow.StateQuestioning {
		return failedSnapshot(req, planerr.KindStateConflict,
			fmt.Sprintf("workflow %q cannot be resumed from state %s", w.ID, w.State), o.now()), true, nil
	}

	if len(req.Answers) > 0 {
		w.MergeAnswers(req.Answers)
		o.transition(w, workflow.StatePlanning)
	}
	return w, false, nil
}

// analyze runs the ANALYZING stage. It returns true when the invocation
// should stop at QUESTIONING; engine failures move the workflow to FAILED
// and let the main loop finish.
func (o *Orchestrator) analyze(ctx context.Context, w *workflow.Workflow) bool {
	pc := engine.PromptContext{Task: w.Task, Context: w.Context, Answers: w.Answers}
	resp, err := o.callEngine(ctx, engine.StageAnalyze, pc, func(r *engine.Response) error {
		if r.Analysis != nil && r.Analysis.Ambiguous {
			if res := workflow.ValidateQuestions(r.Analysis.Questions); res.HasErrors() {
				return planerr.Newf(planerr.KindSchema, "orchestrator", "analyze",
					"clarifying questions failed validation: %v", res.Errors)
			}
		}
		return nil
	})
	if err != nil {
		o.fail(w, err)
		return false
	}

	ambiguous := false
	questions := []workflow.Question(nil)
	if resp.Analysis != nil {
		ambiguous = resp.Analysis.Ambiguous
		questions = resp.Analysis.Questions
	} else if heuristic.Ambiguous(w.Task) {
		// Engine gave no verdict; fall back to the pure text heuristic.
		ambiguous = true
		questions = heuristic.QuestionsFor(w.Task)
	}

	if o.cfg.EnableQuestions && ambiguous && len(questions) > 0 {
		w.Questions = questions
		o.transition(w, workflow.StateQuestioning)
		return true
	}
	o.transition(w, workflow.StatePlanning)
	return false
}

// plan runs the PLANNING or REVISING stage and moves to VALIDATING on
// success.
func (o *Orchestrator) plan(ctx context.Context, w *workflow.Workflow) {
	stage := engine.StagePlan
	pc := engine.PromptContext{Task: w.Task, Context: w.Context, Answers: w.Answers}
	if w.State == workflow.StateRevising {
		stage = engine.StageRevise
		pc.Plan = w.Plan
		pc.Feedback = w.CriticFeedback
	}

	resp, err := o.callEngine(ctx, stage, pc, func(r *engine.Response) error {
		if res := workflow.ValidatePlan(r.Plan); res.HasErrors() {
			return planerr.Newf(planerr.KindSchema, "orchestrator", "plan",
				"plan failed validation: %v", res.Errors)
		}
		return nil
	})
	if err != nil {
		o.fail(w, err)
		return
	}

	w.Plan = resp.Plan
	o.transition(w, workflow.StateValidating)
}

// validate runs the VALIDATING stage: straight to COMPLETE without the
// critic, otherwise a critic verdict that either completes the workflow or
// sends it back through REVISING within the revision bound.
func (o *Orchestrator) validate(ctx context.Context, w *workflow.Workflow) {
	if !o.cfg.EnableCritic {
		o.transition(w, workflow.StateComplete)
		return
	}

	pc := engine.PromptContext{Task: w.Task, Context: w.Context, Plan: w.Plan}
	resp, err := o.callEngine(ctx, engine.StageCritique, pc, nil)
	if err != nil {
		o.fail(w, err)
		return
	}

	w.CriticFeedback = resp.Critique
	if resp.Critique.Approved {
		o.transition(w, workflow.StateComplete)
		return
	}

	if w.Revisions >= o.cfg.MaxRevisions {
		o.fail(w, planerr.Newf(planerr.KindRevisionLimit, "orchestrator", "validate",
			"revision limit exceeded (%d)", o.cfg.MaxRevisions))
		return
	}
	o.transition(w, workflow.StateRevising)
	w.Revisions++
}

// callEngine invokes the reasoning engine for one stage, retrying retryable
// failures (engine errors and schema violations) up to MaxAttempts total
// attempts. The check hook validates the decoded response inside the retry
// loop so a structurally invalid result is retried like any other
// malformed engine output.
func (o *Orchestrator) callEngine(ctx context.Context, stage engine.Stage, pc engine.PromptContext, check func(*engine.Response) error) (*engine.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		logger.EngineCall(o.engine.ID(), string(stage), attempt)
		started := o.now()

		resp, err := o.engine.Generate(ctx, stage, pc)
		if err == nil && check != nil {
			err = check(resp)
		}
		if err == nil {
			metrics.ObserveEngineRequest(o.engine.ID(), string(stage), "ok")
			logger.EngineResponse(o.engine.ID(), string(stage), o.now().Sub(started))
			return resp, nil
		}

		lastErr = err
		status := "error"
		if planerr.IsKind(err, planerr.KindSchema) {
			status = "schema_violation"
		}
		metrics.ObserveEngineRequest(o.engine.ID(), string(stage), status)
		logger.EngineError(o.engine.ID(), string(stage), err, "attempt", attempt)

		if !planerr.Retryable(err) {
			break
		}
		if attempt < o.cfg.MaxAttempts {
			metrics.ObserveEngineRetry(string(stage))
		}
	}
	return nil, lastErr
}

// transition applies a state edge, logging and counting it. The edges the
// orchestrator requests are always legal for the states it runs from, so a
// rejected edge indicates a corrupted snapshot and fails the workflow.
func (o *Orchestrator) transition(w *workflow.Workflow, to workflow.State) {
	from := w.State
	if err := w.Apply(to, o.now()); err != nil {
		o.fail(w, planerr.New(planerr.KindStateConflict, "orchestrator", "transition", err))
		return
	}
	logger.StageTransition(w.ID, string(from), string(to))
	metrics.ObserveTransition(string(from), string(to))
}

// fail moves the workflow to FAILED carrying the error's kind and reason.
func (o *Orchestrator) fail(w *workflow.Workflow, err error) {
	from := w.State
	kind := string(planerr.KindOf(err))
	if ferr := w.Fail(kind, planerr.Reason(err), o.now()); ferr != nil {
		// Already terminal; keep the existing terminal state.
		return
	}
	logger.StageTransition(w.ID, string(from), string(workflow.StateFailed), "error", planerr.Reason(err))
	metrics.ObserveTransition(string(from), string(workflow.StateFailed))
}

// persist writes the snapshot, assigning an id on first save. A
// compare-and-swap conflict comes back as a FAILED snapshot describing the
// race; the stored workflow is left untouched. Other store failures
// propagate as errors.
func (o *Orchestrator) persist(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if err := o.store.Save(ctx, w); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c := w.Clone()
			c.State = workflow.StateFailed
			c.Error = &workflow.ErrorInfo{
				Kind:    string(planerr.KindStateConflict),
				Message: fmt.Sprintf("workflow %q was modified concurrently", w.ID),
			}
			return c, nil
		}
		return nil, planerr.New(planerr.KindStore, "orchestrator", "persist", err)
	}
	return w, nil
}

// failedSnapshot builds an unpersisted FAILED snapshot for a request that
// never attached to a stored workflow.
func failedSnapshot(req Request, kind planerr.Kind, reason string, now time.Time) *workflow.Workflow {
	w := workflow.New(req.Task, req.Context, now)
	w.ID = req.WorkflowID
	w.State = workflow.StateFailed
	w.Error = &workflow.ErrorInfo{Kind: string(kind), Message: reason}
	return w
}
