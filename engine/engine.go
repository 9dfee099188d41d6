// Package engine defines the reasoning-engine capability the planner drives.
//
// An Engine turns a stage request (analyze, plan, revise, critique) into a
// structured response. Three interchangeable implementations exist: a live
// provider shelling out to an external LLM command-line tool (llmcli), a
// deterministic rule-based provider (heuristic), and a scripted fixture
// provider for reproducible tests (script). The orchestrator receives one
// Engine instance chosen at startup; it never resolves providers through
// ambient global state.
package engine

import (
	"context"

	"github.com/planweave/planweave/workflow"
)

// Stage identifies what the engine is being asked to produce.
type Stage string

// Stages.
const (
	// StageAnalyze asks whether the task is sufficiently specified and,
	// if not, for clarifying questions.
	StageAnalyze Stage = "analyze"
	// StagePlan asks for an execution plan.
	StagePlan Stage = "plan"
	// StageRevise asks for a regenerated plan incorporating critic feedback.
	StageRevise Stage = "revise"
	// StageCritique asks the critic role for a verdict on the current plan.
	StageCritique Stage = "critique"
)

// PromptContext carries everything an engine may need to answer a stage
// request. Fields irrelevant to the requested stage are left zero.
type PromptContext struct {
	Task     string
	Context  map[string]any
	Answers  map[string]string
	Plan     *workflow.ExecutionPlan
	Feedback *workflow.CriticFeedback
}

// Analysis is the analyze-stage verdict.
type Analysis struct {
	Ambiguous bool                `json:"ambiguous"`
	Questions []workflow.Question `json:"questions,omitempty"`
}

// Response is the tagged result of a Generate call. Exactly one field is
// set, matching the requested stage: Analysis for analyze, Plan for
// plan/revise, Critique for critique.
type Response struct {
	Analysis *Analysis
	Plan     *workflow.ExecutionPlan
	Critique *workflow.CriticFeedback
}

// Engine is the capability abstraction over "ask the model to do X".
type Engine interface {
	// ID returns the provider identifier (e.g. "heuristic", "script").
	ID() string

	// Generate produces the structured response for a stage. Failures are
	// planerr errors: KindEngine for timeouts, exhausted fixtures and
	// transport problems, KindSchema for non-conforming responses.
	Generate(ctx context.Context, stage Stage, pc PromptContext) (*Response, error)

	// Close cleans up provider resources.
	Close() error
}
