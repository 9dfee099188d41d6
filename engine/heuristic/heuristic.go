// Package heuristic provides a deterministic rule-based reasoning engine,
// used when no live LLM access is configured. Its responses are derived
// purely from the prompt context, so the same input always yields the same
// plan.
package heuristic

import (
	"context"
	"fmt"
	"strings"

	"github.com/planweave/planweave/engine"
	"github.com/planweave/planweave/planerr"
	"github.com/planweave/planweave/workflow"
)

// summaryLimit caps the task restatement carried into plans.
const summaryLimit = 80

// Engine is the rule-based reasoning engine.
type Engine struct{}

// New creates a heuristic engine.
func New() *Engine {
	return &Engine{}
}

func init() {
	engine.RegisterFactory("heuristic", func(spec engine.Spec) (engine.Engine, error) {
		return New(), nil
	})
}

// ID returns the provider identifier.
func (e *Engine) ID() string {
	return "heuristic"
}

// Generate produces a deterministic response for the requested stage.
func (e *Engine) Generate(ctx context.Context, stage engine.Stage, pc engine.PromptContext) (*engine.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, planerr.New(planerr.KindEngine, "heuristic", "Generate", err)
	}

	switch stage {
	case engine.StageAnalyze:
		return e.analyze(pc), nil
	case engine.StagePlan, engine.StageRevise:
		return &engine.Response{Plan: e.buildPlan(pc)}, nil
	case engine.StageCritique:
		// The rule-based critic has no opinion beyond structural checks,
		// which the orchestrator already performs.
		return &engine.Response{Critique: &workflow.CriticFeedback{
			Approved: true,
			Summary:  "plan accepted",
		}}, nil
	}
	return nil, planerr.Newf(planerr.KindEngine, "heuristic", "Generate", "unknown stage %q", stage)
}

// analyze applies the pure ambiguity heuristic to the task text.
func (e *Engine) analyze(pc engine.PromptContext) *engine.Response {
	a := &engine.Analysis{}
	if len(pc.Answers) == 0 && Ambiguous(pc.Task) {
		a.Ambiguous = true
		a.Questions = QuestionsFor(pc.Task)
	}
	return &engine.Response{Analysis: a}
}

// buildPlan derives a fixed-shape plan from the task, answers, and any
// critic feedback carried in the prompt context.
func (e *Engine) buildPlan(pc engine.PromptContext) *workflow.ExecutionPlan {
	summary := strings.TrimSpace(pc.Task)
	if len(summary) > summaryLimit {
		summary = summary[:summaryLimit]
	}

	steps := []workflow.Step{
		{ID: "s1", Description: fmt.Sprintf("Pin down requirements and constraints for: %s", summary)},
		{ID: "s2", Description: "Implement the change in the smallest reviewable increments", DependsOn: []string{"s1"}},
		{ID: "s3", Description: "Verify the result against the stated requirements", DependsOn: []string{"s2"}},
	}

	// Fold caller answers into the requirements step so the plan reflects
	// the clarifying-question detour.
	if len(pc.Answers) > 0 {
		steps[0].Description += fmt.Sprintf(" (incorporating %d clarifying answers)", len(pc.Answers))
	}

	// A revision adds an explicit remediation step per critic issue.
	if pc.Feedback != nil {
		prev := steps[len(steps)-1].ID
		for i, issue := range pc.Feedback.Issues {
			id := fmt.Sprintf("s%d", len(steps)+1)
			steps = append(steps, workflow.Step{
				ID:          id,
				Description: fmt.Sprintf("Address review finding %d: %s", i+1, issue),
				DependsOn:   []string{prev},
			})
			prev = id
		}
	}

	return &workflow.ExecutionPlan{
		TaskSummary: summary,
		Steps:       steps,
		SuccessCriteria: []string{
			"every plan step has been executed and checked off",
			"the verification step confirms the original task is satisfied",
		},
	}
}

// Close is a no-op for the heuristic engine.
func (e *Engine) Close() error {
	return nil
}

// Ensure Engine implements engine.Engine.
var _ engine.Engine = (*Engine)(nil)
