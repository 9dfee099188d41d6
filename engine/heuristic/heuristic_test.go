package heuristic

import (
	"context"
	"testing"

	"github.com/planweave/planweave/engine"
	"github.com/planweave/planweave/workflow"
)

func TestScore(t *testing.T) {
	cases := []struct {
		task string
		want int
	}{
		{"Configure the persistence layer for the billing service", 0},
		{"fix stuff", 3},                // short + vague
		{"make it better", 3},           // short + vague
		{"improve the dashboard load time by caching queries", 1},
		{"can we do something about the build?", 2}, // "something" + trailing question
		{"", 2},                                     // empty is maximally underspecified
	}
	for _, c := range cases {
		if got := Score(c.task); got != c.want {
			t.Errorf("Score(%q) = %d, want %d", c.task, got, c.want)
		}
	}
}

func TestAmbiguous(t *testing.T) {
	if Ambiguous("Configure the persistence layer for the billing service") {
		t.Error("specific task classified ambiguous")
	}
	if !Ambiguous("fix stuff") {
		t.Error("vague task classified unambiguous")
	}
}

func TestQuestionsForAreValid(t *testing.T) {
	qs := QuestionsFor("fix stuff")
	if r := workflow.ValidateQuestions(qs); r.HasErrors() {
		t.Errorf("generated questions invalid: %v", r.Errors)
	}
}

func TestAnalyzeStage(t *testing.T) {
	e := New()
	ctx := context.Background()

	resp, err := e.Generate(ctx, engine.StageAnalyze, engine.PromptContext{Task: "fix stuff"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Analysis == nil || !resp.Analysis.Ambiguous {
		t.Fatalf("vague task should be ambiguous, got %+v", resp.Analysis)
	}
	if len(resp.Analysis.Questions) == 0 {
		t.Error("ambiguous analysis should carry questions")
	}

	// Once answers are present the detour must not repeat.
	resp, err = e.Generate(ctx, engine.StageAnalyze, engine.PromptContext{
		Task:    "fix stuff",
		Answers: map[string]string{"Q1": "the login page crash"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Analysis.Ambiguous {
		t.Error("task with answers should not be ambiguous again")
	}
}

func TestPlanStageIsValidAndDeterministic(t *testing.T) {
	e := New()
	ctx := context.Background()
	pc := engine.PromptContext{Task: "Configure the persistence layer for the billing service"}

	first, err := e.Generate(ctx, engine.StagePlan, pc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if r := workflow.ValidatePlan(first.Plan); r.HasErrors() {
		t.Fatalf("heuristic plan invalid: %v", r.Errors)
	}

	second, _ := e.Generate(ctx, engine.StagePlan, pc)
	if len(first.Plan.Steps) != len(second.Plan.Steps) {
		t.Error("plan generation should be deterministic")
	}
}

func TestReviseStageAddsRemediationSteps(t *testing.T) {
	e := New()
	resp, err := e.Generate(context.Background(), engine.StageRevise, engine.PromptContext{
		Task: "Roll out feature",
		Feedback: &workflow.CriticFeedback{
			Approved: false,
			Issues:   []string{"no rollback step", "missing monitoring"},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Plan.Steps) != 5 {
		t.Fatalf("Steps = %d, want 3 base + 2 remediation", len(resp.Plan.Steps))
	}
	if r := workflow.ValidatePlan(resp.Plan); r.HasErrors() {
		t.Errorf("revised plan invalid: %v", r.Errors)
	}
}

func TestCritiqueApproves(t *testing.T) {
	e := New()
	resp, err := e.Generate(context.Background(), engine.StageCritique, engine.PromptContext{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Critique == nil || !resp.Critique.Approved {
		t.Errorf("Critique = %+v, want approval", resp.Critique)
	}
}
