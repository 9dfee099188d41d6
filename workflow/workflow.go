package workflow

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

var (
	// ErrInvalidTransition is returned when a requested edge is not in the
	// transition table.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrTerminalState is returned when a transition is requested from a
	// terminal state.
	ErrTerminalState = errors.New("state is terminal (no outgoing transitions)")
)

// New creates a workflow in INIT for the given task.
func New(task string, context map[string]any, now time.Time) *Workflow {
	return &Workflow{
		Task:      task,
		Context:   context,
		State:     StateInit,
		Answers:   map[string]string{},
		History:   []Transition{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply transitions the workflow to the target state, recording the edge in
// the history. It rejects edges not present in the transition table; the
// workflow is left unchanged on error.
func (w *Workflow) Apply(to State, now time.Time) error {
	if IsTerminal(w.State) {
		return fmt.Errorf("%w: %s", ErrTerminalState, w.State)
	}
	if !IsValidTransition(w.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.State, to)
	}
	w.History = append(w.History, Transition{From: w.State, To: to, Timestamp: now})
	w.State = to
	w.UpdatedAt = now
	return nil
}

// Fail transitions the workflow to FAILED with the given error descriptor.
// FAILED is reachable from every non-terminal state, so this only fails when
// the workflow is already terminal.
func (w *Workflow) Fail(kind, message string, now time.Time) error {
	if err := w.Apply(StateFailed, now); err != nil {
		return err
	}
	w.Error = &ErrorInfo{Kind: kind, Message: message}
	return nil
}

// MergeAnswers folds caller-supplied answers into the workflow. Existing
// answers with the same question id are overwritten.
func (w *Workflow) MergeAnswers(answers map[string]string) {
	if len(answers) == 0 {
		return
	}
	if w.Answers == nil {
		w.Answers = make(map[string]string, len(answers))
	}
	maps.Copy(w.Answers, answers)
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	c := *w
	if w.Context != nil {
		c.Context = make(map[string]any, len(w.Context))
		maps.Copy(c.Context, w.Context)
	}
	if w.Answers != nil {
		c.Answers = make(map[string]string, len(w.Answers))
		maps.Copy(c.Answers, w.Answers)
	}
	if w.Questions != nil {
		c.Questions = make([]Question, len(w.Questions))
		copy(c.Questions, w.Questions)
	}
	if w.History != nil {
		c.History = make([]Transition, len(w.History))
		copy(c.History, w.History)
	}
	if w.Plan != nil {
		c.Plan = w.Plan.Clone()
	}
	if w.CriticFeedback != nil {
		fb := *w.CriticFeedback
		if w.CriticFeedback.Issues != nil {
			fb.Issues = make([]string, len(w.CriticFeedback.Issues))
			copy(fb.Issues, w.CriticFeedback.Issues)
		}
		c.CriticFeedback = &fb
	}
	if w.Error != nil {
		e := *w.Error
		c.Error = &e
	}
	return &c
}

// Clone returns a deep copy of the plan.
func (p *ExecutionPlan) Clone() *ExecutionPlan {
	c := *p
	c.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		c.Steps[i] = s
		if s.DependsOn != nil {
			c.Steps[i].DependsOn = make([]string, len(s.DependsOn))
			copy(c.Steps[i].DependsOn, s.DependsOn)
		}
	}
	if p.SuccessCriteria != nil {
		c.SuccessCriteria = make([]string, len(p.SuccessCriteria))
		copy(c.SuccessCriteria, p.SuccessCriteria)
	}
	return &c
}
