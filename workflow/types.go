// Package workflow defines the planner's data model and state machine.
//
// A Workflow is the persisted unit of planning work. It moves through a
// fixed set of states (INIT through COMPLETE/FAILED); the legal edges are
// defined by the transition table in states.go and every mutation goes
// through Apply so an illegal edge can never be recorded.
package workflow

import "time"

// Question is a single clarifying question produced during analysis.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Step is one unit of an execution plan. DependsOn may only reference ids
// of steps that appear earlier in the plan.
type Step struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	DependsOn   []string `json:"dependencies,omitempty"`
}

// ExecutionPlan is the validated, dependency-ordered output of planning.
type ExecutionPlan struct {
	TaskSummary     string   `json:"task_summary"`
	Steps           []Step   `json:"steps"`
	SuccessCriteria []string `json:"success_criteria,omitempty"`
}

// CriticFeedback is the structured verdict of the critic stage.
type CriticFeedback struct {
	Approved bool     `json:"approved"`
	Summary  string   `json:"summary,omitempty"`
	Issues   []string `json:"issues,omitempty"`
}

// ErrorInfo describes why a workflow entered FAILED.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Transition records a single recorded state change.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Workflow is the persisted unit of planning work.
//
// StoreRevision is the optimistic-concurrency token managed by the store:
// Load returns the revision it observed and Save rejects the write if the
// stored revision has moved since.
type Workflow struct {
	ID             string            `json:"workflow_id,omitempty"`
	Task           string            `json:"task"`
	Context        map[string]any    `json:"context,omitempty"`
	State          State             `json:"state"`
	Answers        map[string]string `json:"answers,omitempty"`
	Questions      []Question        `json:"questions,omitempty"`
	Plan           *ExecutionPlan    `json:"plan,omitempty"`
	CriticFeedback *CriticFeedback   `json:"critic_feedback,omitempty"`
	Revisions      int               `json:"revisions"`
	Error          *ErrorInfo        `json:"error,omitempty"`
	History        []Transition      `json:"history,omitempty"`
	StoreRevision  int64             `json:"store_revision"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
