package heuristic

import (
	"fmt"
	"strings"

	"github.com/planweave/planweave/workflow"
)

// vagueTerms are words that signal an underspecified task.
var vagueTerms = map[string]bool{
	"something": true,
	"stuff":     true,
	"things":    true,
	"improve":   true,
	"better":    true,
	"nicer":     true,
	"somehow":   true,
	"maybe":     true,
	"etc":       true,
	"faster":    true,
}

// ambiguousThreshold is the score at or above which a task is considered
// ambiguous enough to warrant clarifying questions.
const ambiguousThreshold = 2

// Score counts ambiguity signals in a task description. It is a pure
// function so the policy can evolve without touching the state machine.
//
// Signals: very short descriptions, vague wording, and a trailing question
// mark (the caller is asking, not specifying).
func Score(task string) int {
	trimmed := strings.TrimSpace(task)
	words := strings.Fields(strings.ToLower(trimmed))

	score := 0
	if len(words) < 4 {
		score += 2
	}
	for _, w := range words {
		if vagueTerms[strings.Trim(w, ".,;:!?")] {
			score++
		}
	}
	if strings.HasSuffix(trimmed, "?") {
		score++
	}
	return score
}

// Ambiguous reports whether a task should trigger the clarifying-question
// detour.
func Ambiguous(task string) bool {
	return Score(task) >= ambiguousThreshold
}

// QuestionsFor returns the deterministic clarifying questions for an
// ambiguous task.
func QuestionsFor(task string) []workflow.Question {
	return []workflow.Question{
		{ID: "Q1", Text: fmt.Sprintf("What is the concrete outcome expected from %q?", strings.TrimSpace(task))},
		{ID: "Q2", Text: "Which technologies or existing systems must the work fit into?"},
		{ID: "Q3", Text: "How will you verify the result is acceptable?"},
	}
}
