package workflow

import "fmt"

// ValidationResult holds errors and warnings from structural validation.
type ValidationResult struct {
	Errors   []string // Blocking: forward references, cycles, missing fields
	Warnings []string // Non-blocking: empty summary or success criteria
}

// HasErrors returns true if there are blocking validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ValidatePlan checks the structural invariants of an execution plan:
// non-empty steps with unique non-empty ids, an independent first step,
// dependencies that only reference earlier steps, and no cycles.
func ValidatePlan(p *ExecutionPlan) *ValidationResult {
	r := &ValidationResult{}
	if p == nil {
		r.Errors = append(r.Errors, "plan is missing")
		return r
	}
	if p.TaskSummary == "" {
		r.Warnings = append(r.Warnings, "plan.task_summary is empty")
	}
	if len(p.SuccessCriteria) == 0 {
		r.Warnings = append(r.Warnings, "plan.success_criteria is empty")
	}
	if len(p.Steps) == 0 {
		r.Errors = append(r.Errors, "plan.steps must be non-empty")
		return r
	}

	validateStepIDs(p, r)
	validateDependencies(p, r)
	for _, cycle := range detectCycles(p) {
		r.Errors = append(r.Errors, fmt.Sprintf("plan contains a dependency cycle: %s", cycle))
	}
	return r
}

// validateStepIDs checks that every step id is non-empty and unique.
func validateStepIDs(p *ExecutionPlan, r *ValidationResult) {
	seen := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if step.ID == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("plan.steps[%d].id is empty", i))
			continue
		}
		if seen[step.ID] {
			r.Errors = append(r.Errors, fmt.Sprintf("plan.steps[%d].id %q is duplicated", i, step.ID))
		}
		seen[step.ID] = true
	}
}

// validateDependencies checks that the first step is independent and that
// every dependency references a step appearing earlier in the plan.
func validateDependencies(p *ExecutionPlan, r *ValidationResult) {
	if len(p.Steps[0].DependsOn) > 0 {
		r.Errors = append(r.Errors, fmt.Sprintf(
			"plan.steps[0] %q must have no dependencies", p.Steps[0].ID))
	}

	earlier := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				r.Errors = append(r.Errors, fmt.Sprintf(
					"plan.steps[%d] %q depends on itself", i, step.ID))
				continue
			}
			if !earlier[dep] {
				r.Errors = append(r.Errors, fmt.Sprintf(
					"plan.steps[%d] %q dependency %q does not reference an earlier step",
					i, step.ID, dep))
			}
		}
		earlier[step.ID] = true
	}
}

// ValidateQuestions checks that a clarifying-question list is non-empty and
// carries unique non-empty ids.
func ValidateQuestions(questions []Question) *ValidationResult {
	r := &ValidationResult{}
	if len(questions) == 0 {
		r.Errors = append(r.Errors, "questions must be non-empty")
		return r
	}
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("questions[%d].id is empty", i))
			continue
		}
		if seen[q.ID] {
			r.Errors = append(r.Errors, fmt.Sprintf("questions[%d].id %q is duplicated", i, q.ID))
		}
		seen[q.ID] = true
		if q.Text == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("questions[%d].text is empty", i))
		}
	}
	return r
}

// detectCycles uses DFS over the dependency graph to find cycles.
func detectCycles(p *ExecutionPlan) []string {
	const (
		white = iota // unvisited
		gray         // in current DFS path
		black        // fully explored
	)

	deps := make(map[string][]string, len(p.Steps))
	for _, step := range p.Steps {
		deps[step.ID] = step.DependsOn
	}

	color := make(map[string]int, len(deps))
	var cycles []string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, dep := range deps[id] {
			switch color[dep] {
			case gray:
				cycles = append(cycles, fmt.Sprintf("%s -> %s", id, dep))
			case white:
				if _, ok := deps[dep]; ok {
					dfs(dep)
				}
			}
		}
		color[id] = black
	}

	for _, step := range p.Steps {
		if color[step.ID] == white {
			dfs(step.ID)
		}
	}
	return cycles
}
