// Package llmcli provides the live reasoning engine. It shells out to an
// external LLM command-line tool, writes the prompt on the tool's stdin,
// and expects a single JSON document on its stdout.
package llmcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/planweave/planweave/engine"
	"github.com/planweave/planweave/logger"
	"github.com/planweave/planweave/planerr"
)

// defaultTimeout bounds a single engine call when no timeout is configured.
const defaultTimeout = 60 * time.Second

// stageInstructions tell the external model what JSON shape to produce.
var stageInstructions = map[engine.Stage]string{
	engine.StageAnalyze: `Decide whether the task below is specified well enough to plan.
Respond with exactly one JSON object: {"ambiguous": bool, "questions": [{"id": str, "text": str}, ...]}.
Include questions only when ambiguous is true.`,
	engine.StagePlan: `Produce an execution plan for the task below.
Respond with exactly one JSON object: {"task_summary": str, "steps": [{"id": str, "description": str, "dependencies": [str, ...]}, ...], "success_criteria": [str, ...]}.
Dependencies may only reference ids of earlier steps; the first step has none.`,
	engine.StageRevise: `Regenerate the execution plan below, addressing every critic issue.
Respond with exactly one JSON object in the same shape as the original plan.`,
	engine.StageCritique: `Review the execution plan below as a critic.
Respond with exactly one JSON object: {"approved": bool, "summary": str, "issues": [str, ...]}.`,
}

// Engine shells out to an external LLM CLI for each Generate call.
type Engine struct {
	name    string
	args    []string
	timeout time.Duration
}

func init() {
	engine.RegisterFactory("llmcli", func(spec engine.Spec) (engine.Engine, error) {
		return New(spec.Command, spec.Timeout)
	})
}

// New creates a live engine for the given command line, e.g.
// "llm --no-stream". The timeout bounds each call; zero means the default.
func New(command string, timeout time.Duration) (*Engine, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("llm command is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{name: parts[0], args: parts[1:], timeout: timeout}, nil
}

// ID returns the provider identifier.
func (e *Engine) ID() string {
	return "llmcli"
}

// Generate runs the external command once and decodes its stdout. The call
// is bounded by the configured timeout; on expiry the child process is
// killed and the error is reported as an engine failure, leaving the
// caller's persisted state untouched.
func (e *Engine) Generate(ctx context.Context, stage engine.Stage, pc engine.PromptContext) (*engine.Response, error) {
	instructions, ok := stageInstructions[stage]
	if !ok {
		return nil, planerr.Newf(planerr.KindEngine, "llmcli", "Generate", "unknown stage %q", stage)
	}

	prompt, err := buildPrompt(instructions, pc)
	if err != nil {
		return nil, planerr.New(planerr.KindEngine, "llmcli", "Generate", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	cmd := exec.CommandContext(callCtx, e.name, e.args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.EngineCall(e.ID(), string(stage), 1, "command", e.name)
	if err := cmd.Run(); err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, planerr.Newf(planerr.KindEngine, "llmcli", "Generate",
				"command %s timed out after %s", e.name, e.timeout)
		}
		return nil, planerr.Newf(planerr.KindEngine, "llmcli", "Generate",
			"command %s failed: %v (stderr: %s)", e.name, err, strings.TrimSpace(stderr.String()))
	}
	logger.EngineResponse(e.ID(), string(stage), time.Since(started))

	return engine.DecodeResponse(stage, extractJSON(stdout.Bytes()))
}

// buildPrompt renders the instructions plus the prompt context as the
// document written to the child's stdin.
func buildPrompt(instructions string, pc engine.PromptContext) (string, error) {
	payload := map[string]any{"task": pc.Task}
	if len(pc.Context) > 0 {
		payload["context"] = pc.Context
	}
	if len(pc.Answers) > 0 {
		payload["answers"] = pc.Answers
	}
	if pc.Plan != nil {
		payload["plan"] = pc.Plan
	}
	if pc.Feedback != nil {
		payload["critic_feedback"] = pc.Feedback
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return instructions + "\n\n" + string(body) + "\n", nil
}

// extractJSON strips markdown code fences some CLI tools wrap around their
// output and trims surrounding whitespace.
func extractJSON(out []byte) []byte {
	s := strings.TrimSpace(string(out))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return []byte(s)
}

// Close is a no-op; each call spawns its own process.
func (e *Engine) Close() error {
	return nil
}

// Ensure Engine implements engine.Engine.
var _ engine.Engine = (*Engine)(nil)
