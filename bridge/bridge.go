// Package bridge implements the stdin/stdout protocol in front of the
// orchestrator.
//
// One request document is read from stdin and one snapshot document is
// written to stdout per invocation. Failures are reported inside the
// response body with state FAILED; Run returns an error only when the
// workflow store itself is unusable, which is the sole condition allowed
// to surface as a non-zero process exit.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/planweave/planweave/logger"
	"github.com/planweave/planweave/orchestrator"
	"github.com/planweave/planweave/planerr"
	"github.com/planweave/planweave/workflow"
)

// request mirrors the accepted JSON object shape.
type request struct {
	WorkflowID string            `json:"workflow_id,omitempty"`
	Task       string            `json:"task"`
	Context    map[string]any    `json:"context,omitempty"`
	Answers    map[string]string `json:"answers,omitempty"`
}

// Response is the single JSON document written to stdout.
type Response struct {
	State      string                   `json:"state"`
	WorkflowID string                   `json:"workflow_id,omitempty"`
	Questions  []workflow.Question      `json:"questions,omitempty"`
	Plan       *workflow.ExecutionPlan  `json:"plan,omitempty"`
	Critic     *workflow.CriticFeedback `json:"critic_feedback,omitempty"`
	Error      *workflow.ErrorInfo      `json:"error,omitempty"`
	Revisions  int                      `json:"revisions"`
}

// Advancer is the orchestrator capability the bridge drives.
type Advancer interface {
	Advance(ctx context.Context, req orchestrator.Request) (*workflow.Workflow, error)
}

// Run reads one request from in, advances the workflow, and writes one
// response to out.
func Run(ctx context.Context, in io.Reader, out io.Writer, orc Advancer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return writeResponse(out, failedResponse(planerr.KindInput, fmt.Sprintf("read input: %v", err)))
	}

	req, perr := parseRequest(raw)
	if perr != nil {
		logger.Warn("rejected request", "error", perr)
		return writeResponse(out, failedResponse(planerr.KindInput, perr.Error()))
	}

	w, err := orc.Advance(ctx, req)
	if err != nil {
		// Store I/O failure: nothing could be persisted, so this is the one
		// path allowed to fail the process. Emit a body anyway for callers
		// that only read stdout.
		_ = writeResponse(out, failedResponse(planerr.KindStore, planerr.Reason(err)))
		return err
	}
	return writeResponse(out, snapshotResponse(w))
}

// parseRequest accepts a bare JSON string, a request object, or plain
// non-JSON text (treated as the task).
func parseRequest(raw []byte) (orchestrator.Request, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return orchestrator.Request{}, fmt.Errorf("empty input")
	}

	switch trimmed[0] {
	case '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		var req request
		if err := dec.Decode(&req); err != nil {
			return orchestrator.Request{}, fmt.Errorf("parse request: %v", err)
		}
		if req.Task == "" && req.WorkflowID == "" {
			return orchestrator.Request{}, fmt.Errorf("request needs a task or a workflow_id")
		}
		return orchestrator.Request{
			WorkflowID: req.WorkflowID,
			Task:       req.Task,
			Context:    req.Context,
			Answers:    req.Answers,
		}, nil
	case '"':
		var task string
		if err := json.Unmarshal(trimmed, &task); err != nil {
			return orchestrator.Request{}, fmt.Errorf("parse request: %v", err)
		}
		if strings.TrimSpace(task) == "" {
			return orchestrator.Request{}, fmt.Errorf("empty task")
		}
		return orchestrator.Request{Task: strings.TrimSpace(task)}, nil
	default:
		// Raw text on stdin is the task.
		return orchestrator.Request{Task: string(trimmed)}, nil
	}
}

// snapshotResponse projects a workflow snapshot onto the wire shape.
// Questions are only surfaced while the workflow is actually waiting on
// them.
func snapshotResponse(w *workflow.Workflow) Response {
	resp := Response{
		State:      string(w.State),
		WorkflowID: w.ID,
		Plan:       w.Plan,
		Critic:     w.CriticFeedback,
		Error:      w.Error,
		Revisions:  w.Revisions,
	}
	if w.State == workflow.StateQuestioning {
		resp.Questions = w.Questions
	}
	return resp
}

func failedResponse(kind planerr.Kind, message string) Response {
	return Response{
		State: string(workflow.StateFailed),
		Error: &workflow.ErrorInfo{Kind: string(kind), Message: message},
	}
}

func writeResponse(out io.Writer, resp Response) error {
	enc := json.NewEncoder(out)
	return enc.Encode(resp)
}
