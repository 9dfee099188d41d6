// Package script provides a fixture-driven reasoning engine that replays
// pre-scripted responses deterministically. It is the backbone of the test
// suite: no live dependency, fully order-deterministic, and a hard error
// when a test run asks for more than the script contains.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/planweave/planweave/engine"
	"github.com/planweave/planweave/planerr"
)

// entry is one scripted response in file order.
type entry struct {
	Stage    string          `json:"stage"`
	Response json.RawMessage `json:"response"`
}

// script is the on-disk fixture document.
type script struct {
	Responses []entry `json:"responses" yaml:"responses"`
}

// yamlEntry mirrors entry for YAML decoding, where the response is an
// arbitrary node that gets re-encoded as JSON.
type yamlEntry struct {
	Stage    string `yaml:"stage"`
	Response any    `yaml:"response"`
}

// yamlScript mirrors script for YAML decoding.
type yamlScript struct {
	Responses []yamlEntry `yaml:"responses"`
}

// Engine replays scripted responses keyed by stage.
type Engine struct {
	path string

	mu       sync.Mutex
	queues   map[engine.Stage][]json.RawMessage
	total    int
	consumed int
}

func init() {
	engine.RegisterFactory("script", func(spec engine.Spec) (engine.Engine, error) {
		return NewFromFile(spec.ScriptPath)
	})
}

// NewFromFile loads a fixture script from a YAML or JSON file, detected by
// extension (.json is JSON, everything else is parsed as YAML).
func NewFromFile(path string) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("fixture script path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture script: %w", err)
	}

	var entries []entry
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		entries, err = parseJSON(data)
	} else {
		entries, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture script %s: %w", path, err)
	}
	return New(path, entries)
}

// New builds a script engine from already-parsed entries.
func New(path string, entries []entry) (*Engine, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("fixture script contains no responses")
	}

	e := &Engine{
		path:   path,
		queues: make(map[engine.Stage][]json.RawMessage),
		total:  len(entries),
	}
	for i, ent := range entries {
		stage := engine.Stage(ent.Stage)
		if ent.Stage == "" {
			return nil, fmt.Errorf("fixture entry %d has no stage", i)
		}
		if len(ent.Response) == 0 {
			return nil, fmt.Errorf("fixture entry %d (%s) has no response", i, ent.Stage)
		}
		e.queues[stage] = append(e.queues[stage], ent.Response)
	}
	return e, nil
}

// parseJSON decodes a JSON fixture document.
func parseJSON(data []byte) ([]entry, error) {
	var s script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Responses, nil
}

// parseYAML decodes a YAML fixture document, normalizing each response
// node to JSON.
func parseYAML(data []byte) ([]entry, error) {
	var s yamlScript
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(s.Responses))
	for i, ye := range s.Responses {
		raw, err := json.Marshal(ye.Response)
		if err != nil {
			return nil, fmt.Errorf("entry %d: response is not JSON-representable: %w", i, err)
		}
		entries = append(entries, entry{Stage: ye.Stage, Response: raw})
	}
	return entries, nil
}

// ID returns the provider identifier.
func (e *Engine) ID() string {
	return "script"
}

// Generate consumes the next scripted entry for the requested stage.
// Requesting a stage with no remaining entry is a hard error so a test run
// that drifts from its script fails immediately instead of looping.
func (e *Engine) Generate(ctx context.Context, stage engine.Stage, pc engine.PromptContext) (*engine.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, planerr.New(planerr.KindEngine, "script", "Generate", err)
	}

	raw, err := e.next(stage)
	if err != nil {
		return nil, err
	}
	return engine.DecodeResponse(stage, raw)
}

// next pops the next scripted response for a stage.
func (e *Engine) next(stage engine.Stage) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	queue := e.queues[stage]
	if len(queue) == 0 {
		return nil, planerr.Newf(planerr.KindEngine, "script", "Generate",
			"fixture script exhausted for stage %s (consumed %d of %d entries)",
			stage, e.consumed, e.total)
	}
	raw := queue[0]
	e.queues[stage] = queue[1:]
	e.consumed++
	return raw, nil
}

// Remaining returns how many scripted entries have not been consumed.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total - e.consumed
}

// Close is a no-op for the script engine.
func (e *Engine) Close() error {
	return nil
}

// Ensure Engine implements engine.Engine.
var _ engine.Engine = (*Engine)(nil)
