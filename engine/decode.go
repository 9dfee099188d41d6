package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/planweave/planweave/planerr"
	"github.com/planweave/planweave/workflow"
)

// Per-stage JSON Schemas. Raw engine output is checked against these before
// it is decoded into typed structs, so loosely-typed payloads never
// propagate past this boundary.
const (
	analysisSchema = `{
		"type": "object",
		"required": ["ambiguous"],
		"additionalProperties": false,
		"properties": {
			"ambiguous": {"type": "boolean"},
			"questions": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "text"],
					"additionalProperties": false,
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"text": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}`

	planSchema = `{
		"type": "object",
		"required": ["task_summary", "steps"],
		"additionalProperties": false,
		"properties": {
			"task_summary": {"type": "string"},
			"steps": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["id", "description"],
					"additionalProperties": false,
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"description": {"type": "string"},
						"dependencies": {
							"type": "array",
							"items": {"type": "string"}
						}
					}
				}
			},
			"success_criteria": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}`

	critiqueSchema = `{
		"type": "object",
		"required": ["approved"],
		"additionalProperties": false,
		"properties": {
			"approved": {"type": "boolean"},
			"summary": {"type": "string"},
			"issues": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}`
)

// schemaFor returns the JSON Schema source for a stage.
func schemaFor(stage Stage) (string, error) {
	switch stage {
	case StageAnalyze:
		return analysisSchema, nil
	case StagePlan, StageRevise:
		return planSchema, nil
	case StageCritique:
		return critiqueSchema, nil
	}
	return "", planerr.Newf(planerr.KindEngine, "engine", "schemaFor", "unknown stage %q", stage)
}

// DecodeResponse validates raw engine output against the stage schema and
// decodes it into a tagged Response. Schema violations and malformed JSON
// are reported as KindSchema so the orchestrator can retry the stage.
func DecodeResponse(stage Stage, raw []byte) (*Response, error) {
	schema, err := schemaFor(stage)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, planerr.New(planerr.KindSchema, "engine", "DecodeResponse",
			fmt.Errorf("stage %s: %w", stage, err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, planerr.Newf(planerr.KindSchema, "engine", "DecodeResponse",
			"stage %s response rejected: %s", stage, strings.Join(msgs, "; "))
	}

	resp := &Response{}
	switch stage {
	case StageAnalyze:
		var a Analysis
		if err := strictDecode(raw, &a); err != nil {
			return nil, err
		}
		resp.Analysis = &a
	case StagePlan, StageRevise:
		var p workflow.ExecutionPlan
		if err := strictDecode(raw, &p); err != nil {
			return nil, err
		}
		resp.Plan = &p
	case StageCritique:
		var c workflow.CriticFeedback
		if err := strictDecode(raw, &c); err != nil {
			return nil, err
		}
		resp.Critique = &c
	}
	return resp, nil
}

// strictDecode unmarshals raw into dst, rejecting unknown fields.
func strictDecode(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return planerr.New(planerr.KindSchema, "engine", "DecodeResponse", err)
	}
	return nil
}
