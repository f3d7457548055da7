// Package events validates block payloads against per-event-type JSON
// Schemas. Event types without a registered schema pass through untouched,
// keeping the taxonomy open for forward-compatible payloads.
package events

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/proctorhq/examledger/pkg/chain"
)

// Validator holds compiled schemas keyed by event type.
type Validator struct {
	schemas map[chain.EventType]*jsonschema.Schema
}

// NewValidator compiles the seeded schemas. Registration of additional
// schemas is allowed before first use; the validator is read-only after.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[chain.EventType]*jsonschema.Schema)}
	for et, raw := range seededSchemas {
		if err := v.Register(et, raw); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Register compiles and stores a schema for the given event type,
// replacing any previous one.
func (v *Validator) Register(eventType chain.EventType, schema string) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://examledger.schemas.local/events/%s.schema.json", eventType)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return fmt.Errorf("events: schema load for %s failed: %w", eventType, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("events: schema compile for %s failed: %w", eventType, err)
	}
	v.schemas[eventType] = compiled
	return nil
}

// Validate checks payload against the schema for eventType. Unknown event
// types are accepted as-is; this is the escape hatch for payloads not yet
// known to the schema set.
func (v *Validator) Validate(eventType chain.EventType, payload map[string]any) error {
	schema, ok := v.schemas[eventType]
	if !ok {
		return nil
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if err := schema.Validate(toPlain(payload)); err != nil {
		return fmt.Errorf("events: payload for %s rejected: %w", eventType, err)
	}
	return nil
}

// Known reports whether a schema is registered for eventType.
func (v *Validator) Known(eventType chain.EventType) bool {
	_, ok := v.schemas[eventType]
	return ok
}

// toPlain normalizes nested maps so the schema library sees only
// map[string]any / []any values.
func toPlain(val any) any {
	switch t := val.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = toPlain(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = toPlain(v)
		}
		return out
	default:
		return val
	}
}

// seededSchemas covers the event types whose payload shape is fixed by the
// proctoring domain. Everything else rides the escape hatch.
var seededSchemas = map[chain.EventType]string{
	chain.EventSystemInit: `{
		"type": "object",
		"properties": {
			"system":      {"type": "string"},
			"version":     {"type": "string"},
			"description": {"type": "string"}
		},
		"required": ["system", "version"]
	}`,
	chain.EventAttemptStart: `{
		"type": "object",
		"properties": {
			"exam_id":    {"type": "string"},
			"student_id": {"type": "string"}
		},
		"required": ["exam_id", "student_id"]
	}`,
	chain.EventAttemptSubmit: `{
		"type": "object",
		"properties": {
			"exam_id":       {"type": "string"},
			"student_id":    {"type": "string"},
			"answers_count": {"type": "integer", "minimum": 0}
		},
		"required": ["exam_id"]
	}`,
	chain.EventProctoringViolation: `{
		"type": "object",
		"properties": {
			"violation_type": {"type": "string"},
			"confidence":     {"type": "number", "minimum": 0, "maximum": 1}
		},
		"required": ["confidence"]
	}`,
	chain.EventAIHighRisk: `{
		"type": "object",
		"properties": {
			"risk_score": {"type": "number", "minimum": 0, "maximum": 1},
			"model":      {"type": "string"}
		},
		"required": ["risk_score"]
	}`,
	chain.EventSignerKeyRotated: `{
		"type": "object",
		"properties": {
			"old_key_id": {"type": "string"},
			"new_key_id": {"type": "string"},
			"public_key": {"type": "string"}
		},
		"required": ["new_key_id", "public_key"]
	}`,
}
