package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

// overrideSchema validates catalog override files before any merge runs, so
// a malformed override is rejected as a whole rather than half-applied.
const overrideSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["actions"],
  "properties": {
    "actions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["key", "label", "min_cost", "max_cost"],
        "properties": {
          "key": {"type": "string", "minLength": 1},
          "label": {"type": "string", "minLength": 1},
          "min_cost": {"type": "number", "minimum": 0},
          "max_cost": {"type": "number", "minimum": 0},
          "icon": {"type": "string"}
        }
      }
    }
  }
}`

var compiledOverrideSchema = jsonschema.MustCompileString("catalog_override.json", overrideSchema)

type overrideFile struct {
	Actions []tracker.ActionDefinition `json:"actions"`
}

// Merge validates an override document and merges it over the built-in
// defaults. Override entries replace same-key defaults and append new keys;
// default keys absent from the override are kept, so nothing silently
// disappears.
func Merge(doc []byte) (*Registry, error) {
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("catalog override is not valid JSON: %w", err)
	}
	if err := compiledOverrideSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("catalog override failed schema validation: %w", err)
	}

	var of overrideFile
	if err := json.Unmarshal(doc, &of); err != nil {
		return nil, fmt.Errorf("catalog override decode: %w", err)
	}

	r := Defaults()
	for _, a := range of.Actions {
		if err := validateDefinition(a); err != nil {
			return nil, err
		}
		if _, exists := r.actions[a.Key]; !exists {
			r.order = append(r.order, a.Key)
		}
		r.actions[a.Key] = a
	}
	r.source = SourceMerged
	r.version = 2
	return r, nil
}
