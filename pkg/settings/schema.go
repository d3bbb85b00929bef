package settings

import (
	"github.com/invopop/jsonschema"
)

// JSONSchema describes the wire form of Settings: known keys are numeric, but
// values that failed to parse are sent as strings.
func (Settings) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set(KeyTemperature, &jsonschema.Schema{
		OneOf:       []*jsonschema.Schema{{Type: "number"}, {Type: "string"}},
		Description: "sampling temperature",
	})
	props.Set(KeyTopP, &jsonschema.Schema{
		OneOf:       []*jsonschema.Schema{{Type: "number"}, {Type: "string"}},
		Description: "nucleus sampling mass",
	})
	props.Set(KeyMaxCompletionTokens, &jsonschema.Schema{
		OneOf:       []*jsonschema.Schema{{Type: "integer"}, {Type: "string"}},
		Description: "upper bound on generated tokens",
	})
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}
