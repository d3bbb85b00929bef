package helpers

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// SchemaFor reflects an inline JSON schema for v.
func SchemaFor(v interface{}) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	return reflector.Reflect(v)
}

// SchemaJSON renders the schemas for the named values as one indented JSON document.
func SchemaJSON(values map[string]interface{}) ([]byte, error) {
	schemas := map[string]*jsonschema.Schema{}
	for name, v := range values {
		schemas[name] = SchemaFor(v)
	}
	b, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "could not encode schema")
	}
	return b, nil
}
