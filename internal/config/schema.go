package config

import (
	"bytes"
	"encoding/json"
	"sync"

	reflectschema "github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "parkstep.config.schema.json"

// Schema reflects the JSON schema of Config. Unknown keys are rejected.
func Schema() *reflectschema.Schema {
	r := reflectschema.Reflector{
		Anonymous:                  true,
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(new(Config))
	s.Title = "parkstep configuration"
	s.Description = "Validates the yaml file passed to the server with -config"
	return s
}

func SchemaJSON() ([]byte, error) {
	b, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "marshal schema")
	}
	return b, nil
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := SchemaJSON()
		if err != nil {
			compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
			compileErr = eris.Wrap(err, "add schema")
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = eris.Wrap(compileErr, "compile schema")
		}
	})
	return compiled, compileErr
}

// ValidateDocument checks a raw yaml document against the schema before
// it is decoded over the defaults.
func ValidateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return eris.Wrap(err, "parse yaml")
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round trip through JSON so the validator sees JSON value types.
	b, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "config must be a string-keyed mapping")
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return eris.Wrap(err, "decode config")
	}
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return eris.Wrap(err, "schema")
	}
	return nil
}
