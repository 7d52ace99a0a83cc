package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/config/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	configSchemaName   = "ossa-collector-config.schema.json"
	advisorySchemaName = "ossa.schema.json"
	userSchemaName     = "user.schema.json"
)

// ValidateAgainstSchema compiles the given schema bytes and runs it against
// the JSON in data. The `name` is only used to identify the schema in errors.
func ValidateAgainstSchema(name string, schemaBytes, data []byte, ref string) error {
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(name, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("loading schema %q: %w", name, err)
	}

	// If ref is empty we compile the root; otherwise compile the subschema.
	target := name
	if ref != "" {
		if strings.HasPrefix(ref, "#") {
			target = name + ref
		} else {
			target = name + "#" + ref
		}
	}
	sch, err := comp.Compile(target)
	if err != nil {
		return fmt.Errorf("compiling schema %q: %w", name, err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON for %q: %w", name, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %q failed: %w", name, err)
	}
	return nil
}

// ValidateConfigJSON runs the global config schema against data
func ValidateConfigJSON(data []byte) error {
	return ValidateAgainstSchema(configSchemaName, schema.ConfigSchema, data, "")
}

// ValidateAdvisoryJSON runs the embedded OSSA schema against an advisory document.
func ValidateAdvisoryJSON(data []byte) error {
	return ValidateAgainstSchema(advisorySchemaName, schema.AdvisorySchema, data, "")
}

// ValidateWithSchema validates data against a caller-supplied schema document.
func ValidateWithSchema(schemaBytes, data []byte) error {
	return ValidateAgainstSchema(userSchemaName, schemaBytes, data, "")
}

// FirstError reduces a validation failure to the first leaf message, in the
// form "<instance location>: <message>". Other errors are returned as text.
func FirstError(err error) string {
	if err == nil {
		return ""
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
