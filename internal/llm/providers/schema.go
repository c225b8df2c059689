package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var validate = validator.New()

// Schema couples a JSON Schema definition (sent to the vendor) with the Go
// type it was reflected from (used to validate what comes back). A response
// only counts as a success after Validate accepts it.
type Schema struct {
	Name       string
	Definition map[string]any

	prototype reflect.Type
}

// NewSchema reflects a JSON Schema from the prototype value. The prototype
// must be a struct or pointer to struct.
func NewSchema(name string, prototype any) (*Schema, error) {
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema prototype must be a struct, got %T", prototype)
	}

	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	reflected := reflector.ReflectFromType(t)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	var def map[string]any
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode reflected schema: %w", err)
	}
	delete(def, "$schema")
	delete(def, "$id")

	return &Schema{Name: name, Definition: def, prototype: t}, nil
}

// Validate strictly decodes raw into a fresh instance of the schema's type
// and runs struct-tag validation on it.
func (s *Schema) Validate(raw json.RawMessage) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty payload")
	}
	target := reflect.New(s.prototype).Interface()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode against schema %q: %w", s.Name, err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("constraint violation in schema %q: %w", s.Name, err)
	}
	return nil
}

// PromptInstructions renders the schema as a system-prompt fragment for
// vendors without a native structured-output mode.
func (s *Schema) PromptInstructions() string {
	def, _ := json.MarshalIndent(s.Definition, "", "  ")
	return fmt.Sprintf(
		"Respond with a single JSON object and nothing else. The object must conform to this JSON Schema (%s):\n%s",
		s.Name, string(def))
}
