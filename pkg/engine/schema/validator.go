// Package schema provides JSON Schema validation for AI-generate step
// output and prompt construction around that schema.
package schema

import (
	"github.com/xeipuuv/gojsonschema"
)

// Validator validates data against a JSON Schema.
type Validator interface {
	// Validate checks if data conforms to schema. A non-nil error is
	// always *ValidationError, reporting the first failing path.
	Validate(schema map[string]interface{}, data interface{}) error
}

// DefaultValidator validates against the full JSON Schema draft semantics
// via gojsonschema, rather than a hand-rolled subset.
type DefaultValidator struct{}

// NewValidator creates a new schema validator.
func NewValidator() Validator {
	return &DefaultValidator{}
}

// Validate validates data against schema.
func (v *DefaultValidator) Validate(schema map[string]interface{}, data interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	docLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return &ValidationError{Path: "$", Keyword: "schema", Message: err.Error()}
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	path := "$"
	if field := first.Field(); field != "" && field != "(root)" {
		path = "$." + field
	}
	return &ValidationError{
		Path:    path,
		Keyword: first.Type(),
		Message: first.Description(),
	}
}
