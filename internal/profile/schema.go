package profile

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed documents.schema.json
var documentsSchema string

var documentsSchemaLoader = gojsonschema.NewStringLoader(documentsSchema)

// FieldError is one schema violation in a documents file.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every schema violation of a documents file.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "invalid documents: " + strings.Join(parts, "; ")
}

// ValidateDocuments checks raw JSON against the documents schema.
func ValidateDocuments(data []byte) error {
	result, err := gojsonschema.Validate(documentsSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validating documents: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
