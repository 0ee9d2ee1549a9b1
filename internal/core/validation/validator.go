package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tripdesk/tripdesk/internal/core/catalog"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(msgs, "; ")
}

// schemas holds the JSON schema a create payload must satisfy, for the
// few types that carry one. Unlisted types accept any payload. The
// expedition sign-up form is posted from the public landing pages, so
// it is the one surface that must not trust its input shape.
var schemas = map[catalog.EntityType]map[string]interface{}{
	catalog.ExpeditionSignup: {
		"type":     "object",
		"required": []interface{}{"name", "email"},
		"properties": map[string]interface{}{
			"name":  map[string]interface{}{"type": "string", "minLength": 1},
			"email": map[string]interface{}{"type": "string", "format": "email"},
			"phone": map[string]interface{}{"type": "string"},
		},
	},
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCreate checks a create payload against the type's registered
// schema, if any.
func (v *Validator) ValidateCreate(t catalog.EntityType, data map[string]interface{}) error {
	return v.Validate(data, schemas[t])
}

func (v *Validator) Validate(data map[string]interface{}, schema map[string]interface{}) error {
	if len(schema) == 0 {
		// No schema defined, allow any data
		return nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(dataJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var validationErrors []ValidationError
		for _, desc := range result.Errors() {
			validationErrors = append(validationErrors, ValidationError{
				Field:   desc.Field(),
				Message: desc.Description(),
			})
		}
		return &ValidationErrors{Errors: validationErrors}
	}

	return nil
}

func IsValidationError(err error) bool {
	var ve *ValidationErrors
	return errors.As(err, &ve)
}

func GetValidationErrors(err error) *ValidationErrors {
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
