package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidateStruct runs the validate tags on s.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// FormatValidationErrors flattens validator errors for a JSON response. It
// returns nil for any other error.
func FormatValidationErrors(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}

	out := make([]ValidationError, len(ve))
	for i, fe := range ve {
		out[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "uuid":
			out[i].Message = fmt.Sprintf("%s must be a valid UUID", fe.Field())
		case "max":
			out[i].Message = fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
		default:
			out[i].Message = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return out
}
