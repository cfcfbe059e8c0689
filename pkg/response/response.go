// Package response holds the JSON error bodies shared by the HTTP layer.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	InvalidRequestBody = Error{Error: "Invalid request body"}
	NotFound           = Error{Error: "Short URL not found"}
	InternalError      = Error{Error: "Internal Server Error"}
)

// Error is the body of every non-2xx JSON response.
type Error struct {
	Error   string            `json:"error"`
	Details []validationError `json:"details,omitempty"`
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

func messageForTag(field, tag string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url", "uri", "http_url":
		return "Invalid URL"
	default:
		return fmt.Sprintf("Invalid %s", field)
	}
}

func getValidationErrors(err error) []validationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	validationErrs := make([]validationError, 0, len(errs))
	for _, e := range errs {
		validationErrs = append(validationErrs, validationError{
			Field: e.Field(),
			Value: e.Value(),
			Issue: messageForTag(e.Field(), e.Tag()),
		})
	}

	return validationErrs
}

// ValidationError builds a 400 body from a validator error. The first failed
// rule becomes the top-level message.
func ValidationError(err error) Error {
	details := getValidationErrors(err)
	if len(details) == 0 {
		return InvalidRequestBody
	}

	return Error{
		Error:   details[0].Issue,
		Details: details,
	}
}
