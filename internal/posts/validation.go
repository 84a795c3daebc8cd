package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError means the request body is not a usable post: malformed
// JSON, a missing key or a key of the wrong type.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid post: %s", e.Reason)
	}
	return fmt.Sprintf("invalid post: %s [%s]", e.Reason, strings.Join(e.Fields, ", "))
}

// pointers, so a present empty string can be told apart from a missing key
type postRequest struct {
	Title   *string `json:"title" validate:"required"`
	Content *string `json:"content" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decodePostRequest(body io.Reader) (title, content string, err error) {
	var req postRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return "", "", decodeError(err)
	}
	// the body must hold exactly one JSON value
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return "", "", &ValidationError{Reason: "malformed JSON: trailing data"}
	}

	if err := validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return "", "", fmt.Errorf("validate post request: %w", err)
		}
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, fe.Field())
		}
		return "", "", &ValidationError{Fields: fields, Reason: "missing required fields"}
	}

	return *req.Title, *req.Content, nil
}

func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return &ValidationError{Reason: "empty body"}
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return &ValidationError{
			Fields: []string{typeErr.Field},
			Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}
	case errors.As(err, &typeErr):
		return &ValidationError{Reason: fmt.Sprintf("expected a JSON object, got %s", typeErr.Value)}
	default:
		return &ValidationError{Reason: fmt.Sprintf("malformed JSON: %s", err)}
	}
}
