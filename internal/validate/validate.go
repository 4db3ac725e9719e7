// Package validate enforces the request schemas before any handler logic
// runs. Constraints live as struct tags on the wire types in internal/model;
// this package turns violations into the per-field list the 422 contract
// promises. String lengths are counted in runes, not bytes.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"tokenflow/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report violations against the wire field name, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Request checks a decoded request struct and returns one violation per
// failing field. A nil result means the request is valid.
func Request(req any) []model.FieldViolation {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.FieldViolation{{Field: "body", Message: err.Error()}}
	}

	violations := make([]model.FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, model.FieldViolation{
			Field:   fe.Field(),
			Message: violationMessage(fe),
		})
	}
	return violations
}

// DecodeBody decodes a JSON request body into req, translating malformed
// input (bad JSON, wrong primitive types, trailing garbage) into the same
// violation list shape so the schema layer owns every 422.
func DecodeBody(body io.Reader, req any) []model.FieldViolation {
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(req); err != nil {
		return decodeViolations(err)
	}
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		return []model.FieldViolation{{Field: "body", Message: "request body must be a single JSON object"}}
	}
	return Request(req)
}

func decodeViolations(err error) []model.FieldViolation {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return []model.FieldViolation{{
			Field:   field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
		}}
	}

	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, io.EOF):
		return []model.FieldViolation{{Field: "body", Message: "request body is required"}}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return []model.FieldViolation{{Field: "body", Message: "request body is not valid JSON"}}
	}
	return []model.FieldViolation{{Field: "body", Message: "request body could not be parsed"}}
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return boundMessage(fe, "at least")
	case "max":
		return boundMessage(fe, "at most")
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func boundMessage(fe validator.FieldError, bound string) string {
	switch fe.Kind() {
	case reflect.String:
		return fmt.Sprintf("length must be %s %s characters", bound, fe.Param())
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("must contain %s %s items", bound, fe.Param())
	default:
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	}
}
