package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	kerrors "github.com/emerald-finance/emerald/internal/errors"
	"github.com/go-playground/validator/v10"
)

// FieldError is one violation at a dotted path such as "transactions[2].date".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// ValidationError collects every violation found in a document.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + e.Errors[0].String()
	}
	parts := make([]string, len(e.Errors))
	for i, f := range e.Errors {
		parts[i] = f.String()
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return kerrors.ErrValidation
}

// Add records a violation.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Err returns e when it holds violations and nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01"}

// IsDate reports whether s is a calendar date, an RFC 3339 timestamp or a
// year-month.
func IsDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		return IsDate(fl.Field().String())
	})
	return v
}

// Validate checks the rule tags of a record. Field paths are prefixed with
// path.
func Validate(path string, v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: path, Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace starts with the Go type name.
		_, rest, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, FieldError{Field: join(path, rest), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String && fe.Param() == "1" {
			return "must not be empty"
		}
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "date":
		return "must be a date (YYYY-MM-DD, YYYY-MM or RFC 3339)"
	default:
		return "failed " + fe.Tag()
	}
}

// Record is implemented by the entity types DecodeRecord understands.
type Record interface {
	required() []string
}

// DecodeRecord decodes raw into T, reporting missing required members,
// wrong member types and rule violations.
func DecodeRecord[T Record](path string, raw json.RawMessage) (T, []FieldError) {
	var zero T

	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || members == nil {
		return zero, []FieldError{{Field: path, Message: "must be an object"}}
	}

	var errs []FieldError
	for _, name := range zero.required() {
		if v, ok := members[name]; !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			errs = append(errs, FieldError{Field: join(path, name), Message: "is required"})
		}
	}
	if len(errs) > 0 {
		return zero, errs
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return zero, []FieldError{{Field: join(path, typeErr.Field), Message: "must be " + jsonType(typeErr.Type)}}
		}
		return zero, []FieldError{{Field: path, Message: err.Error()}}
	}

	if errs := Validate(path, out); len(errs) > 0 {
		return zero, errs
	}
	return out, nil
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int64, reflect.Int32:
		return "an integer"
	case reflect.Float64, reflect.Float32:
		return "a number"
	case reflect.Slice:
		return "an array"
	case reflect.Map, reflect.Struct:
		return "an object"
	default:
		return t.String()
	}
}

func join(path, field string) string {
	switch {
	case path == "":
		return field
	case field == "":
		return path
	default:
		return path + "." + field
	}
}
