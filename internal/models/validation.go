package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation error")

// FieldError is one violated message invariant, keyed by the JSON field path.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports why a message payload was rejected.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs the validate tags of v and reports violations as a
// *ValidationError keyed by JSON field names.
func ValidateStruct(v any) error {
	fields, err := structFields(v)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func structFields(v any) ([]FieldError, error) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validate %T: %w", v, err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Reason: reasonFor(fe)})
	}
	return fields, nil
}

// Validate checks the message invariants. It expects a normalized message.
// Messages to oneself are rejected.
func (m *Message) Validate() error {
	fields, err := structFields(m)
	if err != nil {
		return err
	}

	if m.SenderID != "" && m.SenderID == m.ReceiverID {
		fields = append(fields, FieldError{Field: "receiverId", Reason: "must differ from the sender"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// fieldPath drops the struct name validator puts at the front of the namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required for text messages"
	case "required_unless":
		return "is required for non-text messages"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be negative"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
