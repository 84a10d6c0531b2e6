// Package validate checks write inputs on the client before any request is sent.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/birdwatch/internal/errs"
	"github.com/go-playground/validator/v10"
)

// Error lists the failed fields of one input, in declaration order.
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return "validation: " + strings.Join(e.Fields, "; ")
}

func (e *Error) Unwrap() error { return errs.ErrValidation }

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
	})
	return v
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		return &Error{Fields: msgs}
	}
	return err
}

// Required returns a validation error naming every empty value in pairs of (name, value).
func Required(pairs ...string) error {
	var msgs []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			msgs = append(msgs, pairs[i]+" is required")
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return &Error{Fields: msgs}
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
