// Package validation wraps a shared go-playground/validator instance and turns
// its errors into short client-facing messages.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Error is a failed validation of a single field.
type Error struct {
	Field string
	Tag   string
	Param string
}

func (e *Error) Error() string {
	field := strings.ToLower(e.Field)
	switch e.Tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, e.Param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag)
	}
}

// Struct validates v and returns the first failing field as *Error.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &Error{Field: fieldPath(fe), Tag: fe.Tag(), Param: fe.Param()}
	}
	return err
}

// fieldPath drops the top-level struct name from the namespace so nested
// config fields read as "TMDB.APIKey".
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.StructField()
}
