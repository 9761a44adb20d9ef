package domain

import (
	"errors"
	"strings"
)

// ErrInvalidInput is matched by every ingress validation failure.
var ErrInvalidInput = errors.New("invalid input")

// FieldError describes one invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + " " + e.Message
}

// ValidationErrors collects every field failure found at ingress.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

// OrNil returns nil when no field failed.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ValidateInputs validates all three decision inputs and that they describe
// the same chokepoint.
func ValidateInputs(signal Signal, reality Reality, ctx CustomerContext) error {
	var errs ValidationErrors
	for _, err := range []error{signal.Validate(), reality.Validate(), ctx.Validate()} {
		var ve ValidationErrors
		if errors.As(err, &ve) {
			errs = append(errs, ve...)
		}
	}
	if reality.Chokepoint != "" && signal.Chokepoint != "" && reality.Chokepoint != signal.Chokepoint {
		errs = append(errs, FieldError{Field: "reality.chokepoint", Message: "does not match signal chokepoint"})
	}
	return errs.OrNil()
}
