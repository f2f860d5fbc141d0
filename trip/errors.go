package trip

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalid is matched by every *ValidationError via errors.Is.
var ErrInvalid = errors.New("trip: invalid value")

// ValidationError reports a schema violation on a single field.
//
// Producers of candidate, budget and plan data are untrusted (most of it is
// LLM output), so every value crossing into State is checked first and any
// failure surfaces as a ValidationError naming the offending field.
type ValidationError struct {
	// Field is the JSON path of the offending field, e.g. "lodging[2].rating".
	Field string

	// Message describes the violated constraint.
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return "validation: " + e.Field + ": " + e.Message
}

// Is lets callers test with errors.Is(err, ErrInvalid).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// prefixed re-roots a ValidationError under a parent path.
func prefixed(parent string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		field := parent
		if ve.Field != "" {
			field = parent + "." + ve.Field
		}
		return &ValidationError{Field: field, Message: ve.Message}
	}
	return err
}

// UnknownFieldError is returned when an update names fields the state does
// not have. The update is rejected as a whole.
type UnknownFieldError struct {
	Fields []string
}

func (e *UnknownFieldError) Error() string {
	fields := append([]string(nil), e.Fields...)
	sort.Strings(fields)
	return "unknown field(s): " + strings.Join(fields, ", ")
}
