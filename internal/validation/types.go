package validation

import (
	"fmt"
	"strings"
	"time"
)

// ValidationSeverity represents the severity level of a validation issue
type ValidationSeverity int

const (
	ValidationSeverityError ValidationSeverity = iota
	ValidationSeverityWarning
	ValidationSeverityInfo
)

func (s ValidationSeverity) String() string {
	switch s {
	case ValidationSeverityError:
		return "error"
	case ValidationSeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// ValidationErrorCode represents specific validation error types
type ValidationErrorCode int

const (
	ErrorInvalidFormat ValidationErrorCode = iota
	ErrorNotArray
	ErrorInvalidRecord
	ErrorIDRequired
	ErrorDuplicateID
	ErrorInvalidValue
	ErrorInvalidDate
	ErrorUnknownField
)

// ValidationError represents a specific validation issue. Index is the
// position of the offending record, or -1 for the snapshot as a whole.
type ValidationError struct {
	Index    int
	Field    string
	Code     ValidationErrorCode
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.Index >= 0 {
		fmt.Fprintf(&b, "[%d]", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ".%s", e.Field)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationResult represents the result of snapshot validation
type ValidationResult struct {
	IsValid     bool
	ValidatedAt time.Time
	Errors      []ValidationError
	Warnings    []ValidationError
}

// Messages lists every error, then every warning, as display strings.
func (r ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors)+len(r.Warnings))
	for _, e := range r.Errors {
		out = append(out, e.String())
	}
	for _, w := range r.Warnings {
		out = append(out, w.String())
	}
	return out
}

func (r *ValidationResult) fail(e ValidationError) {
	e.Severity = ValidationSeverityError
	r.Errors = append(r.Errors, e)
	r.IsValid = false
}

func (r *ValidationResult) warn(e ValidationError, severity ValidationSeverity) {
	e.Severity = severity
	r.Warnings = append(r.Warnings, e)
}
