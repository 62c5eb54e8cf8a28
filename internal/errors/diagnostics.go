package errors

import (
	stderrors "errors"
)

// Severity of a collected diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal finding collected during model generation.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity" header:"SEVERITY"`
	Function string   `json:"function,omitempty" yaml:"function,omitempty" header:"FUNCTION"`
	Field    string   `json:"field,omitempty" yaml:"field,omitempty" header:"FIELD"`
	Message  string   `json:"message" yaml:"message" header:"MESSAGE"`
	Err      *Error   `json:"-" yaml:"-"`
}

// Diagnostics accumulates findings so that every stale annotation can be
// reported in one pass instead of stopping at the first.
type Diagnostics []Diagnostic

// Warn records a warning.
func (d *Diagnostics) Warn(err *Error) {
	d.add(SeverityWarning, err)
}

// Fail records an error-level finding.
func (d *Diagnostics) Fail(err *Error) {
	d.add(SeverityError, err)
}

// Merge appends all findings of other.
func (d *Diagnostics) Merge(other Diagnostics) {
	*d = append(*d, other...)
}

func (d *Diagnostics) add(sev Severity, err *Error) {
	*d = append(*d, Diagnostic{
		Severity: sev,
		Function: err.Function,
		Field:    err.Field,
		Message:  err.Error(),
		Err:      err,
	})
}

// HasErrors reports whether any error-level finding was recorded.
func (d Diagnostics) HasErrors() bool {
	for _, diag := range d {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of findings with the given severity.
func (d Diagnostics) Count(sev Severity) int {
	n := 0
	for _, diag := range d {
		if diag.Severity == sev {
			n++
		}
	}
	return n
}

// Err joins all error-level findings, or returns nil.
func (d Diagnostics) Err() error {
	var errs []error
	for _, diag := range d {
		if diag.Severity == SeverityError {
			errs = append(errs, diag.Err)
		}
	}
	return stderrors.Join(errs...)
}
