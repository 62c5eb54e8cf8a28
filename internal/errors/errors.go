// Package errors provides structured error types for apitrace.
//
// Errors carry a Phase (where the failure happened) and a Kind (what went
// wrong), plus the function and field they concern so that stale annotations
// can be traced back to the registry entry that no longer matches.
//
//	err := errors.New(errors.PhaseConfig, errors.KindMissingParameter).
//		Function("clCreateContext").
//		Field("devices").
//		Detail("parameter not found").
//		Build()
//
// Category sentinels (ErrConfiguration, ErrDerivationMismatch,
// ErrTrampolineBuild) match with errors.Is.
package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred.
type Phase string

const (
	PhaseLoad       Phase = "load"       // registry / config loading
	PhaseConfig     Phase = "config"     // type tables and annotations
	PhaseDerive     Phase = "derive"     // event field derivation
	PhaseTrampoline Phase = "trampoline" // runtime trampoline construction
)

// Kind categorizes the error.
type Kind string

const (
	KindTypedefCycle       Kind = "typedef_cycle"
	KindUnresolvedType     Kind = "unresolved_type"
	KindUnsupportedType    Kind = "unsupported_type"
	KindMissingParameter   Kind = "missing_parameter"
	KindUnknownStruct      Kind = "unknown_struct"
	KindInvalidConfig      Kind = "invalid_config"
	KindInvalidData        Kind = "invalid_data"
	KindDerivationMismatch Kind = "derivation_mismatch"
	KindDuplicateField     Kind = "duplicate_field"
	KindTrampolineBuild    Kind = "trampoline_build"
)

// Category sentinels for errors.Is.
var (
	ErrConfiguration      = &Error{Phase: PhaseConfig}
	ErrDerivationMismatch = &Error{Phase: PhaseDerive, Kind: KindDerivationMismatch}
	ErrTrampolineBuild    = &Error{Phase: PhaseTrampoline, Kind: KindTrampolineBuild}
)

// Error is the structured error type used throughout apitrace.
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Function string
	Field    string
	Type     string
	Detail   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Function != "" {
		b.WriteString(" in ")
		b.WriteString(e.Function)
		if e.Field != "" {
			b.WriteByte('.')
			b.WriteString(e.Field)
		}
	} else if e.Field != "" {
		b.WriteString(" at ")
		b.WriteString(e.Field)
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Empty fields of the target
// act as wildcards, which is what makes the category sentinels work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Phase != "" || t.Kind != ""
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Function sets the traced function the error belongs to.
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Field sets the parameter or field name.
func (b *Builder) Field(name string) *Builder {
	b.err.Field = name
	return b
}

// Type sets the offending type text.
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// TypedefCycle reports a typedef chain that loops back on itself.
func TypedefCycle(typeName string, chain []string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindTypedefCycle,
		Type:   typeName,
		Detail: "typedef chain does not terminate: " + strings.Join(chain, " -> "),
	}
}

// UnresolvedType reports a typedef chain ending at a name that is not a base type.
func UnresolvedType(typeName, last string) *Error {
	detail := fmt.Sprintf("no base type reached (chain ends at %q)", last)
	if last == typeName {
		detail = "not a base type and no typedef known"
	}
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindUnresolvedType,
		Type:   typeName,
		Detail: detail,
	}
}

// UnsupportedType reports a type that has no encoding for the requested use.
func UnsupportedType(function, field, typeName string) *Error {
	return &Error{
		Phase:    PhaseConfig,
		Kind:     KindUnsupportedType,
		Function: function,
		Field:    field,
		Type:     typeName,
		Detail:   "unknown type",
	}
}

// MissingParameter reports an annotation naming a parameter the command lacks.
func MissingParameter(function, name string) *Error {
	return &Error{
		Phase:    PhaseConfig,
		Kind:     KindMissingParameter,
		Function: function,
		Field:    name,
		Detail:   fmt.Sprintf("couldn't find variable %s", name),
	}
}

// UnknownStruct reports a struct expansion referencing an unknown struct type.
func UnknownStruct(function, param, structName string) *Error {
	return &Error{
		Phase:    PhaseConfig,
		Kind:     KindUnknownStruct,
		Function: function,
		Field:    param,
		Type:     structName,
		Detail:   "unknown struct",
	}
}

// InvalidConfig reports a malformed configuration entry.
func InvalidConfig(path, detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Field:  path,
		Detail: detail,
	}
}

// DerivationMismatch reports a meta field whose source cannot be resolved
// against the command's parameters or struct expansions.
func DerivationMismatch(function, field, expression string) *Error {
	return &Error{
		Phase:    PhaseDerive,
		Kind:     KindDerivationMismatch,
		Function: function,
		Field:    field,
		Detail:   fmt.Sprintf("cannot resolve source of %q", expression),
	}
}

// DuplicateField reports a field registered twice in the same event.
func DuplicateField(event, field string) *Error {
	return &Error{
		Phase:    PhaseDerive,
		Kind:     KindDuplicateField,
		Function: event,
		Field:    field,
		Detail:   "later registration replaces the earlier field",
	}
}

// TrampolineBuild reports a failed trampoline construction.
func TrampolineBuild(function string, target uintptr, cause error) *Error {
	return &Error{
		Phase:    PhaseTrampoline,
		Kind:     KindTrampolineBuild,
		Function: function,
		Detail:   fmt.Sprintf("build trampoline for %#x", target),
		Cause:    cause,
	}
}

// Load creates a loading error.
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
