package model

import (
	"strings"

	"github.com/coral-mesh/apitrace/internal/registry"
)

// Declaration is a named, typed entity of the registry.
type Declaration struct {
	Name string
	// Type is the <type> text as written. A declaration with two or more
	// levels of indirection gets one extra '*' so that it resolves as a
	// pointer to the one-level-down type.
	Type string
	// Pointer is derived from the tokens written before the name, never
	// from the resolved type.
	Pointer bool
	// Text is the full declaration, whitespace-normalized.
	Text string
}

func newDeclaration(d registry.Decl) Declaration {
	decl := Declaration{
		Name: d.Name(),
		Type: d.TypeText(),
		Text: d.Text(),
	}
	if strings.Contains(decl.Text, "**") {
		decl.Type += "*"
	}
	for _, t := range d.Prefix() {
		if strings.Contains(t.Text, "*") {
			decl.Pointer = true
			break
		}
	}
	return decl
}

// Parameter is one entry of an argument list.
type Parameter struct {
	Declaration
	Callback bool
	// Trace is the entry field of the parameter, or nil when the parameter
	// is not traced directly.
	Trace *Field
}

func newParameter(d registry.Decl, callbackMarker string) Parameter {
	p := Parameter{Declaration: newDeclaration(d)}
	for _, t := range d.Tokens {
		if strings.Contains(t.Text, callbackMarker) {
			p.Callback = true
			p.Pointer = true
			break
		}
	}
	return p
}

// IsVoidOnly reports whether the parameter is the "no arguments" sentinel.
func (p Parameter) IsVoidOnly() bool {
	return p.Text == "void"
}

// SourceType is the declared type with the empty type spelled as void.
func (p Parameter) SourceType() string {
	if p.Type == "" {
		return "void"
	}
	return p.Type
}

// Member is a struct field read through an owning pointer variable.
type Member struct {
	Declaration
	Prefix string
}

// FieldName is the traced field name, <prefix>_<member>.
func (m Member) FieldName() string {
	return m.Prefix + "_" + m.Name
}

// Value reads the member, guarding the owning pointer.
func (m Member) Value() string {
	return m.Prefix + " != NULL ? " + m.Prefix + "->" + m.Name + " : 0"
}

// Prototype is the name and return type of a command.
type Prototype struct {
	Name       string
	ReturnType string
	// Return is the exit field of the return value, nil for void or an
	// untraceable type.
	Return *Field
}

func newPrototype(d registry.Decl) Prototype {
	return Prototype{
		Name:       d.Name(),
		ReturnType: d.TextWithoutName(),
	}
}

// HasReturn reports whether the command returns a value.
func (p Prototype) HasReturn() bool {
	return p.ReturnType != "void"
}

// PointerName is the variable holding the resolved function pointer.
func (p Prototype) PointerName() string { return p.Name + "_ptr" }

// PointerTypeName is the typedef of the function pointer.
func (p Prototype) PointerTypeName() string { return p.Name + "_t" }

// Local is a value computed before tracing by injected setup code.
type Local struct {
	Name  string
	Type  string
	Setup string
}
