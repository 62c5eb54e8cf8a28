// Package registry holds the parsed API registry: command prototypes,
// struct layouts, typedefs, constants and the feature/extension require
// groups used to classify enumerations.
package registry

import (
	"sort"
	"strings"
)

// Token is one child of a declaration node. Element is empty for text
// between elements, otherwise the element name ("type", "name").
type Token struct {
	Element string
	Text    string
}

// Decl is a mixed-content declaration as written in the registry, for
// example `const <type>cl_device_id</type> * <name>devices</name>`.
type Decl struct {
	Tokens []Token
}

// NewDecl builds a declaration from alternating tokens. It is mostly useful
// in tests.
func NewDecl(tokens ...Token) Decl {
	return Decl{Tokens: tokens}
}

// T is a shorthand for a text token.
func T(text string) Token { return Token{Text: text} }

// Type is a shorthand for a <type> token.
func Type(text string) Token { return Token{Element: "type", Text: text} }

// Name is a shorthand for a <name> token.
func Name(text string) Token { return Token{Element: "name", Text: text} }

// Name returns the text of the first <name> element.
func (d Decl) Name() string {
	for _, t := range d.Tokens {
		if t.Element == "name" {
			return t.Text
		}
	}
	return ""
}

// TypeText returns the text of the first <type> element.
func (d Decl) TypeText() string {
	for _, t := range d.Tokens {
		if t.Element == "type" {
			return t.Text
		}
	}
	return ""
}

// Prefix returns the tokens that come before the <name> element.
func (d Decl) Prefix() []Token {
	for i, t := range d.Tokens {
		if t.Element == "name" {
			return d.Tokens[:i]
		}
	}
	return d.Tokens
}

// Text joins every token with single spaces.
func (d Decl) Text() string {
	return join(d.Tokens, func(Token) bool { return true })
}

// TextWithoutName joins every token but the <name> element.
func (d Decl) TextWithoutName() string {
	return join(d.Tokens, func(t Token) bool { return t.Element != "name" })
}

func join(tokens []Token, keep func(Token) bool) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if keep(t) {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Command is one <command> node.
type Command struct {
	Proto  Decl
	Params []Decl
}

// Name returns the command name.
func (c Command) Name() string { return c.Proto.Name() }

// Struct is one <type category="struct"> node.
type Struct struct {
	Name    string
	Members []Decl
}

// Typedef maps an alias to the type it is defined as.
type Typedef struct {
	Name string
	Type string
}

// Require is one <require> group of a feature or extension.
type Require struct {
	Comment string
	Enums   []string
}

// Registry is the complete parsed registry.
type Registry struct {
	Commands  []Command
	Structs   []Struct
	Typedefs  []Typedef
	Constants map[string]string
	Requires  []Require
}

// Command looks up a command by name.
func (r *Registry) Command(name string) (Command, bool) {
	for _, c := range r.Commands {
		if c.Name() == name {
			return c, true
		}
	}
	return Command{}, false
}

// Struct looks up a struct by name.
func (r *Registry) Struct(name string) (Struct, bool) {
	for _, s := range r.Structs {
		if s.Name == name {
			return s, true
		}
	}
	return Struct{}, false
}

// StructMap indexes structs by name.
func (r *Registry) StructMap() map[string]Struct {
	out := make(map[string]Struct, len(r.Structs))
	for _, s := range r.Structs {
		out[s.Name] = s
	}
	return out
}

// StructNames returns the struct names, sorted.
func (r *Registry) StructNames() []string {
	names := make([]string, 0, len(r.Structs))
	for _, s := range r.Structs {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// TypedefMap returns the typedef table. Later definitions win.
func (r *Registry) TypedefMap() map[string]string {
	out := make(map[string]string, len(r.Typedefs))
	for _, t := range r.Typedefs {
		out[t.Name] = t.Type
	}
	return out
}
