// Package model turns registry commands into typed declarations with their
// meta-parameters: the automatically matched ones and the ones registered
// in the annotation tables.
package model

// Command is one traced function.
type Command struct {
	Prototype  Prototype
	Parameters []Parameter
	Locals     []Local
	// MetaParameters are ordered: automatic matchers first, then explicit
	// registrations, then struct expansions.
	MetaParameters []MetaParameter
	Prologues      []string
	Epilogues      []string

	extension    bool
	init         bool
	returnsEvent bool
}

// Name returns the function name.
func (c *Command) Name() string { return c.Prototype.Name }

// IsExtension reports whether the function is resolved at runtime.
func (c *Command) IsExtension() bool { return c.extension }

// IsInit reports whether the function is part of platform discovery.
func (c *Command) IsInit() bool { return c.init }

// ReturnsEvent reports whether the function returns an event handle.
func (c *Command) ReturnsEvent() bool { return c.returnsEvent }

// HasEventOutput reports whether the function produces an event, either as
// its return value or through an `event` output pointer.
func (c *Command) HasEventOutput() bool {
	if c.returnsEvent {
		return true
	}
	p, ok := c.Parameter("event")
	return ok && p.Pointer
}

// VoidParameters reports whether the argument list is the void sentinel.
func (c *Command) VoidParameters() bool {
	return len(c.Parameters) == 1 && c.Parameters[0].IsVoidOnly()
}

// Parameter looks up a parameter by name.
func (c *Command) Parameter(name string) (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Local looks up a local by name.
func (c *Command) Local(name string) (Local, bool) {
	for _, l := range c.Locals {
		if l.Name == name {
			return l, true
		}
	}
	return Local{}, false
}

// Lookup returns the declared type of a parameter or a local.
func (c *Command) Lookup(name string) (typ string, pointer bool, ok bool) {
	if p, found := c.Parameter(name); found {
		return p.Type, p.Pointer, true
	}
	if l, found := c.Local(name); found {
		return l.Type, false, true
	}
	return "", false, false
}

// StructMembers returns the expanded struct members, in registration order.
func (c *Command) StructMembers() []StructMember {
	var out []StructMember
	for _, m := range c.MetaParameters {
		if sm, ok := m.(*StructMember); ok {
			out = append(out, *sm)
		}
	}
	return out
}
