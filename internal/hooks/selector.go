// Package hooks attaches prologue and epilogue snippets to commands.
//
// A hook selects commands by name or with a CEL predicate over the command
// attributes:
//
//	name          string  function name
//	extension     bool    resolved at runtime
//	init          bool    part of platform discovery
//	returns_event bool    returns an event handle
//	event_output  bool    produces an event
package hooks

import (
	"github.com/google/cel-go/cel"

	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/model"
)

// Attributes are the command properties visible to selectors.
type Attributes struct {
	Name         string
	Extension    bool
	Init         bool
	ReturnsEvent bool
	EventOutput  bool
}

// AttributesOf extracts the selector attributes of cmd.
func AttributesOf(cmd *model.Command) Attributes {
	return Attributes{
		Name:         cmd.Name(),
		Extension:    cmd.IsExtension(),
		Init:         cmd.IsInit(),
		ReturnsEvent: cmd.ReturnsEvent(),
		EventOutput:  cmd.HasEventOutput(),
	}
}

func (a Attributes) activation() map[string]any {
	return map[string]any{
		"name":          a.Name,
		"extension":     a.Extension,
		"init":          a.Init,
		"returns_event": a.ReturnsEvent,
		"event_output":  a.EventOutput,
	}
}

// Selector is a compiled CEL predicate.
type Selector struct {
	expr string
	prg  cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("extension", cel.BoolType),
		cel.Variable("init", cel.BoolType),
		cel.Variable("returns_event", cel.BoolType),
		cel.Variable("event_output", cel.BoolType),
	)
}

// CompileSelector parses and type-checks expr. The expression must be
// boolean.
func CompileSelector(expr string) (*Selector, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	return compile(env, expr)
}

func compile(env *cel.Env, expr string) (*Selector, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Field("hooks.when").
			Cause(iss.Err()).
			Detail("invalid selector %q", expr).
			Build()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Field("hooks.when").
			Detail("selector %q is %s, not bool", expr, ast.OutputType()).
			Build()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Field("hooks.when").
			Cause(err).
			Detail("invalid selector %q", expr).
			Build()
	}
	return &Selector{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (s *Selector) String() string { return s.expr }

// Match evaluates the selector against attrs.
func (s *Selector) Match(attrs Attributes) (bool, error) {
	out, _, err := s.prg.Eval(attrs.activation())
	if err != nil {
		return false, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Function(attrs.Name).
			Field("hooks.when").
			Cause(err).
			Detail("evaluate selector %q", s.expr).
			Build()
	}
	b, ok := out.Value().(bool)
	return ok && b, nil
}
