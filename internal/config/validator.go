package config

import (
	"fmt"
	"strings"

	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/types"
)

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []*errors.Error
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *MultiValidationError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

type validator struct {
	errs []*errors.Error
}

func (v *validator) add(path, format string, args ...any) {
	v.errs = append(v.errs, errors.InvalidConfig(path, fmt.Sprintf(format, args...)))
}

// Validate checks the configuration for consistency. Annotation references
// to the registry are checked later, by the model builder.
func (c *Config) Validate() error {
	v := &validator{}

	if c.Provider == "" {
		v.add("provider", "provider is required")
	}
	if c.Conventions.CallbackMarker == "" {
		v.add("conventions.callback_marker", "callback marker is required")
	}
	if c.Conventions.StatusType == "" {
		v.add("conventions.status_type", "status type is required")
	}
	if c.Filters.Extension.IsZero() {
		v.add("filters.extension", "extension pattern is required")
	}

	for i, m := range c.Conventions.Matchers {
		path := fmt.Sprintf("conventions.matchers[%d]", i)
		if m.Param == "" {
			v.add(path+".param", "parameter name is required")
		}
		switch m.Kind {
		case MatcherOutScalar:
		case MatcherWaitList, MatcherValueBuffer:
			if m.Count == "" {
				v.add(path+".count", "%s matcher needs a count parameter", m.Kind)
			}
		default:
			v.add(path+".kind", "unknown matcher kind %q", m.Kind)
		}
	}

	c.validateTypes(v)

	for _, fn := range sortedKeys(c.MetaParameters) {
		for i, m := range c.MetaParameters[fn] {
			path := fmt.Sprintf("meta_parameters.%s[%d]", fn, i)
			arity, ok := metaArity[m.Kind]
			if !ok {
				v.add(path, "unknown meta parameter kind %q", m.Kind)
				continue
			}
			if n := len(m.Args); n < arity.min || n > arity.max {
				v.add(path, "%s takes %d to %d arguments, got %d", m.Kind, arity.min, arity.max, n)
			}
		}
	}

	for _, fn := range sortedKeys(c.MetaStructs) {
		for i, s := range c.MetaStructs[fn] {
			if s.Param == "" || s.Struct == "" {
				v.add(fmt.Sprintf("meta_structs.%s[%d]", fn, i), "parameter and struct are required")
			}
		}
	}

	for i, h := range c.Hooks {
		path := fmt.Sprintf("hooks[%d]", i)
		if len(h.Functions) == 0 && h.When == "" {
			v.add(path, "hook needs functions or a when expression")
		}
		if h.Prologue == "" && h.Epilogue == "" {
			v.add(path, "hook needs a prologue or an epilogue")
		}
	}

	for i, e := range c.Enums {
		if e.Name == "" {
			v.add(fmt.Sprintf("enums[%d].name", i), "enum name is required")
		}
	}

	if len(v.errs) > 0 {
		return &MultiValidationError{Errors: v.errs}
	}
	return nil
}

func (c *Config) validateTypes(v *validator) {
	for _, name := range sortedKeys(c.Types.IntScalars) {
		switch c.Types.IntScalars[name].Width {
		case 8, 16, 32, 64:
		default:
			v.add("types.int_scalars."+name+".width", "width must be 8, 16, 32 or 64")
		}
	}
	for _, name := range sortedKeys(c.Types.FloatScalars) {
		switch c.Types.FloatScalars[name].Width {
		case 16, 32, 64:
		default:
			v.add("types.float_scalars."+name+".width", "width must be 16, 32 or 64")
		}
	}
	for _, name := range sortedKeys(c.Types.Foreign) {
		if _, err := types.ParseForeignKind(c.Types.Foreign[name]); err != nil {
			v.add("types.foreign."+name, "%v", err)
		}
	}
	for _, alias := range sortedKeys(c.Types.ForeignAliases) {
		target := c.Types.ForeignAliases[alias]
		if _, ok := c.Types.Foreign[target]; !ok {
			v.add("types.foreign_aliases."+alias, "target %q is not a foreign base type", target)
		}
	}
}
