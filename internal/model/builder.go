package model

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/registry"
	"github.com/coral-mesh/apitrace/internal/types"
)

// Builder turns registry commands into Commands.
type Builder struct {
	cfg      *config.Config
	resolver *types.Resolver
	structs  map[string]registry.Struct
	matchers []Matcher
	logger   zerolog.Logger
}

// NewBuilder creates a builder. structs are the registry structs available
// to struct expansion.
func NewBuilder(cfg *config.Config, resolver *types.Resolver, structs map[string]registry.Struct, logger zerolog.Logger) *Builder {
	return &Builder{
		cfg:      cfg,
		resolver: resolver,
		structs:  structs,
		matchers: NewMatchers(cfg.Conventions.Matchers),
		logger:   logger,
	}
}

// Resolver returns the type resolver used by the builder.
func (b *Builder) Resolver() *types.Resolver { return b.resolver }

// Build creates the Command of a registry node. Any annotation that does
// not match the command is a configuration error.
func (b *Builder) Build(node registry.Command) (*Command, error) {
	conv := b.cfg.Conventions
	cmd := &Command{Prototype: newPrototype(node.Proto)}
	name := cmd.Name()

	for _, d := range node.Params {
		cmd.Parameters = append(cmd.Parameters, newParameter(d, conv.CallbackMarker))
	}
	cmd.extension = b.cfg.Filters.Extension.MatchString(name)
	cmd.init = b.cfg.Filters.Init.MatchString(name)
	cmd.returnsEvent = conv.EventType != "" && cmd.Prototype.ReturnType == conv.EventType

	for i := range cmd.Parameters {
		f, err := b.parameterField(cmd, cmd.Parameters[i])
		if err != nil {
			return nil, err
		}
		cmd.Parameters[i].Trace = f
	}

	ret, err := b.returnField(cmd)
	if err != nil {
		return nil, err
	}
	cmd.Prototype.Return = ret

	for _, m := range b.matchers {
		mp, ok, err := m.Match(b, cmd)
		if err != nil {
			return nil, err
		}
		if ok {
			cmd.MetaParameters = append(cmd.MetaParameters, mp)
		}
	}

	for _, e := range b.cfg.MetaParameters[name] {
		mp, err := b.explicit(cmd, e)
		if err != nil {
			return nil, err
		}
		cmd.MetaParameters = append(cmd.MetaParameters, mp)
	}

	for _, e := range b.cfg.MetaStructs[name] {
		members, err := b.structMembers(cmd, e)
		if err != nil {
			return nil, err
		}
		cmd.MetaParameters = append(cmd.MetaParameters, members...)
	}

	b.logger.Debug().
		Str("function", name).
		Int("parameters", len(cmd.Parameters)).
		Int("meta_parameters", len(cmd.MetaParameters)).
		Bool("extension", cmd.extension).
		Msg("Built command")

	return cmd, nil
}

// parameterField is the entry field of a parameter traced directly.
// Callbacks always trace as an address; other pointers only when
// configured to.
func (b *Builder) parameterField(cmd *Command, p Parameter) (*Field, error) {
	if p.IsVoidOnly() {
		return nil, nil
	}
	if p.Pointer {
		if !p.Callback && !b.cfg.Conventions.TracePointerAddresses {
			return nil, nil
		}
		return &Field{Name: p.Name, Encoding: EncIntegerHex, Type: "intptr_t", Value: p.Name}, nil
	}

	tt, err := b.resolver.ResolveTrace(p.Type)
	if err != nil {
		return nil, unsupportedType(cmd.Name(), p.Name, p.Type, err)
	}
	f := &Field{Name: p.Name, Value: p.Name}
	switch tt.Kind {
	case types.TraceHandle:
		f.Encoding, f.Type = EncIntegerHex, "intptr_t"
	case types.TraceInt:
		f.Encoding, f.Type = EncInteger, tt.Name
	case types.TraceFloat:
		f.Encoding, f.Type = EncFloat, tt.Name
	default:
		b.logger.Debug().
			Str("function", cmd.Name()).
			Str("parameter", p.Name).
			Str("type", tt.String()).
			Msg("Parameter is not traced directly")
		return nil, nil
	}
	return f, nil
}

// returnField is the exit field of the return value.
func (b *Builder) returnField(cmd *Command) (*Field, error) {
	rt := cmd.Prototype.ReturnType
	const retval = "_retval"

	switch {
	case strings.Contains(rt, "*"):
		return &Field{Name: retval, Encoding: EncIntegerHex, Type: "intptr_t", Value: retval}, nil
	case rt == "" || rt == "void":
		return nil, nil
	case rt == b.cfg.Conventions.StatusType:
		return &Field{Name: "errcode_ret_val", Encoding: EncInteger, Type: rt, Value: retval}, nil
	}

	tt, err := b.resolver.ResolveTrace(rt)
	if err != nil {
		return nil, unsupportedType(cmd.Name(), retval, rt, err)
	}
	switch tt.Kind {
	case types.TraceHandle:
		return &Field{Name: b.handleFieldName(rt), Encoding: EncIntegerHex, Type: "intptr_t", Value: retval}, nil
	case types.TraceInt:
		return &Field{Name: retval, Encoding: EncInteger, Type: tt.Name, Value: retval}, nil
	case types.TraceFloat:
		return &Field{Name: retval, Encoding: EncFloat, Type: tt.Name, Value: retval}, nil
	}
	return nil, nil
}

// handleFieldName strips the handle prefix and suffix: cl_mem -> mem,
// CLeglImageKHR -> eglImage.
func (b *Builder) handleFieldName(handle string) string {
	name := handle
	for _, p := range b.cfg.Conventions.HandlePrefixes {
		if trimmed := strings.TrimPrefix(name, p); trimmed != name {
			name = trimmed
			break
		}
	}
	for _, s := range b.cfg.Conventions.HandleSuffixes {
		if trimmed := strings.TrimSuffix(name, s); trimmed != name && trimmed != "" {
			name = trimmed
			break
		}
	}
	return name
}
