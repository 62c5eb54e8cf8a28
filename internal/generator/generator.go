// Package generator runs the whole pipeline: registry and configuration
// in, trace model out.
package generator

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/events"
	"github.com/coral-mesh/apitrace/internal/hooks"
	"github.com/coral-mesh/apitrace/internal/logging"
	"github.com/coral-mesh/apitrace/internal/model"
	"github.com/coral-mesh/apitrace/internal/registry"
	"github.com/coral-mesh/apitrace/internal/trampoline"
	"github.com/coral-mesh/apitrace/internal/types"
)

// Generator builds the trace model of a registry.
type Generator struct {
	cfg    *config.Config
	reg    *registry.Registry
	logger zerolog.Logger
}

// New creates a generator.
func New(cfg *config.Config, reg *registry.Registry, logger zerolog.Logger) *Generator {
	return &Generator{cfg: cfg, reg: reg, logger: logger}
}

// Traced reports whether the command name is part of the model: every
// command not excluded, plus the supported extension functions.
func (g *Generator) Traced(name string) bool {
	return !g.cfg.Filters.Excluded(name) || g.cfg.Filters.SupportedExtensions.MatchString(name)
}

// Resolver builds the type resolver of the registry.
func (g *Generator) Resolver() (*types.Resolver, error) {
	tables, err := g.cfg.ResolverTables(g.reg.TypedefMap(), g.reg.StructNames())
	if err != nil {
		return nil, err
	}
	return types.NewResolver(tables), nil
}

// Generate builds the model. Configuration errors abort; derivation
// mismatches and other findings are returned as diagnostics alongside a
// model that omits the affected fields.
func (g *Generator) Generate() (*Model, errors.Diagnostics, error) {
	var diags errors.Diagnostics

	resolver, err := g.Resolver()
	if err != nil {
		return nil, nil, err
	}
	g.checkTypedefs(resolver, &diags)

	builder := model.NewBuilder(g.cfg, resolver, g.reg.StructMap(), logging.Component(g.logger, "model"))
	var cmds []*model.Command
	for _, node := range g.reg.Commands {
		if !g.Traced(node.Name()) {
			g.logger.Debug().Str("function", node.Name()).Msg("Skipping filtered command")
			continue
		}
		cmd, err := builder.Build(node)
		if err != nil {
			return nil, nil, err
		}
		cmds = append(cmds, cmd)
	}
	g.checkAnnotations(cmds, &diags)

	table, err := hooks.Build(g.cfg, cmds, logging.Component(g.logger, "hooks"))
	if err != nil {
		return nil, nil, err
	}

	m := &Model{
		Provider:     g.cfg.Provider,
		Objects:      resolver.Handles(),
		IntScalars:   make(map[string]Scalar),
		FloatScalars: make(map[string]Scalar),
		Events:       EventSet{Provider: g.cfg.Provider},
		Signatures:   make(map[string]trampoline.Signature),
		Commands:     cmds,
	}
	m.Enums, m.Bitfields = classifyEnums(g.cfg.Enums, g.reg, &diags)
	for _, name := range resolver.IntScalars() {
		s := g.cfg.Types.IntScalars[name]
		m.IntScalars[name] = Scalar{Width: s.Width, Signed: s.Signed}
	}
	for _, name := range resolver.FloatScalars() {
		m.FloatScalars[name] = Scalar{Width: g.cfg.Types.FloatScalars[name].Width, Bits: resolver.FloatBits(name)}
	}

	deriver := events.NewDeriver(g.cfg, logging.Component(g.logger, "events"))
	for _, cmd := range cmds {
		table.Apply(cmd)

		entry, exit, d := deriver.Derive(cmd)
		diags.Merge(d)
		m.Events.List = append(m.Events.List, entry, exit)

		if !cmd.IsExtension() {
			continue
		}
		sig, err := trampoline.Describe(cmd, resolver)
		if err != nil {
			return nil, nil, err
		}
		m.Signatures[cmd.Name()] = sig
	}

	fp, err := Fingerprint(m)
	if err != nil {
		return nil, nil, err
	}
	m.Fingerprint = fp

	g.logger.Info().
		Int("commands", len(cmds)).
		Int("events", len(m.Events.List)).
		Int("signatures", len(m.Signatures)).
		Int("warnings", diags.Count(errors.SeverityWarning)).
		Int("errors", diags.Count(errors.SeverityError)).
		Str("fingerprint", m.Fingerprint).
		Msg("Generated model")

	return m, diags, nil
}

// checkTypedefs records typedefs that do not resolve. Only the types used
// by traced commands are fatal, and those fail in the builder.
func (g *Generator) checkTypedefs(r *types.Resolver, diags *errors.Diagnostics) {
	err := r.Check()
	if err == nil {
		return
	}
	var joined interface{ Unwrap() []error }
	if !stderrors.As(err, &joined) {
		joined = singleError{err}
	}
	for _, e := range joined.Unwrap() {
		var typed *errors.Error
		if stderrors.As(e, &typed) {
			diags.Warn(typed)
		}
	}
}

type singleError struct{ err error }

func (s singleError) Unwrap() []error { return []error{s.err} }

// checkAnnotations warns about annotations naming functions the model does
// not trace.
func (g *Generator) checkAnnotations(cmds []*model.Command, diags *errors.Diagnostics) {
	traced := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		traced[c.Name()] = true
	}

	var names []string
	for name := range g.cfg.MetaParameters {
		names = append(names, name)
	}
	for name := range g.cfg.MetaStructs {
		if _, ok := g.cfg.MetaParameters[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if traced[name] {
			continue
		}
		diags.Warn(errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Function(name).
			Detail("annotation for a function that is not traced").
			Build())
	}
}

// Fingerprint hashes the model content, excluding the fingerprint itself.
func Fingerprint(m *Model) (string, error) {
	c := *m
	c.Fingerprint = ""
	b, err := yaml.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("encode model: %w", err)
	}
	return fmt.Sprintf("%016x", xxh3.Hash(b)), nil
}
