package events

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/model"
)

const (
	errcodeField = "errcode_ret_val"
	valueSuffix  = "_val"
)

var guardPattern = regexp.MustCompile(`(\w+) != NULL`)

// Deriver builds the entry and exit events of commands.
type Deriver struct {
	provider string
	conv     config.Conventions
	logger   zerolog.Logger
}

// NewDeriver creates a deriver for cfg.
func NewDeriver(cfg *config.Config, logger zerolog.Logger) *Deriver {
	return &Deriver{
		provider: cfg.Provider,
		conv:     cfg.Conventions,
		logger:   logger,
	}
}

// Derive builds both events of cmd. A field whose source cannot be
// resolved is dropped and reported; the rest of the event is kept.
func (d *Deriver) Derive(cmd *model.Command) (entry, exit *Event, diags errors.Diagnostics) {
	entry = NewEvent(cmd.Name(), model.Entry)
	exit = NewEvent(cmd.Name(), model.Exit)

	for _, p := range cmd.Parameters {
		if p.Trace == nil {
			continue
		}
		d.set(entry, p.Trace.WithSource(model.Source{Type: p.SourceType(), Pointer: p.Pointer}), &diags)
	}

	if r := cmd.Prototype.Return; r != nil {
		d.set(exit, r.WithSource(model.Source{Type: cmd.Prototype.ReturnType}), &diags)
	}

	for _, m := range cmd.MetaParameters {
		ev := entry
		if m.Direction() == model.Exit {
			ev = exit
		}
		f, err := d.resolve(cmd, m)
		if err != nil {
			d.logger.Warn().
				Err(err).
				Str("event", ev.Name(d.provider)).
				Msg("Dropping field with unresolved source")
			diags.Fail(err.(*errors.Error))
			continue
		}
		d.set(ev, f, &diags)
	}

	return entry, exit, diags
}

func (d *Deriver) set(ev *Event, f model.Field, diags *errors.Diagnostics) {
	if !ev.Set(f) {
		return
	}
	name := ev.Name(d.provider)
	d.logger.Warn().
		Str("event", name).
		Str("field", f.Name).
		Msg("Duplicate field replaces earlier registration")
	diags.Warn(errors.DuplicateField(name, f.Name))
}

// resolve fills in the source declaration of a meta field: the status type
// for the error code, the base parameter of a *_val field, the parameter an
// array reads, or else a struct member found through the null guard.
func (d *Deriver) resolve(cmd *model.Command, m model.MetaParameter) (model.Field, error) {
	f := m.Field()

	switch {
	case f.Name == errcodeField:
		return f.WithSource(model.Source{Type: d.conv.StatusType, Pointer: true}), nil
	case strings.HasSuffix(f.Name, valueSuffix):
		if p, ok := cmd.Parameter(strings.TrimSuffix(f.Name, valueSuffix)); ok {
			return f.WithSource(model.Source{Type: p.SourceType(), Pointer: p.Pointer}), nil
		}
	}
	if p, ok := cmd.Parameter(f.Value); ok {
		return f.WithSource(model.Source{Type: p.SourceType(), Pointer: p.Pointer}), nil
	}
	return d.structFallback(cmd, f)
}

// structFallback finds the expanded struct member a field reads through its
// null guard. More than one candidate is a mismatch.
func (d *Deriver) structFallback(cmd *model.Command, f model.Field) (model.Field, error) {
	members := cmd.StructMembers()

	var found []model.StructMember
	seen := make(map[string]bool)
	for _, match := range guardPattern.FindAllStringSubmatch(f.Value, -1) {
		prefix := match[1]
		if seen[prefix] {
			continue
		}
		seen[prefix] = true

		member := strings.TrimPrefix(f.Name, prefix+"_")
		if member == f.Name {
			continue
		}
		for _, sm := range members {
			if sm.Member.Prefix == prefix && sm.Member.Name == member {
				found = append(found, sm)
			}
		}
	}

	if len(found) != 1 {
		return model.Field{}, errors.DerivationMismatch(cmd.Name(), f.Name, f.Value)
	}
	sm := found[0]
	return f.WithSource(model.Source{
		Type:    sm.Member.Type,
		Pointer: sm.Member.Pointer,
		Struct:  sm.Member.Prefix,
		Member:  sm.Member.Name,
	}), nil
}
