package model

import (
	"fmt"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/types"
)

// defaultCount is the count parameter of an array registered without one.
const defaultCount = "num_entries"

// MetaParameter is a traced field that is not a 1:1 copy of a parameter.
// The set of variants is closed.
type MetaParameter interface {
	// Direction restricts the field to the entry or the exit event.
	Direction() Direction
	// Field is the precomputed field; its Source is filled in by derivation.
	Field() Field
	// Param is the parameter the field reads.
	Param() string

	isMetaParameter()
}

type meta struct {
	dir   Direction
	field Field
	param string
}

func (m *meta) Direction() Direction { return m.dir }
func (m *meta) Field() Field         { return m.field }
func (m *meta) Param() string        { return m.param }
func (*meta) isMetaParameter()       {}

// OutScalar captures *P after the call.
type OutScalar struct{ meta }

// InFixedArray captures Count elements of P, Count being a literal.
type InFixedArray struct {
	meta
	Count string
}

// InArray captures P on entry, its length read from the Count parameter.
type InArray struct {
	meta
	Count string
}

// OutArray captures P on exit, its length read from the Count parameter.
type OutArray struct {
	meta
	Count string
}

// InNullArray captures a zero-terminated array; Size counts the elements.
type InNullArray struct {
	meta
	Size Local
}

// InString captures a NUL-terminated string.
type InString struct{ meta }

// InBlob captures P as raw bytes whose length is an arbitrary expression.
type InBlob struct {
	meta
	Length string
}

// InCustomArray captures an array whose length is computed by injected
// setup code into Size.
type InCustomArray struct {
	meta
	Size Local
}

// StructMember captures one member of a struct passed by pointer.
type StructMember struct {
	meta
	Member Member
}

func sizeLocal(name, setup string) Local {
	return Local{Name: "_" + name + "_size", Type: "size_t", Setup: setup}
}

func nullScanSetup(name, size string) string {
	return fmt.Sprintf("  %[2]s = 0;\n  if(%[1]s != NULL) {\n    while(%[1]s[%[2]s++] != 0);\n  }\n", name, size)
}

func unsupportedType(fn, field, typ string, cause error) error {
	return errors.New(errors.PhaseConfig, errors.KindUnsupportedType).
		Function(fn).
		Field(field).
		Type(typ).
		Cause(cause).
		Detail("unknown type").
		Build()
}

// explicit constructs a registered meta-parameter.
func (b *Builder) explicit(cmd *Command, e config.MetaEntry) (MetaParameter, error) {
	name := e.Arg(0, "")
	switch e.Kind {
	case config.MetaOutScalar:
		return b.newOutScalar(cmd, name)
	case config.MetaInFixedArray:
		return b.newInFixedArray(cmd, name, e.Arg(1, ""))
	case config.MetaInArray:
		return b.newInArray(cmd, name, e.Arg(1, defaultCount))
	case config.MetaOutArray:
		return b.newOutArray(cmd, name, e.Arg(1, defaultCount))
	case config.MetaInNullArray:
		return b.newInNullArray(cmd, name)
	case config.MetaInString:
		return b.newInString(cmd, name)
	case config.MetaInBlob:
		return b.newInBlob(cmd, name, e.Arg(1, "0"))
	case config.MetaInCustomArray:
		return b.newInCustomArray(cmd, name, e.Arg(1, ""))
	}
	return nil, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
		Function(cmd.Name()).
		Field(name).
		Detail("unknown meta parameter kind %q", e.Kind).
		Build()
}

func (b *Builder) newOutScalar(cmd *Command, name string) (MetaParameter, error) {
	typ, _, ok := cmd.Lookup(name)
	if !ok {
		return nil, errors.MissingParameter(cmd.Name(), name)
	}
	base, _ := types.SplitPointer(typ)
	f := Field{
		Name:  name + "_val",
		Value: fmt.Sprintf("%s == NULL ? 0 : *%s", name, name),
	}
	tt, err := b.resolver.ResolveTrace(base)
	if err != nil {
		return nil, unsupportedType(cmd.Name(), f.Name, base, err)
	}
	switch tt.Kind {
	case types.TraceHandle:
		f.Encoding, f.Type = EncIntegerHex, "intptr_t"
	case types.TraceInt:
		f.Encoding, f.Type = EncInteger, tt.Name
	case types.TraceFloat:
		f.Encoding, f.Type = EncFloat, tt.Name
	default:
		return nil, unsupportedType(cmd.Name(), f.Name, base, nil)
	}
	return &OutScalar{meta{dir: Exit, field: f, param: name}}, nil
}

func (b *Builder) newInFixedArray(cmd *Command, name, count string) (MetaParameter, error) {
	typ, _, ok := cmd.Lookup(name)
	if !ok {
		return nil, errors.MissingParameter(cmd.Name(), name)
	}
	f, err := b.arrayField(cmd, name, typ, count, false)
	if err != nil {
		return nil, err
	}
	return &InFixedArray{meta: meta{dir: Entry, field: f, param: name}, Count: count}, nil
}

func (b *Builder) newInArray(cmd *Command, name, count string) (MetaParameter, error) {
	f, err := b.sequenceField(cmd, name, count)
	if err != nil {
		return nil, err
	}
	return &InArray{meta: meta{dir: Entry, field: f, param: name}, Count: count}, nil
}

func (b *Builder) newOutArray(cmd *Command, name, count string) (MetaParameter, error) {
	f, err := b.sequenceField(cmd, name, count)
	if err != nil {
		return nil, err
	}
	return &OutArray{meta: meta{dir: Exit, field: f, param: name}, Count: count}, nil
}

func (b *Builder) newInNullArray(cmd *Command, name string) (MetaParameter, error) {
	if _, ok := cmd.Parameter(name); !ok {
		return nil, errors.MissingParameter(cmd.Name(), name)
	}
	size := sizeLocal(name, "")
	size.Setup = nullScanSetup(name, size.Name)
	cmd.Locals = append(cmd.Locals, size)

	f, err := b.sequenceField(cmd, name, size.Name)
	if err != nil {
		return nil, err
	}
	return &InNullArray{meta: meta{dir: Entry, field: f, param: name}, Size: size}, nil
}

func (b *Builder) newInCustomArray(cmd *Command, name, setup string) (MetaParameter, error) {
	if _, ok := cmd.Parameter(name); !ok {
		return nil, errors.MissingParameter(cmd.Name(), name)
	}
	size := sizeLocal(name, setup)
	cmd.Locals = append(cmd.Locals, size)

	f, err := b.sequenceField(cmd, name, size.Name)
	if err != nil {
		return nil, err
	}
	return &InCustomArray{meta: meta{dir: Entry, field: f, param: name}, Size: size}, nil
}

func (b *Builder) newInString(cmd *Command, name string) (MetaParameter, error) {
	if _, ok := cmd.Parameter(name); !ok {
		return nil, errors.MissingParameter(cmd.Name(), name)
	}
	f := Field{Name: name + "_val", Encoding: EncString, Value: name}
	return &InString{meta{dir: Entry, field: f, param: name}}, nil
}

func (b *Builder) newInBlob(cmd *Command, name, length string) (MetaParameter, error) {
	if _, ok := cmd.Parameter(name); !ok {
		return nil, errors.MissingParameter(cmd.Name(), name)
	}
	f := Field{
		Name:       name + "_vals",
		Encoding:   EncSequenceHex,
		Type:       "uint8_t",
		Value:      name,
		LengthType: "size_t",
		Length:     fmt.Sprintf("%s == NULL ? 0 : (%s)", name, length),
	}
	return &InBlob{meta: meta{dir: Entry, field: f, param: name}, Length: length}, nil
}

// sequenceField builds a runtime-length array of name whose length is read
// from the count parameter or local.
func (b *Builder) sequenceField(cmd *Command, name, count string) (Field, error) {
	typ, _, ok := cmd.Lookup(name)
	if !ok {
		return Field{}, errors.MissingParameter(cmd.Name(), name)
	}
	if _, _, ok := cmd.Lookup(count); !ok {
		return Field{}, errors.MissingParameter(cmd.Name(), count)
	}
	return b.arrayField(cmd, name, typ, count, true)
}

// arrayField chooses the element encoding of an array of elemType.
func (b *Builder) arrayField(cmd *Command, name, elemType, count string, sequence bool) (Field, error) {
	f := Field{Name: name + "_vals", Value: name}

	kind := "array"
	if sequence {
		countType, _, _ := cmd.Lookup(count)
		ct, err := b.resolver.ResolveTrace(countType)
		if err != nil {
			return Field{}, unsupportedType(cmd.Name(), count, countType, err)
		}
		if ct.Kind != types.TraceInt {
			return Field{}, unsupportedType(cmd.Name(), count, countType, nil)
		}
		kind = "sequence"
		f.LengthType = ct.Name
		f.Length = fmt.Sprintf("%s == NULL ? 0 : %s", name, count)
	} else {
		f.Length = count
	}

	tt, err := b.resolver.ResolveTrace(elemType)
	if err != nil {
		return Field{}, unsupportedType(cmd.Name(), f.Name, elemType, err)
	}
	switch tt.Kind {
	case types.TraceHandle, types.TracePointer:
		f.Encoding, f.Type = Encoding(kind+"_hex"), "intptr_t"
	case types.TraceInt:
		f.Encoding, f.Type = Encoding(kind), tt.Name
	case types.TraceFloat:
		f.Encoding, f.Type = Encoding(kind+"_hex"), b.resolver.FloatBits(tt.Name)
	case types.TraceStruct, types.TraceOpaque:
		f.Encoding, f.Type = Encoding(kind+"_text"), "uint8_t"
	default:
		return Field{}, unsupportedType(cmd.Name(), f.Name, elemType, nil)
	}
	return f, nil
}

// structMembers expands every member of the struct bound to param.
func (b *Builder) structMembers(cmd *Command, e config.StructEntry) ([]MetaParameter, error) {
	if _, ok := cmd.Parameter(e.Param); !ok {
		return nil, errors.MissingParameter(cmd.Name(), e.Param)
	}
	s, ok := b.structs[e.Struct]
	if !ok {
		return nil, errors.UnknownStruct(cmd.Name(), e.Param, e.Struct)
	}

	out := make([]MetaParameter, 0, len(s.Members))
	for _, d := range s.Members {
		m := Member{Declaration: newDeclaration(d), Prefix: e.Param}
		f, ok, err := b.memberField(cmd, m)
		if err != nil {
			return nil, err
		}
		if !ok {
			b.logger.Debug().
				Str("function", cmd.Name()).
				Str("member", m.FieldName()).
				Str("type", m.Type).
				Msg("Skipping struct member without scalar encoding")
			continue
		}
		out = append(out, &StructMember{meta: meta{dir: Entry, field: f, param: e.Param}, Member: m})
	}
	return out, nil
}

func (b *Builder) memberField(cmd *Command, m Member) (Field, bool, error) {
	f := Field{Name: m.FieldName(), Value: m.Value()}
	if m.Pointer {
		f.Encoding, f.Type = EncIntegerHex, "intptr_t"
		return f, true, nil
	}
	tt, err := b.resolver.ResolveTrace(m.Type)
	if err != nil {
		return Field{}, false, unsupportedType(cmd.Name(), f.Name, m.Type, err)
	}
	switch tt.Kind {
	case types.TraceHandle:
		f.Encoding, f.Type = EncIntegerHex, "intptr_t"
	case types.TraceInt:
		f.Encoding, f.Type = EncInteger, tt.Name
	case types.TraceFloat:
		f.Encoding, f.Type = EncFloat, tt.Name
	default:
		return Field{}, false, nil
	}
	return f, true, nil
}
