// Package types canonicalizes declared C types for tracing and for foreign calls.
//
// Two resolution tables are kept apart on purpose: trace encoding needs to
// tell object handles from integers, while a foreign-call signature only
// cares about machine width and class.
package types

import "fmt"

// TraceKind classifies a type for trace encoding.
type TraceKind uint8

const (
	TraceOpaque TraceKind = iota
	TraceHandle
	TraceInt
	TraceFloat
	TraceStruct
	TracePointer
)

var traceKindNames = [...]string{
	TraceOpaque:  "opaque",
	TraceHandle:  "handle",
	TraceInt:     "int",
	TraceFloat:   "float",
	TraceStruct:  "struct",
	TracePointer: "pointer",
}

func (k TraceKind) String() string {
	if int(k) < len(traceKindNames) {
		return traceKindNames[k]
	}
	return "unknown"
}

// TraceType is the canonical trace classification of a declared type.
type TraceType struct {
	Kind TraceKind
	// Name is the canonical base name (cl_uint, cl_context, a struct name).
	// For pointers it is the pointee, decayed by one level.
	Name   string
	Width  int
	Signed bool
	Depth  int
}

func (t TraceType) String() string {
	switch t.Kind {
	case TraceInt:
		sign := "u"
		if t.Signed {
			sign = "s"
		}
		return fmt.Sprintf("int(%s%d %s)", sign, t.Width, t.Name)
	case TraceFloat:
		return fmt.Sprintf("float(%d %s)", t.Width, t.Name)
	case TracePointer:
		return fmt.Sprintf("pointer(%s)", t.Name)
	case TraceOpaque:
		return "opaque"
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Name)
}

// ForeignKind is one of the twelve primitive kinds a foreign-call
// signature is made of.
type ForeignKind uint8

const (
	ForeignU8 ForeignKind = iota
	ForeignI8
	ForeignU16
	ForeignI16
	ForeignU32
	ForeignI32
	ForeignU64
	ForeignI64
	ForeignFloat
	ForeignDouble
	ForeignVoid
	ForeignPointer
)

var foreignKindNames = [...]string{
	ForeignU8:      "u8",
	ForeignI8:      "i8",
	ForeignU16:     "u16",
	ForeignI16:     "i16",
	ForeignU32:     "u32",
	ForeignI32:     "i32",
	ForeignU64:     "u64",
	ForeignI64:     "i64",
	ForeignFloat:   "float",
	ForeignDouble:  "double",
	ForeignVoid:    "void",
	ForeignPointer: "pointer",
}

var ffiNames = [...]string{
	ForeignU8:      "ffi_type_uint8",
	ForeignI8:      "ffi_type_sint8",
	ForeignU16:     "ffi_type_uint16",
	ForeignI16:     "ffi_type_sint16",
	ForeignU32:     "ffi_type_uint32",
	ForeignI32:     "ffi_type_sint32",
	ForeignU64:     "ffi_type_uint64",
	ForeignI64:     "ffi_type_sint64",
	ForeignFloat:   "ffi_type_float",
	ForeignDouble:  "ffi_type_double",
	ForeignVoid:    "ffi_type_void",
	ForeignPointer: "ffi_type_pointer",
}

func (k ForeignKind) String() string {
	if int(k) < len(foreignKindNames) {
		return foreignKindNames[k]
	}
	return "unknown"
}

// FFIName returns the libffi type descriptor name.
func (k ForeignKind) FFIName() string {
	if int(k) < len(ffiNames) {
		return ffiNames[k]
	}
	return ""
}

// Size returns the size in bytes on a 64-bit target.
func (k ForeignKind) Size() int {
	switch k {
	case ForeignU8, ForeignI8:
		return 1
	case ForeignU16, ForeignI16:
		return 2
	case ForeignU32, ForeignI32, ForeignFloat:
		return 4
	case ForeignVoid:
		return 0
	}
	return 8
}

// MarshalText implements encoding.TextMarshaler.
func (k ForeignKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ForeignKind) UnmarshalText(b []byte) error {
	parsed, err := ParseForeignKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseForeignKind parses a kind name such as "u32" or "pointer".
func ParseForeignKind(name string) (ForeignKind, error) {
	for i, n := range foreignKindNames {
		if n == name {
			return ForeignKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown foreign kind %q", name)
}
