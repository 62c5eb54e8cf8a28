package model

import (
	"fmt"
	"strings"
)

// Direction selects the entry or the exit event of a command.
type Direction uint8

const (
	Entry Direction = iota
	Exit
)

func (d Direction) String() string {
	if d == Exit {
		return "stop"
	}
	return "start"
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "start", "entry":
		*d = Entry
	case "stop", "exit":
		*d = Exit
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// Encoding is how the tracing backend records a field.
type Encoding string

const (
	EncInteger      Encoding = "integer"
	EncIntegerHex   Encoding = "integer_hex"
	EncFloat        Encoding = "float"
	EncString       Encoding = "string"
	EncArray        Encoding = "array"
	EncArrayHex     Encoding = "array_hex"
	EncArrayText    Encoding = "array_text"
	EncSequence     Encoding = "sequence"
	EncSequenceHex  Encoding = "sequence_hex"
	EncSequenceText Encoding = "sequence_text"
)

// IsArray reports whether the length is fixed at registration time.
func (e Encoding) IsArray() bool { return strings.HasPrefix(string(e), "array") }

// IsSequence reports whether the length is computed at trace time.
func (e Encoding) IsSequence() bool { return strings.HasPrefix(string(e), "sequence") }

// Field describes one traced value.
type Field struct {
	Name     string   `json:"-" yaml:"-"`
	Encoding Encoding `json:"encoding" yaml:"encoding"`
	// Type is the primitive (element) type the value is recorded as.
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Value string `json:"value" yaml:"value"`
	// Length is the element count of an array or the runtime length
	// expression of a sequence.
	Length     string `json:"length,omitempty" yaml:"length,omitempty"`
	LengthType string `json:"length_type,omitempty" yaml:"length_type,omitempty"`
	// Source is the declaration the field was derived from.
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`
}

// Source identifies the declaration behind a field.
type Source struct {
	Type    string `json:"type" yaml:"type"`
	Pointer bool   `json:"pointer,omitempty" yaml:"pointer,omitempty"`
	Struct  string `json:"struct,omitempty" yaml:"struct,omitempty"`
	Member  string `json:"member,omitempty" yaml:"member,omitempty"`
}

// WithSource returns a copy of f carrying src.
func (f Field) WithSource(src Source) Field {
	f.Source = &src
	return f
}
