package generator

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/apitrace/internal/events"
	"github.com/coral-mesh/apitrace/internal/model"
	"github.com/coral-mesh/apitrace/internal/trampoline"
)

// Model is the complete trace model of an API.
type Model struct {
	Provider     string                          `json:"provider" yaml:"provider"`
	Fingerprint  string                          `json:"fingerprint" yaml:"fingerprint"`
	Enums        map[string]Enum                 `json:"enums" yaml:"enums"`
	Bitfields    map[string]Enum                 `json:"bitfields" yaml:"bitfields"`
	Objects      []string                        `json:"objects" yaml:"objects"`
	IntScalars   map[string]Scalar               `json:"int_scalars" yaml:"int_scalars"`
	FloatScalars map[string]Scalar               `json:"float_scalars" yaml:"float_scalars"`
	Events       EventSet                        `json:"events" yaml:"events"`
	Signatures   map[string]trampoline.Signature `json:"signatures" yaml:"signatures"`

	// Commands are the traced commands, in registry order.
	Commands []*model.Command `json:"-" yaml:"-"`
}

// Enum is a classified group of registry constants.
type Enum struct {
	TraceName string      `json:"trace_name,omitempty" yaml:"trace_name,omitempty"`
	TypeName  string      `json:"type_name,omitempty" yaml:"type_name,omitempty"`
	Values    []EnumValue `json:"values" yaml:"values"`
}

// EnumValue is one constant of an Enum.
type EnumValue struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Scalar describes a base type of the trace model.
type Scalar struct {
	Width  int    `json:"width" yaml:"width"`
	Signed bool   `json:"signed,omitempty" yaml:"signed,omitempty"`
	Bits   string `json:"bits,omitempty" yaml:"bits,omitempty"`
}

// EventSet is the ordered list of events, encoded as a mapping keyed by
// event name.
type EventSet struct {
	Provider string
	List     []*events.Event
}

// Get looks up the event of function in direction dir.
func (s EventSet) Get(function string, dir model.Direction) (*events.Event, bool) {
	for _, ev := range s.List {
		if ev.Function == function && ev.Direction == dir {
			return ev, true
		}
	}
	return nil, false
}

// Names returns the event names in order.
func (s EventSet) Names() []string {
	out := make([]string, len(s.List))
	for i, ev := range s.List {
		out[i] = ev.Name(s.Provider)
	}
	return out
}

// MarshalYAML implements yaml.Marshaler.
func (s EventSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, ev := range s.List {
		var v yaml.Node
		if err := v.Encode(ev); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ev.Name(s.Provider)},
			&v,
		)
	}
	return node, nil
}

// MarshalJSON implements json.Marshaler.
func (s EventSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ev := range s.List {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ev.Name(s.Provider))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
