// Package events derives the entry and exit trace events of a command.
package events

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/apitrace/internal/model"
)

// Event is the ordered field list of one (function, direction) pair.
type Event struct {
	Function  string
	Direction model.Direction

	fields []model.Field
	index  map[string]int
}

// NewEvent creates an empty event.
func NewEvent(function string, dir model.Direction) *Event {
	return &Event{
		Function:  function,
		Direction: dir,
		index:     make(map[string]int),
	}
}

// Name is the tracepoint name, <provider>:<function>_<start|stop>.
func (e *Event) Name(provider string) string {
	return provider + ":" + e.Function + "_" + e.Direction.String()
}

// Set appends f, or replaces the field of the same name in place. It
// reports whether a field was replaced.
func (e *Event) Set(f model.Field) bool {
	if i, ok := e.index[f.Name]; ok {
		e.fields[i] = f
		return true
	}
	e.index[f.Name] = len(e.fields)
	e.fields = append(e.fields, f)
	return false
}

// Field looks up a field by name.
func (e *Event) Field(name string) (model.Field, bool) {
	i, ok := e.index[name]
	if !ok {
		return model.Field{}, false
	}
	return e.fields[i], true
}

// Fields returns the fields in order.
func (e *Event) Fields() []model.Field {
	out := make([]model.Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// Names returns the field names in order.
func (e *Event) Names() []string {
	out := make([]string, len(e.fields))
	for i, f := range e.fields {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of fields.
func (e *Event) Len() int { return len(e.fields) }

// MarshalYAML encodes the event as a mapping that keeps field order.
func (e *Event) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range e.fields {
		var v yaml.Node
		if err := v.Encode(f); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name},
			&v,
		)
	}
	return node, nil
}

// MarshalJSON encodes the event as an object that keeps field order.
func (e *Event) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range e.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f)
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
