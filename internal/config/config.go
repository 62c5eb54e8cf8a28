// Package config provides the annotation tables, type tables and
// conventions that drive model generation.
package config

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// Config is the complete generator configuration. It is assembled once,
// before model construction, and never mutated afterwards.
type Config struct {
	Version     string      `yaml:"version" jsonschema:"description=Configuration schema version"`
	Provider    string      `yaml:"provider" env:"APITRACE_PROVIDER" jsonschema:"description=Tracing provider name used as the event name prefix"`
	Log         LogConfig   `yaml:"log,omitempty"`
	Conventions Conventions `yaml:"conventions"`
	Types       TypeTables  `yaml:"types"`
	Filters     Filters     `yaml:"filters"`

	// MetaParameters maps a function name to its explicit meta-parameters,
	// in registration order.
	MetaParameters map[string][]MetaEntry `yaml:"meta_parameters,omitempty"`
	// MetaStructs maps a function name to the struct-typed parameters whose
	// members are traced individually.
	MetaStructs map[string][]StructEntry `yaml:"meta_structs,omitempty"`

	Hooks []HookEntry `yaml:"hooks,omitempty"`
	Enums []EnumEntry `yaml:"enums,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" env:"APITRACE_LOG_LEVEL" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Pretty bool   `yaml:"pretty,omitempty" env:"APITRACE_LOG_PRETTY"`
}

// Conventions are the naming conventions of the traced API.
type Conventions struct {
	// CallbackMarker identifies callback parameters in a declaration.
	CallbackMarker string `yaml:"callback_marker"`
	// StatusType is the integer type returned as an error code.
	StatusType string `yaml:"status_type"`
	// EventType is the handle type of asynchronous events.
	EventType string `yaml:"event_type"`
	// HandlePrefixes and HandleSuffixes are stripped from a handle type to
	// name the return field (cl_mem -> mem, CLeglImageKHR -> eglImage).
	HandlePrefixes []string `yaml:"handle_prefixes,omitempty"`
	HandleSuffixes []string `yaml:"handle_suffixes,omitempty"`
	// TracePointerAddresses traces raw data pointers of the entry event as
	// addresses. Callbacks are always traced.
	TracePointerAddresses bool `yaml:"trace_pointer_addresses,omitempty"`
	// Matchers are evaluated in order against every command.
	Matchers []MatcherEntry `yaml:"matchers,omitempty"`
}

// MatcherKind selects the shape of an automatic matcher.
type MatcherKind string

const (
	MatcherWaitList    MatcherKind = "wait_list"
	MatcherOutScalar   MatcherKind = "out_scalar"
	MatcherValueBuffer MatcherKind = "value_buffer"
)

// MatcherEntry configures one automatic matcher.
type MatcherEntry struct {
	Kind  MatcherKind `yaml:"kind" jsonschema:"enum=wait_list,enum=out_scalar,enum=value_buffer"`
	Param string      `yaml:"param"`
	Count string      `yaml:"count,omitempty"`
}

// IntScalar describes an integer base type.
type IntScalar struct {
	Width  int  `yaml:"width" jsonschema:"enum=8,enum=16,enum=32,enum=64"`
	Signed bool `yaml:"signed,omitempty"`
}

// FloatScalar describes a floating point base type.
type FloatScalar struct {
	Width int    `yaml:"width" jsonschema:"enum=16,enum=32,enum=64"`
	Bits  string `yaml:"bits,omitempty" jsonschema:"description=Unsigned integer type of the same width"`
}

// TypeTables are the base type tables of the resolver.
type TypeTables struct {
	Handles        []string               `yaml:"handles"`
	IntScalars     map[string]IntScalar   `yaml:"int_scalars"`
	FloatScalars   map[string]FloatScalar `yaml:"float_scalars"`
	Overrides      map[string]string      `yaml:"overrides,omitempty"`
	Foreign        map[string]string      `yaml:"foreign" jsonschema:"description=Foreign base types and their kind (u8 i8 u16 i16 u32 i32 u64 i64 float double void pointer)"`
	ForeignAliases map[string]string      `yaml:"foreign_aliases,omitempty"`
}

// Filters select the commands to trace.
type Filters struct {
	Exclude             []Pattern `yaml:"exclude,omitempty"`
	Extension           Pattern   `yaml:"extension"`
	SupportedExtensions Pattern   `yaml:"supported_extensions,omitempty"`
	Init                Pattern   `yaml:"init,omitempty"`
}

// Excluded reports whether name matches any exclusion pattern.
func (f Filters) Excluded(name string) bool {
	for _, p := range f.Exclude {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// MetaKind names an explicit meta-parameter variant.
type MetaKind string

const (
	MetaOutScalar     MetaKind = "OutScalar"
	MetaInFixedArray  MetaKind = "InFixedArray"
	MetaInArray       MetaKind = "InArray"
	MetaOutArray      MetaKind = "OutArray"
	MetaInNullArray   MetaKind = "InNullArray"
	MetaInString      MetaKind = "InString"
	MetaInBlob        MetaKind = "InBlob"
	MetaInCustomArray MetaKind = "InCustomArray"
)

// metaArity is the number of arguments each kind takes, after the kind.
var metaArity = map[MetaKind]struct{ min, max int }{
	MetaOutScalar:     {1, 1},
	MetaInFixedArray:  {2, 2},
	MetaInArray:       {1, 2},
	MetaOutArray:      {1, 2},
	MetaInNullArray:   {1, 1},
	MetaInString:      {1, 1},
	MetaInBlob:        {2, 2},
	MetaInCustomArray: {2, 2},
}

// MetaEntry is one explicit meta-parameter registration, written in YAML as
// a flow sequence: [InArray, devices, num_devices].
type MetaEntry struct {
	Kind MetaKind
	Args []string
}

// Arg returns the i-th argument or def when absent.
func (m MetaEntry) Arg(i int, def string) string {
	if i < len(m.Args) && m.Args[i] != "" {
		return m.Args[i]
	}
	return def
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MetaEntry) UnmarshalYAML(node *yaml.Node) error {
	var raw []string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: meta parameter must be a sequence of strings: %w", node.Line, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("line %d: empty meta parameter", node.Line)
	}
	m.Kind = MetaKind(raw[0])
	m.Args = raw[1:]
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m MetaEntry) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range append([]string{string(m.Kind)}, m.Args...) {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v})
	}
	return node, nil
}

// JSONSchema describes the sequence form.
func (MetaEntry) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: "[Kind, parameter, args...] where Kind is one of OutScalar InFixedArray InArray OutArray InNullArray InString InBlob InCustomArray",
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

// StructEntry binds a parameter to the struct type it points to, written as
// [parameter, struct].
type StructEntry struct {
	Param  string
	Struct string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StructEntry) UnmarshalYAML(node *yaml.Node) error {
	var raw []string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: meta struct must be a sequence of strings: %w", node.Line, err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("line %d: meta struct needs [parameter, struct], got %d items", node.Line, len(raw))
	}
	s.Param, s.Struct = raw[0], raw[1]
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s StructEntry) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.SequenceNode,
		Style: yaml.FlowStyle,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: s.Param},
			{Kind: yaml.ScalarNode, Value: s.Struct},
		},
	}, nil
}

// JSONSchema describes the pair form.
func (StructEntry) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: "[parameter, struct]",
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

// HookEntry adds prologue/epilogue snippets to the selected commands.
// A command is selected when it is listed in Functions or when the When
// expression evaluates to true.
type HookEntry struct {
	Functions []string `yaml:"functions,omitempty"`
	When      string   `yaml:"when,omitempty" jsonschema:"description=CEL predicate over name extension init returns_event event_output"`
	Prologue  string   `yaml:"prologue,omitempty"`
	Epilogue  string   `yaml:"epilogue,omitempty"`
}

// EnumEntry selects a group of registry constants to classify as an
// enumeration or a bitfield.
type EnumEntry struct {
	Name      string `yaml:"name"`
	TraceName string `yaml:"trace_name,omitempty"`
	TypeName  string `yaml:"type_name,omitempty"`
}
