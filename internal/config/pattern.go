package config

import (
	"fmt"
	"regexp"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Pattern is a regular expression read from YAML as a string.
type Pattern struct {
	re *regexp.Regexp
}

// MustPattern compiles expr or panics.
func MustPattern(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

// MatchString reports whether s matches. An empty pattern matches nothing.
func (p Pattern) MatchString(s string) bool {
	return p.re != nil && p.re.MatchString(s)
}

// IsZero reports whether the pattern is unset.
func (p Pattern) IsZero() bool { return p.re == nil }

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Pattern) UnmarshalYAML(node *yaml.Node) error {
	var expr string
	if err := node.Decode(&expr); err != nil {
		return err
	}
	if expr == "" {
		p.re = nil
		return nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("line %d: invalid pattern %q: %w", node.Line, expr, err)
	}
	p.re = re
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (p Pattern) MarshalYAML() (any, error) {
	return p.String(), nil
}

// JSONSchema describes a pattern as a regex string.
func (Pattern) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Format: "regex"}
}
