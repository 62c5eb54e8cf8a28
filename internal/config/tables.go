package config

import (
	"sort"

	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/types"
)

// ResolverTables combines the configured type tables with the typedefs and
// struct names found in the registry.
func (c *Config) ResolverTables(typedefs map[string]string, structs []string) (types.Tables, error) {
	t := types.Tables{
		Handles:        append([]string(nil), c.Types.Handles...),
		Ints:           make(map[string]types.IntScalar, len(c.Types.IntScalars)),
		Floats:         make(map[string]types.FloatScalar, len(c.Types.FloatScalars)),
		Structs:        append([]string(nil), structs...),
		Typedefs:       typedefs,
		Overrides:      c.Types.Overrides,
		Foreign:        make(map[string]types.ForeignKind, len(c.Types.Foreign)),
		ForeignAliases: c.Types.ForeignAliases,
	}
	for name, s := range c.Types.IntScalars {
		t.Ints[name] = types.IntScalar{Width: s.Width, Signed: s.Signed}
	}
	for name, s := range c.Types.FloatScalars {
		t.Floats[name] = types.FloatScalar{Width: s.Width, Bits: s.Bits}
	}
	for _, name := range sortedKeys(c.Types.Foreign) {
		k, err := types.ParseForeignKind(c.Types.Foreign[name])
		if err != nil {
			return types.Tables{}, errors.InvalidConfig("types.foreign."+name, err.Error())
		}
		t.Foreign[name] = k
	}
	return t, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
