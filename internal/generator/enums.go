package generator

import (
	"regexp"
	"strings"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/registry"
)

const bitfieldMarker = " - bitfield"

// classifyEnums collects the constants of every configured enum from the
// require groups whose comment names it. A group marked as a bitfield makes
// the whole enum a bitfield.
func classifyEnums(entries []config.EnumEntry, reg *registry.Registry, diags *errors.Diagnostics) (enums, bitfields map[string]Enum) {
	enums = make(map[string]Enum)
	bitfields = make(map[string]Enum)

	for _, e := range entries {
		re := regexp.MustCompile(regexp.QuoteMeta(e.Name) + `(\z| )`)

		out := Enum{TraceName: e.TraceName, TypeName: e.TypeName}
		bitfield, matched := false, false
		for _, r := range reg.Requires {
			if r.Comment == "" || !re.MatchString(r.Comment) {
				continue
			}
			matched = true
			if strings.Contains(r.Comment, bitfieldMarker) {
				bitfield = true
			}
			for _, name := range r.Enums {
				out.Values = append(out.Values, EnumValue{Name: name, Value: reg.Constants[name]})
			}
		}

		if !matched {
			diags.Warn(errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Field("enums." + e.Name).
				Detail("no require group names this enum").
				Build())
			continue
		}
		if bitfield {
			bitfields[e.Name] = out
		} else {
			enums[e.Name] = out
		}
	}
	return enums, bitfields
}
