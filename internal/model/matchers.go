package model

import (
	"github.com/coral-mesh/apitrace/internal/config"
)

// Matcher inspects a command and may contribute one automatic
// meta-parameter. A matcher that does not apply returns false.
type Matcher struct {
	Name  string
	Match func(b *Builder, cmd *Command) (MetaParameter, bool, error)
}

// NewMatchers builds the matchers in the configured order.
func NewMatchers(entries []config.MatcherEntry) []Matcher {
	out := make([]Matcher, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case config.MatcherWaitList:
			out = append(out, WaitListMatcher(e.Param, e.Count))
		case config.MatcherOutScalar:
			out = append(out, OutScalarMatcher(e.Param))
		case config.MatcherValueBuffer:
			out = append(out, ValueBufferMatcher(e.Param, e.Count))
		}
	}
	return out
}

// WaitListMatcher pairs a wait list parameter with its count as an input
// array.
func WaitListMatcher(param, count string) Matcher {
	return Matcher{
		Name: "wait_list:" + param,
		Match: func(b *Builder, cmd *Command) (MetaParameter, bool, error) {
			if _, ok := cmd.Parameter(param); !ok {
				return nil, false, nil
			}
			m, err := b.newInArray(cmd, param, count)
			return m, err == nil, err
		},
	}
}

// OutScalarMatcher captures *param on exit. It only fires when the
// parameter exists and is a pointer.
func OutScalarMatcher(param string) Matcher {
	return Matcher{
		Name: "out_scalar:" + param,
		Match: func(b *Builder, cmd *Command) (MetaParameter, bool, error) {
			p, ok := cmd.Parameter(param)
			if !ok || !p.Pointer {
				return nil, false, nil
			}
			m, err := b.newOutScalar(cmd, param)
			return m, err == nil, err
		},
	}
}

// ValueBufferMatcher captures an opaque (buffer, size) result as an output
// array.
func ValueBufferMatcher(param, count string) Matcher {
	return Matcher{
		Name: "value_buffer:" + param,
		Match: func(b *Builder, cmd *Command) (MetaParameter, bool, error) {
			if _, ok := cmd.Parameter(param); !ok {
				return nil, false, nil
			}
			m, err := b.newOutArray(cmd, param, count)
			return m, err == nil, err
		},
	}
}
