// Package trampoline builds the callables that stand in for extension
// functions resolved at runtime.
//
// Each distinct resolved pointer gets exactly one trampoline. Cache.Resolve
// is safe for concurrent use; concurrent first-time resolutions of the same
// pointer share one build.
package trampoline

import (
	"strings"

	"github.com/coral-mesh/apitrace/internal/model"
	"github.com/coral-mesh/apitrace/internal/types"
)

// Signature is the foreign-call shape of a function.
type Signature struct {
	Function string              `json:"-" yaml:"-"`
	Args     []types.ForeignKind `json:"args" yaml:"args,flow"`
	Return   types.ForeignKind   `json:"return" yaml:"return"`
}

// Describe computes the foreign-call signature of cmd. A void-only
// parameter list has no arguments.
func Describe(cmd *model.Command, r *types.Resolver) (Signature, error) {
	sig := Signature{Function: cmd.Name(), Args: []types.ForeignKind{}}

	if !cmd.VoidParameters() {
		for _, p := range cmd.Parameters {
			if p.Pointer {
				sig.Args = append(sig.Args, types.ForeignPointer)
				continue
			}
			k, err := r.ResolveForeign(p.Type)
			if err != nil {
				return Signature{}, err
			}
			sig.Args = append(sig.Args, k)
		}
	}

	ret, err := r.ResolveForeign(cmd.Prototype.ReturnType)
	if err != nil {
		return Signature{}, err
	}
	sig.Return = ret
	return sig, nil
}

// String formats the signature as `ret (arg, ...)`.
func (s Signature) String() string {
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.String()
	}
	return s.Return.String() + " (" + strings.Join(args, ", ") + ")"
}
