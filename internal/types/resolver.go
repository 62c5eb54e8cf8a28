package types

import (
	stderrors "errors"
	"sort"
	"strings"
	"sync"

	"github.com/coral-mesh/apitrace/internal/errors"
)

// IntScalar describes an integer base type.
type IntScalar struct {
	Width  int
	Signed bool
}

// FloatScalar describes a floating point base type. Bits names the unsigned
// integer type of the same width used when the value is encoded as raw bits.
type FloatScalar struct {
	Width int
	Bits  string
}

// Tables is the input of a Resolver.
type Tables struct {
	// Handles are opaque object types, traced as addresses.
	Handles []string
	// Ints and Floats are the trace base types.
	Ints   map[string]IntScalar
	Floats map[string]FloatScalar
	// Structs are the struct names known to the registry.
	Structs []string
	// Typedefs maps alias -> underlying type, possibly multi-level.
	Typedefs map[string]string
	// Overrides patch types that typedef chasing cannot reach.
	Overrides map[string]string
	// Foreign are the foreign-call base types.
	Foreign map[string]ForeignKind
	// ForeignAliases map API scalar names to foreign base names (cl_int -> int32_t).
	ForeignAliases map[string]string
}

// Resolver canonicalizes declared types. Lookups are memoized; a Resolver is
// safe for concurrent use.
type Resolver struct {
	handles        map[string]bool
	ints           map[string]IntScalar
	floats         map[string]FloatScalar
	structs        map[string]bool
	typedefs       map[string]string
	overrides      map[string]string
	foreign        map[string]ForeignKind
	foreignAliases map[string]string

	mu          sync.Mutex
	traceMemo   map[string]string
	foreignMemo map[string]ForeignKind
}

// NewResolver creates a resolver over the given tables.
func NewResolver(t Tables) *Resolver {
	r := &Resolver{
		handles:        make(map[string]bool, len(t.Handles)),
		ints:           copyMap(t.Ints),
		floats:         copyMap(t.Floats),
		structs:        make(map[string]bool, len(t.Structs)),
		typedefs:       copyMap(t.Typedefs),
		overrides:      copyMap(t.Overrides),
		foreign:        copyMap(t.Foreign),
		foreignAliases: copyMap(t.ForeignAliases),
		traceMemo:      make(map[string]string),
		foreignMemo:    make(map[string]ForeignKind),
	}
	for _, h := range t.Handles {
		r.handles[h] = true
	}
	for _, s := range t.Structs {
		r.structs[s] = true
	}
	return r
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SplitPointer strips qualifiers from a declared type and returns the base
// name and the pointer depth.
func SplitPointer(raw string) (string, int) {
	depth := strings.Count(raw, "*")
	words := strings.Fields(strings.ReplaceAll(raw, "*", " "))
	kept := words[:0]
	for _, w := range words {
		switch w {
		case "const", "volatile", "restrict", "struct", "enum":
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " "), depth
}

// IsHandle reports whether name is an opaque object type.
func (r *Resolver) IsHandle(name string) bool {
	return r.handles[name]
}

// IsStruct reports whether name is a known struct.
func (r *Resolver) IsStruct(name string) bool {
	return r.structs[name]
}

// FloatBits returns the unsigned type used to encode a float base type as bits.
func (r *Resolver) FloatBits(name string) string {
	f, ok := r.floats[name]
	if !ok {
		return ""
	}
	if f.Bits != "" {
		return f.Bits
	}
	switch f.Width {
	case 16:
		return "uint16_t"
	case 32:
		return "uint32_t"
	}
	return "uint64_t"
}

// Handles returns the handle type names, sorted.
func (r *Resolver) Handles() []string {
	return sortedKeys(r.handles)
}

// IntScalars returns the integer base type names, sorted.
func (r *Resolver) IntScalars() []string {
	return sortedKeys(r.ints)
}

// FloatScalars returns the float base type names, sorted.
func (r *Resolver) FloatScalars() []string {
	return sortedKeys(r.floats)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveTrace classifies raw for trace encoding.
func (r *Resolver) ResolveTrace(raw string) (TraceType, error) {
	base, depth := SplitPointer(raw)
	if depth > 0 {
		return TraceType{
			Kind:  TracePointer,
			Name:  base + strings.Repeat("*", depth-1),
			Depth: depth,
		}, nil
	}
	if base == "" || base == "void" {
		return TraceType{Kind: TraceOpaque, Name: base}, nil
	}

	canon, err := r.canonicalTrace(base)
	if err != nil {
		return TraceType{}, err
	}

	switch {
	case r.handles[canon]:
		return TraceType{Kind: TraceHandle, Name: canon}, nil
	case r.structs[canon]:
		return TraceType{Kind: TraceStruct, Name: canon}, nil
	}
	if i, ok := r.ints[canon]; ok {
		return TraceType{Kind: TraceInt, Name: canon, Width: i.Width, Signed: i.Signed}, nil
	}
	f := r.floats[canon]
	return TraceType{Kind: TraceFloat, Name: canon, Width: f.Width}, nil
}

// ResolveForeign classifies raw for a foreign-call signature.
func (r *Resolver) ResolveForeign(raw string) (ForeignKind, error) {
	base, depth := SplitPointer(raw)
	if depth > 0 {
		return ForeignPointer, nil
	}
	if base == "" || base == "void" {
		return ForeignVoid, nil
	}
	if r.structs[base] {
		return 0, errors.New(errors.PhaseConfig, errors.KindUnsupportedType).
			Type(base).
			Detail("structs passed by value have no foreign kind").
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if k, ok := r.foreignMemo[base]; ok {
		return k, nil
	}
	canon, err := r.chase(base, r.isForeignBase, func(name string) (string, bool) {
		if next, ok := r.foreignAliases[name]; ok {
			return next, true
		}
		next, ok := r.typedefs[name]
		return next, ok
	})
	if err != nil {
		return 0, err
	}

	k := ForeignPointer
	if !r.handles[canon] {
		k = r.foreign[canon]
	}
	r.foreignMemo[base] = k
	return k, nil
}

func (r *Resolver) canonicalTrace(base string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if canon, ok := r.traceMemo[base]; ok {
		return canon, nil
	}
	canon, err := r.chase(base, r.isTraceBase, func(name string) (string, bool) {
		next, ok := r.typedefs[name]
		return next, ok
	})
	if err != nil {
		return "", err
	}
	r.traceMemo[base] = canon
	return canon, nil
}

func (r *Resolver) isTraceBase(name string) bool {
	if r.handles[name] || r.structs[name] {
		return true
	}
	if _, ok := r.ints[name]; ok {
		return true
	}
	_, ok := r.floats[name]
	return ok
}

func (r *Resolver) isForeignBase(name string) bool {
	if r.handles[name] {
		return true
	}
	_, ok := r.foreign[name]
	return ok
}

// chase substitutes name through next until terminal holds. Overrides are
// applied at every step.
func (r *Resolver) chase(name string, terminal func(string) bool, next func(string) (string, bool)) (string, error) {
	cur := name
	if o, ok := r.overrides[cur]; ok {
		cur = o
	}
	chain := []string{name}
	if cur != name {
		chain = append(chain, cur)
	}
	seen := make(map[string]bool)

	for !terminal(cur) {
		if seen[cur] {
			return "", errors.TypedefCycle(name, chain)
		}
		seen[cur] = true

		n, ok := next(cur)
		if !ok {
			return "", errors.UnresolvedType(name, cur)
		}
		if o, ok := r.overrides[n]; ok {
			n = o
		}
		cur = n
		chain = append(chain, cur)
	}
	return cur, nil
}

// Check resolves every typedef eagerly and joins all failures. Scalar
// typedefs must resolve for both trace encoding and foreign calls.
func (r *Resolver) Check() error {
	var errs []error
	for _, name := range sortedKeys(r.typedefs) {
		tt, err := r.ResolveTrace(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if tt.Kind != TraceInt && tt.Kind != TraceFloat {
			continue
		}
		if _, err := r.ResolveForeign(name); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
