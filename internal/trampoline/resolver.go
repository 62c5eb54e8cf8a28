package trampoline

import (
	"context"

	"github.com/coral-mesh/apitrace/internal/model"
)

// Resolver is the entry point for extension function resolution: it maps
// an extension name and the pointer returned by the platform to the shared
// trampoline.
type Resolver struct {
	commands map[string]*model.Command
	cache    *Cache
}

// NewResolver indexes the extension commands among commands.
func NewResolver(commands []*model.Command, cache *Cache) *Resolver {
	r := &Resolver{
		commands: make(map[string]*model.Command),
		cache:    cache,
	}
	for _, cmd := range commands {
		if cmd.IsExtension() {
			r.commands[cmd.Name()] = cmd
		}
	}
	return r
}

// Resolve returns the trampoline standing in for ptr. It reports false,
// and the caller should hand out ptr unchanged, when name is not a traced
// extension or ptr is null.
func (r *Resolver) Resolve(ctx context.Context, name string, ptr uintptr) (*Trampoline, bool, error) {
	cmd, ok := r.commands[name]
	if !ok || ptr == 0 {
		return nil, false, nil
	}
	t, err := r.cache.Resolve(ctx, cmd, ptr)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// Extensions returns the number of resolvable extension commands.
func (r *Resolver) Extensions() int { return len(r.commands) }
