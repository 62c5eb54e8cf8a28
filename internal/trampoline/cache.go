package trampoline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/model"
	"github.com/coral-mesh/apitrace/internal/types"
)

// Allocator creates the callable of a signature bound to target.
type Allocator interface {
	Allocate(ctx context.Context, sig Signature, target uintptr) (*Trampoline, error)
}

// Cache memoizes one trampoline per resolved pointer for the life of the
// process. Entries are never evicted and failed builds are never stored.
type Cache struct {
	resolver *types.Resolver
	alloc    Allocator
	logger   zerolog.Logger

	mu      sync.Mutex
	entries map[uintptr]*Trampoline
	group   singleflight.Group
	builds  atomic.Int64
}

// NewCache creates an empty cache.
func NewCache(resolver *types.Resolver, alloc Allocator, logger zerolog.Logger) *Cache {
	return &Cache{
		resolver: resolver,
		alloc:    alloc,
		logger:   logger,
		entries:  make(map[uintptr]*Trampoline),
	}
}

// Resolve returns the trampoline of ptr, building it with the signature of
// cmd on first use.
func (c *Cache) Resolve(ctx context.Context, cmd *model.Command, ptr uintptr) (*Trampoline, error) {
	if ptr == 0 {
		return nil, errors.TrampolineBuild(cmd.Name(), ptr, fmt.Errorf("null function pointer"))
	}
	if t, ok := c.lookup(ptr); ok {
		return t, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(uint64(ptr), 16), func() (any, error) {
		// A concurrent flight may have finished between lookup and Do.
		if t, ok := c.lookup(ptr); ok {
			return t, nil
		}
		t, err := c.build(ctx, cmd, ptr)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[ptr] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Trampoline), nil
}

func (c *Cache) lookup(ptr uintptr) (*Trampoline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.entries[ptr]
	return t, ok
}

func (c *Cache) build(ctx context.Context, cmd *model.Command, ptr uintptr) (*Trampoline, error) {
	c.builds.Add(1)

	sig, err := Describe(cmd, c.resolver)
	if err != nil {
		return nil, c.fail(cmd, ptr, err)
	}
	t, err := c.alloc.Allocate(ctx, sig, ptr)
	if err != nil {
		return nil, c.fail(cmd, ptr, err)
	}

	c.logger.Debug().
		Str("function", cmd.Name()).
		Str("target", fmt.Sprintf("%#x", ptr)).
		Str("signature", sig.String()).
		Msg("Built trampoline")
	return t, nil
}

func (c *Cache) fail(cmd *model.Command, ptr uintptr, cause error) error {
	err := errors.TrampolineBuild(cmd.Name(), ptr, cause)
	c.logger.Warn().Err(err).Msg("Trampoline construction failed")
	return err
}

// Len returns the number of cached trampolines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Builds returns the number of build attempts, successful or not.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}
