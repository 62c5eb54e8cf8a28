package trampoline

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/coral-mesh/apitrace/internal/types"
)

const exportName = "invoke"

// Call is one invocation routed through a trampoline. Args are the raw
// wasm stack values, one per signature argument.
type Call struct {
	Function  string
	Target    uintptr
	Signature Signature
	Args      []uint64
}

// Dispatcher receives every trampoline invocation.
type Dispatcher interface {
	Dispatch(ctx context.Context, call Call) (uint64, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, call Call) (uint64, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, call Call) (uint64, error) {
	return f(ctx, call)
}

// ValueType maps a foreign kind to its wasm value type. Void has none.
func ValueType(k types.ForeignKind) (api.ValueType, bool) {
	switch k {
	case types.ForeignU8, types.ForeignI8, types.ForeignU16, types.ForeignI16,
		types.ForeignU32, types.ForeignI32:
		return api.ValueTypeI32, true
	case types.ForeignU64, types.ForeignI64, types.ForeignPointer:
		return api.ValueTypeI64, true
	case types.ForeignFloat:
		return api.ValueTypeF32, true
	case types.ForeignDouble:
		return api.ValueTypeF64, true
	}
	return 0, false
}

// ValueTypes returns the wasm parameter and result types of s.
func (s Signature) ValueTypes() (params, results []api.ValueType, err error) {
	params = make([]api.ValueType, 0, len(s.Args))
	for i, a := range s.Args {
		vt, ok := ValueType(a)
		if !ok {
			return nil, nil, fmt.Errorf("argument %d has kind %s", i, a)
		}
		params = append(params, vt)
	}
	if vt, ok := ValueType(s.Return); ok {
		results = []api.ValueType{vt}
	}
	return params, results, nil
}

// WazeroAllocator allocates each trampoline as a host module exporting a
// single function, all bound to one Dispatcher.
type WazeroAllocator struct {
	runtime    wazero.Runtime
	dispatcher Dispatcher
}

// NewWazeroAllocator creates an allocator with its own wazero runtime.
func NewWazeroAllocator(ctx context.Context, dispatcher Dispatcher) *WazeroAllocator {
	return &WazeroAllocator{
		runtime:    wazero.NewRuntime(ctx),
		dispatcher: dispatcher,
	}
}

// Allocate instantiates the trampoline of target. On failure nothing stays
// registered in the runtime.
func (a *WazeroAllocator) Allocate(ctx context.Context, sig Signature, target uintptr) (*Trampoline, error) {
	params, results, err := sig.ValueTypes()
	if err != nil {
		return nil, err
	}

	fn := api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		args := make([]uint64, len(params))
		copy(args, stack)
		ret, err := a.dispatcher.Dispatch(ctx, Call{
			Function:  sig.Function,
			Target:    target,
			Signature: sig,
			Args:      args,
		})
		if err != nil {
			panic(err)
		}
		if len(results) > 0 {
			stack[0] = ret
		}
	})

	name := moduleName(target)
	mod, err := a.runtime.NewHostModuleBuilder(name).
		NewFunctionBuilder().
		WithGoModuleFunction(fn, params, results).
		Export(exportName).
		Instantiate(ctx)
	if err != nil {
		return nil, err
	}

	call := mod.ExportedFunction(exportName)
	if call == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("module %s does not export %s", name, exportName)
	}

	return &Trampoline{
		Target:    target,
		Signature: sig,
		module:    mod,
		fn:        call,
	}, nil
}

// Close releases the runtime and every trampoline allocated from it.
func (a *WazeroAllocator) Close(ctx context.Context) error {
	return a.runtime.Close(ctx)
}

func moduleName(target uintptr) string {
	return fmt.Sprintf("trampoline_%x", target)
}

// Trampoline is the callable bound to one resolved function pointer.
type Trampoline struct {
	Target    uintptr
	Signature Signature

	module api.Module
	fn     api.Function
}

// Name is the host module name of the trampoline.
func (t *Trampoline) Name() string { return t.module.Name() }

// Call invokes the trampoline. It returns 0 for a void function.
func (t *Trampoline) Call(ctx context.Context, args ...uint64) (uint64, error) {
	out, err := t.fn.Call(ctx, args...)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0], nil
}

// Close releases the trampoline module.
func (t *Trampoline) Close(ctx context.Context) error {
	return t.module.Close(ctx)
}
