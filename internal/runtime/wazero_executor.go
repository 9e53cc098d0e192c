package runtime

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/oriys/microstack/internal/apierr"
)

// WazeroExecutor runs a WebAssembly-compiled handler using the teacher's
// embedded wazero runtime, repurposed per spec.md §9 as the "embedded
// scripting engine" re-architecture of the dynamic-code-loading
// requirement. A fresh wazero.Runtime is instantiated for every Load
// call, which is what supplies the cache-busting guarantee of §4.D step 6
// — there is no module cache to go stale.
//
// The guest module must export:
//
//	alloc(size i32) -> (ptr i32)
//	<export>(ptr i32, len i32) -> (packed i64)   // packed = ptr<<32 | len
//
// where <export> is the second half of the handler string. This ABI
// matches the reference wasm runtime shim shipped alongside the
// platform's Docker runtime images.
//
// A guest signals a handler-level fault (§4.D's "any exception escaping
// the handler") by trapping, which wazero surfaces as a Call error. A
// clean return is always treated as success; there is no separate
// explicit-fault return convention.
type WazeroExecutor struct{}

// NewWazeroExecutor returns the default execution engine.
func NewWazeroExecutor() *WazeroExecutor { return &WazeroExecutor{} }

type wazeroHandler struct {
	runtime  wazero.Runtime
	instance api.Module
	alloc    api.Function
	fn       api.Function
}

func (e *WazeroExecutor) Load(ctx context.Context, handlerPath, module, export string) (Loaded, error) {
	wasmBytes, err := os.ReadFile(handlerPath)
	if err != nil {
		return nil, apierr.InvalidArgumentf("InvalidParameterValueException", "cannot read handler file %q: %v", handlerPath, err)
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, apierr.InvalidArgumentf("InvalidParameterValueException", "handler module %q failed to compile: %v", module, err)
	}

	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		rt.Close(ctx)
		return nil, apierr.InvalidArgumentf("InvalidParameterValueException", "handler module %q failed to instantiate: %v", module, err)
	}

	alloc := instance.ExportedFunction("alloc")
	fn := instance.ExportedFunction(export)
	if alloc == nil || fn == nil {
		instance.Close(ctx)
		rt.Close(ctx)
		return nil, apierr.InvalidArgumentf("InvalidParameterValueException", "handler export %q is not callable", export)
	}

	return &wazeroHandler{runtime: rt, instance: instance, alloc: alloc, fn: fn}, nil
}

func (h *wazeroHandler) Invoke(ctx context.Context, event []byte) ([]byte, error) {
	allocRes, err := h.alloc.Call(ctx, uint64(len(event)))
	if err != nil {
		return nil, &Fault{ErrorType: "Error", ErrorMessage: faultMessage(err)}
	}
	inPtr := uint32(allocRes[0])

	memory := h.instance.Memory()
	if !memory.Write(inPtr, event) {
		return nil, fmt.Errorf("write event into guest memory: out of bounds")
	}

	callRes, err := h.fn.Call(ctx, uint64(inPtr), uint64(len(event)))
	if err != nil {
		return nil, &Fault{ErrorType: "Error", ErrorMessage: faultMessage(err)}
	}

	packed := callRes[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed & 0xFFFFFFFF)
	out, ok := memory.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("read handler result from guest memory: out of bounds")
	}
	return append([]byte(nil), out...), nil
}

func (h *wazeroHandler) Close(ctx context.Context) error {
	h.instance.Close(ctx)
	return h.runtime.Close(ctx)
}

func faultMessage(err error) string {
	if err == nil {
		return "Unknown error"
	}
	return err.Error()
}
