package runtime

import "context"

// Fault represents a handler-level exception — code that escaped the
// handler rather than a pre-invocation (file-not-found, not-callable)
// condition. Invoke returns a *Fault, never an *apierr.Error, for this
// outcome.
type Fault struct {
	ErrorType    string
	ErrorMessage string
}

func (f *Fault) Error() string { return f.ErrorType + ": " + f.ErrorMessage }

// Loaded is a handler that has been resolved and validated (§4.D step 6)
// and is ready to be invoked (§4.D steps 8-9) against one event at a time.
type Loaded interface {
	// Invoke runs the handler against event. ctx carries the per-call
	// timeout; Invoke must return promptly once ctx is done so the
	// caller's timeout race can complete. A returned *Fault is a handler
	// exception; any other error is treated the same way (code that
	// failed to run once invocation had already started).
	Invoke(ctx context.Context, event []byte) ([]byte, error)
	// Close releases any resources Load allocated (e.g. a wazero module
	// instance). It is always called exactly once, on every exit path.
	Close(ctx context.Context) error
}

// Executor resolves and validates one handler export (§4.D steps 5-6),
// given the already-located handlerPath (see resolveHandlerFile). A
// non-nil error here is a pre-invocation failure — it propagates to the
// caller as an HTTP-shaped error, never as a captured InvokeResult
// functionError.
type Executor interface {
	Load(ctx context.Context, handlerPath, module, export string) (Loaded, error)
}
