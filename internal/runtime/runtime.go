package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oriys/microstack/internal/metrics"
	"github.com/oriys/microstack/internal/registry"
)

// InvokeResult is the always-returned contract of §4.D: a payload and an
// optional functionError, never both absent in the fault/timeout case.
type InvokeResult struct {
	Payload       []byte
	FunctionError string // "Unhandled", or empty on success
}

// LogSink receives one log event per START/RESULT|ERROR/END emission. The
// default wiring (see cmd/microstack/cmd/serve.go) publishes to the log ledger under
// /aws/lambda/<name>.
type LogSink func(group, stream, message string, timestamp time.Time)

// FunctionSource resolves a function record by name; satisfied by
// *registry.Registry.
type FunctionSource interface {
	Get(name string) (*registry.Function, error)
}

// Runtime is the single owner of the scratch-directory tree and the
// orchestration of one invocation end to end.
type Runtime struct {
	registry FunctionSource
	scratch  *scratchRoot
	executor Executor
	sink     LogSink
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// Config configures a Runtime.
type Config struct {
	ScratchDir string
	Registry   FunctionSource
	Executor   Executor // defaults to NewWazeroExecutor()
	Sink       LogSink
	Metrics    *metrics.Metrics
	Logger     *logrus.Logger
}

// New builds a Runtime backed by the given scratch directory root.
func New(cfg Config) (*Runtime, error) {
	root, err := newScratchRoot(cfg.ScratchDir)
	if err != nil {
		return nil, err
	}
	executor := cfg.Executor
	if executor == nil {
		executor = NewWazeroExecutor()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runtime{
		registry: cfg.Registry,
		scratch:  root,
		executor: executor,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		logger:   logger,
	}, nil
}

// Invoke executes §4.D's nine steps. Errors returned from Invoke are
// pre-invocation failures (missing function, malformed handler, missing
// handler file, non-callable export) and propagate as HTTP-shaped errors
// per §4.D's failure taxonomy; every outcome reachable after that point is
// captured in the returned InvokeResult instead.
func (r *Runtime) Invoke(ctx context.Context, name string, payload []byte) (*InvokeResult, error) {
	fn, err := r.registry.Get(name)
	if err != nil {
		return nil, err
	}

	module, export, err := SplitHandler(fn.Handler)
	if err != nil {
		return nil, err
	}

	dir, release, err := r.scratch.acquire(fn.Name, fn.Version)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := extractZip(fn.CodeBundle, dir); err != nil {
		return nil, err
	}

	handlerPath, err := resolveHandlerFile(dir, module)
	if err != nil {
		return nil, err
	}

	loaded, err := r.executor.Load(ctx, handlerPath, module, export)
	if err != nil {
		return nil, err
	}
	defer loaded.Close(ctx)

	if len(payload) == 0 {
		payload = []byte("null")
	}

	reqID := uuid.New().String()
	start := time.Now().UTC()
	group := fmt.Sprintf("/aws/lambda/%s", fn.Name)
	stream := fmt.Sprintf("%s/[$LATEST]%s", start.Format("2006/01/02"), reqID)

	r.emit(group, stream, fmt.Sprintf("START RequestId: %s", reqID), start)

	var result *InvokeResult
	withEnv(fn.Environment, func() {
		result = raceHandler(ctx, loaded, fn.TimeoutSeconds, payload)
	})

	verb := "RESULT"
	if result.FunctionError != "" {
		verb = "ERROR"
	}
	r.emit(group, stream, fmt.Sprintf("%s %s", verb, string(result.Payload)), start.Add(time.Millisecond))
	r.emit(group, stream, fmt.Sprintf("END RequestId: %s", reqID), start.Add(2*time.Millisecond))

	if r.metrics != nil {
		r.metrics.ObserveInvocation(fn.Name, fn.Runtime, result.FunctionError == "", time.Since(start))
	}
	return result, nil
}

type execOutcome struct {
	out []byte
	err error
}

// raceHandler runs the handler against a timer of timeoutSeconds and
// always waits for the executor goroutine to finish before returning, so
// the caller's deferred scratch-dir/env cleanup never races with in-flight
// handler code.
func raceHandler(parent context.Context, loaded Loaded, timeoutSeconds int, payload []byte) *InvokeResult {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan execOutcome, 1)
	go func() {
		out, err := loaded.Invoke(ctx, payload)
		done <- execOutcome{out: out, err: err}
	}()

	timer := time.NewTimer(time.Duration(timeoutSeconds) * time.Second)
	defer timer.Stop()

	select {
	case res := <-done:
		return classify(res)
	case <-timer.C:
		cancel()
		<-done // guarantee the handler goroutine has released its resources
		msg, _ := json.Marshal(resultEnvelope{ErrorType: "TimeoutError", ErrorMessage: timeoutMessage(timeoutSeconds)})
		return &InvokeResult{Payload: msg, FunctionError: "Unhandled"}
	}
}

func classify(res execOutcome) *InvokeResult {
	if res.err == nil {
		payload := res.out
		if len(payload) == 0 {
			payload = []byte("null")
		}
		return &InvokeResult{Payload: payload}
	}
	errType, errMsg := "Error", "Unknown error"
	if fault, ok := res.err.(*Fault); ok {
		if fault.ErrorType != "" {
			errType = fault.ErrorType
		}
		if fault.ErrorMessage != "" {
			errMsg = fault.ErrorMessage
		}
	} else {
		errMsg = res.err.Error()
	}
	msg, _ := json.Marshal(resultEnvelope{ErrorType: errType, ErrorMessage: errMsg})
	return &InvokeResult{Payload: msg, FunctionError: "Unhandled"}
}

func (r *Runtime) emit(group, stream, message string, ts time.Time) {
	if r.sink != nil {
		r.sink(group, stream, message, ts)
	}
}
