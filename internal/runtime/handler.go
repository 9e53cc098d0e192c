// Package runtime implements the function runtime (component D): per
// invocation it extracts a code bundle into a scratch directory, resolves
// and loads the handler, binds the function's environment, races the
// handler against a timeout, classifies faults, and emits the START/
// RESULT|ERROR/END log trail through an injected sink.
//
// This is the subsystem spec.md calls out as doing the most work; the
// scratch-directory lifecycle, environment save/restore and timeout race
// here are grounded on the teacher's internal/docker.Manager (per-
// invocation container lifecycle with guaranteed cleanup on every exit
// path). The actual code-execution step is delegated to an Executor so
// that lifecycle correctness is testable independent of the execution
// engine (see executor.go, wazero_executor.go).
package runtime

import (
	"fmt"
	"strings"

	"github.com/oriys/microstack/internal/apierr"
)

// handlerCandidates is the ordered extension list §4.D step 5 requires.
// The extracted bundle is searched for {module}+ext in this order; the
// first existing file wins.
var handlerCandidates = []string{".mjs", ".js", ".cjs"}

// SplitHandler splits "module.export" at the first '.'. Both halves must
// be non-empty. Shared with internal/stacks, which needs the module name
// to synthesize a code bundle from a template's inline Lambda source.
func SplitHandler(handler string) (module, export string, err error) {
	idx := strings.Index(handler, ".")
	if idx <= 0 || idx == len(handler)-1 {
		return "", "", apierr.InvalidArgumentf("InvalidParameterValueException", "malformed handler %q, expected \"module.export\"", handler)
	}
	module, export = handler[:idx], handler[idx+1:]
	if module == "" || export == "" {
		return "", "", apierr.InvalidArgumentf("InvalidParameterValueException", "malformed handler %q, expected \"module.export\"", handler)
	}
	return module, export, nil
}

// resultEnvelope is the JSON shape of a handler fault or timeout payload.
type resultEnvelope struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

func timeoutMessage(timeoutSeconds int) string {
	return fmt.Sprintf("Task timed out after %.2f seconds", float64(timeoutSeconds))
}
