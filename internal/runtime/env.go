package runtime

import (
	"os"
	"sync"
)

// envMu serializes access to the process-wide environment so that only
// one invocation at a time installs function environment variables. This
// is the "global mutable process environment" §9 calls a design smell; it
// is kept because the spec mandates ambient exposure for compatibility,
// and the save/restore discipline here is the mandated mitigation.
var envMu sync.Mutex

// withEnv installs vars into the process environment, recording any prior
// values (including absence), runs fn, and unconditionally restores the
// prior state before returning — on success, panic, or error from fn.
func withEnv(vars map[string]string, fn func()) {
	envMu.Lock()
	defer envMu.Unlock()

	type prior struct {
		value string
		was   bool
	}
	saved := make(map[string]prior, len(vars))
	for k := range vars {
		v, ok := os.LookupEnv(k)
		saved[k] = prior{value: v, was: ok}
	}
	defer func() {
		for k, p := range saved {
			if p.was {
				os.Setenv(k, p.value)
			} else {
				os.Unsetenv(k)
			}
		}
	}()
	for k, v := range vars {
		os.Setenv(k, v)
	}
	fn()
}
