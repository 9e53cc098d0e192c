package runtime

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/oriys/microstack/internal/apierr"
)

// scratchRoot owns the process-configured directory under which every
// invocation materializes its own unique subdirectory.
type scratchRoot struct {
	dir string
}

func newScratchRoot(dir string) (*scratchRoot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	return &scratchRoot{dir: dir}, nil
}

// acquire creates a uniquely named subdirectory of the form
// "{name}-{version}-{random}" and returns it along with a release function
// that removes it. release is safe to call more than once and must be
// called on every exit path.
func (r *scratchRoot) acquire(name string, version int) (dir string, release func(), err error) {
	suffix := rand.Int63()
	dir = filepath.Join(r.dir, fmt.Sprintf("%s-%d-%x", name, version, suffix))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	released := false
	release = func() {
		if released {
			return
		}
		released = true
		_ = os.RemoveAll(dir)
	}
	return dir, release, nil
}

// extractZip unpacks a ZIP archive into dir. It is intentionally
// unforgiving about path traversal: entries that would escape dir are
// rejected.
func extractZip(bundle []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		return apierr.InvalidArgumentf("InvalidParameterValueException", "code bundle is not a valid zip archive")
	}
	for _, f := range zr.File {
		target := filepath.Join(dir, f.Name)
		if !withinDir(dir, target) {
			return apierr.InvalidArgumentf("InvalidParameterValueException", "zip entry %q escapes bundle root", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extract bundle: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract bundle: %w", err)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("extract bundle: %w", err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return fmt.Errorf("extract bundle: %w", err)
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return fmt.Errorf("extract bundle: %w", err)
		}
	}
	return nil
}

func withinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !bytesHasPrefix(rel, "../")
}

func bytesHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// resolveHandlerFile tries {module}+ext for each candidate extension, in
// order, and returns the first existing file.
func resolveHandlerFile(dir, module string) (string, error) {
	for _, ext := range handlerCandidates {
		path := filepath.Join(dir, module+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", apierr.InvalidArgumentf("InvalidParameterValueException", "no handler file found for module %q", module)
}
