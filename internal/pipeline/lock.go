package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the output directory while a run is active.
const LockFileName = ".photoprep.lock"

// ErrBusy indicates another run holds the output directory.
var ErrBusy = errors.New("another photoprep run is using this output directory")

// acquireLock takes the exclusive run lock for outputDir.
func acquireLock(outputDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrBusy, lock.Path())
	}
	return lock, nil
}
