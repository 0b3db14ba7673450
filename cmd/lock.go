package main

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// ErrOutputLocked is returned when another run holds the output lock.
var ErrOutputLocked = eris.New("output is locked by another run")

// withOutputLock runs fn while holding <output>.lock. It fails fast when the
// lock is taken.
func withOutputLock(output string, fn func() error) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create output dir %s", dir)
		}
	}

	lock := flock.New(output + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return eris.Wrapf(err, "lock %s", output)
	}
	if !ok {
		return eris.Wrapf(ErrOutputLocked, "%s", output)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	return fn()
}
