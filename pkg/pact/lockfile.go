package pact

import (
	"fmt"
	"os"
	"time"

	"github.com/pact-foundation/pact-go/internal/id"
)

// staleLockTolerance is how old an existing lock file must be before a
// writer treats it as abandoned rather than held (§5: "readers tolerate
// stale lock files older than 60 s").
const staleLockTolerance = 60 * time.Second

// acquireLock creates path+".lock" with O_EXCL, retrying past a stale lock
// left behind by a crashed writer. Returns a release function.
func acquireLock(path string) (func(), error) {
	lockPath := path + ".lock"
	token := id.Short()

	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(token)
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("pact: creating lock file %s: %w", lockPath, err)
		}

		info, statErr := os.Stat(lockPath)
		if statErr == nil && time.Since(info.ModTime()) > staleLockTolerance {
			_ = os.Remove(lockPath)
			if attempt < 5 {
				continue
			}
		}
		if attempt >= 5 {
			return nil, fmt.Errorf("pact: lock file %s is held and not stale", lockPath)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// WriteFile loads any existing pact at path, merges p into it, and writes
// the result atomically (temp file + rename) under a lock file that
// serializes concurrent MockServer sessions writing the same path (§4.3,
// §5).
func WriteFile(path string, p *Pact) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("pact: refusing to write invalid pact: %w", err)
	}

	release, err := acquireLock(path)
	if err != nil {
		return err
	}
	defer release()

	var existing *Pact
	if data, readErr := os.ReadFile(path); readErr == nil {
		existing, err = Decode(data)
		if err != nil {
			return fmt.Errorf("pact: decoding existing pact at %s: %w", path, err)
		}
	}

	final := Merge(existing, p)
	encoded, err := Encode(final)
	if err != nil {
		return fmt.Errorf("pact: encoding merged pact: %w", err)
	}

	tmp := path + ".tmp-" + id.Short()
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("pact: writing temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("pact: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
