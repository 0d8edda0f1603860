package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/storepulse/storepulse/internal/config"
)

const DefaultPath = "~/.storepulse/storepulse.lock"

// staleGrace is how long a lock file without a readable PID is still
// treated as held, covering a writer that has not finished.
const staleGrace = 30 * time.Second

// ErrHeld is returned when another live process owns the lock.
var ErrHeld = errors.New("run lock held")

// Acquire publishes a lock file holding the current PID. The file is
// written under a temporary name and hard-linked into place, so the lock
// never exists without its PID. A lock left behind by a dead process is
// reclaimed.
func Acquire(path string) error {
	path = resolve(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := publish(path)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("creating lock file: %w", err)
		}

		before, err := os.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("stat lock file: %w", err)
		}

		held, pid, err := IsHeld(path)
		if err != nil {
			return err
		}
		if held {
			if pid == 0 {
				return fmt.Errorf("%w: lock file %s is being written", ErrHeld, path)
			}
			return fmt.Errorf("%w: another storepulse run is active (PID %d)", ErrHeld, pid)
		}
		if err := reclaim(path, before); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: lock at %s changed hands while acquiring", ErrHeld, path)
}

// publish writes the PID to a temp file beside path and links it into
// place. The link fails with an IsExist error when path is taken.
func publish(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.WriteString(strconv.Itoa(os.Getpid()))
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("writing lock file: %w", werr)
	}
	return os.Link(tmp.Name(), path)
}

// reclaim moves a stale lock aside and deletes it. If the file moved is
// no longer the one judged stale, another process took the lock in
// between: it is put back and ErrHeld returned.
func reclaim(path string, stale os.FileInfo) error {
	aside := fmt.Sprintf("%s.stale-%d", path, os.Getpid())
	if err := os.Rename(path, aside); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("moving stale lock: %w", err)
	}
	defer os.Remove(aside)

	moved, err := os.Stat(aside)
	if err != nil {
		return fmt.Errorf("stat stale lock: %w", err)
	}
	if !os.SameFile(stale, moved) {
		if err := os.Link(aside, path); err != nil && !os.IsExist(err) {
			return fmt.Errorf("restoring lock file: %w", err)
		}
		return fmt.Errorf("%w: lock at %s changed hands while acquiring", ErrHeld, path)
	}
	return nil
}

// Release removes the lock file.
func Release(path string) error {
	err := os.Remove(resolve(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsHeld checks if the lock is currently held by a running process. A
// lock file without a readable PID counts as held until it is older than
// the grace period; the returned PID is then 0.
func IsHeld(path string) (bool, int, error) {
	path = resolve(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return false, 0, nil
			}
			return false, 0, err
		}
		return time.Since(info.ModTime()) < staleGrace, 0, nil
	}
	return isProcessRunning(pid), pid, nil
}

func resolve(path string) string {
	if path == "" {
		path = DefaultPath
	}
	return config.ExpandHome(path)
}

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
