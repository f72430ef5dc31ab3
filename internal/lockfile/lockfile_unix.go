//go:build unix

package lockfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type killSignaller struct{}

func (killSignaller) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

// Lock is a claimed lock file. The flock is held until Release.
type Lock struct {
	path string
	pid  int
	f    *os.File
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Acquire claims the lock at opts.Path for opts.PID. An existing record
// owned by another pid gets SIGTERM; a pid that no longer exists is treated
// as a stale record. Acquire then waits for the previous owner's flock and
// writes our pid. Cancelling ctx abandons the wait.
func Acquire(ctx context.Context, opts Options) (*Lock, error) {
	opts.setDefaults()
	log := opts.Logger.With().Str("lock", opts.Path).Logger()
	deadline := time.Now().Add(opts.Timeout)
	signalled := make(map[int]bool)

	for {
		f, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("lockfile: open: %w", err)
		}

		record, err := io.ReadAll(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("lockfile: read: %w", err)
		}
		if len(bytes.TrimSpace(record)) > 0 {
			old, err := ParseRecord(record)
			if err != nil {
				f.Close()
				return nil, err
			}
			if old != opts.PID && !signalled[old] {
				signalled[old] = true
				switch err := opts.Signaller.Signal(old, unix.SIGTERM); {
				case err == nil:
					log.Info().Int("old_pid", old).Msg("asked previous instance to terminate")
				case errors.Is(err, unix.ESRCH):
					log.Warn().Int("old_pid", old).Msg("stale lock record, previous instance is gone")
				default:
					f.Close()
					return nil, fmt.Errorf("lockfile: signal pid %d: %w", old, err)
				}
			}
		}

		if err := flockUntil(ctx, f, deadline); err != nil {
			f.Close()
			return nil, err
		}

		// The previous owner unlinks the path during its teardown. If it did
		// so after we opened, our lock is on an orphaned inode; start over.
		same, err := samePath(f, opts.Path)
		if err != nil {
			f.Close()
			return nil, err
		}
		if !same {
			f.Close()
			if time.Now().After(deadline) {
				return nil, ErrLockHeld
			}
			log.Debug().Msg("lock file replaced while waiting, retrying")
			continue
		}

		if err := writeRecord(f, opts.PID); err != nil {
			f.Close()
			return nil, err
		}
		log.Info().Int("pid", opts.PID).Msg("lock acquired")
		return &Lock{path: opts.Path, pid: opts.PID, f: f}, nil
	}
}

func flockUntil(ctx context.Context, f *os.File, deadline time.Time) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("lockfile: flock: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func samePath(f *os.File, path string) (bool, error) {
	var held, cur unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &held); err != nil {
		return false, fmt.Errorf("lockfile: fstat: %w", err)
	}
	if err := unix.Stat(path, &cur); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, fmt.Errorf("lockfile: stat: %w", err)
	}
	return held.Dev == cur.Dev && held.Ino == cur.Ino, nil
}

func writeRecord(f *os.File, pid int) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("lockfile: truncate: %w", err)
	}
	if _, err := f.WriteAt(FormatRecord(pid), 0); err != nil {
		return fmt.Errorf("lockfile: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("lockfile: sync: %w", err)
	}
	return nil
}

// Release removes the lock file if it still holds our record, then drops
// the flock. A file that a newer instance has already replaced is left
// alone and is not an error.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() {
		l.f.Close()
		l.f = nil
	}()

	same, err := samePath(l.f, l.path)
	if err != nil {
		return err
	}
	if !same {
		return nil
	}
	record, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("lockfile: read: %w", err)
	}
	if pid, err := ParseRecord(record); err != nil || pid != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("lockfile: remove: %w", err)
	}
	return nil
}
