// Package lockfile keeps a single nookd instance running per host. The
// newest instance always wins: it asks the recorded owner to terminate and
// takes the lock over.
package lockfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const DefaultPath = "/tmp/sub.lock"

var (
	// ErrBadRecord means the lock file holds something other than a pid.
	ErrBadRecord = errors.New("lockfile: malformed record")
	// ErrLockHeld means the previous owner did not let go within the timeout.
	ErrLockHeld = errors.New("lockfile: still held by previous owner")
)

// Exit codes for teardown.
const (
	ExitClean         = 0
	ExitCleanupFailed = 2
)

const (
	pollInterval       = 50 * time.Millisecond
	defaultWaitTimeout = 10 * time.Second
)

// Signaller delivers a signal to another process.
type Signaller interface {
	Signal(pid int, sig syscall.Signal) error
}

// SignallerFunc adapts a function to Signaller.
type SignallerFunc func(pid int, sig syscall.Signal) error

func (f SignallerFunc) Signal(pid int, sig syscall.Signal) error { return f(pid, sig) }

// Options control Acquire.
type Options struct {
	Path string
	PID  int
	// Timeout bounds the wait for the previous owner to release the file.
	Timeout   time.Duration
	Signaller Signaller
	Logger    zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Path == "" {
		o.Path = DefaultPath
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultWaitTimeout
	}
	if o.Signaller == nil {
		o.Signaller = killSignaller{}
	}
}

// ParseRecord reads a lock record. Surrounding whitespace is tolerated.
func ParseRecord(b []byte) (int, error) {
	s := strings.TrimSpace(string(b))
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadRecord, s)
	}
	return pid, nil
}

// FormatRecord renders a pid the way it is stored.
func FormatRecord(pid int) []byte {
	return []byte(strconv.Itoa(pid))
}

// TeardownExitCode maps the result of Release to the process exit code.
func TeardownExitCode(releaseErr error) int {
	if releaseErr != nil {
		return ExitCleanupFailed
	}
	return ExitClean
}
