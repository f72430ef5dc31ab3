//go:build unix

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// readyFD is the child's end of the readiness pipe (first ExtraFiles entry).
const readyFD = 3

// Supported reports whether Detach works on this platform.
func Supported() bool { return true }

// Detach starts a copy of the running binary with args in a new session,
// working directory "/" and stdio on /dev/null, then blocks until the child
// calls NotifyReady or NotifyFailed (or exits). A nil return means the
// child is up and the caller should exit 0.
func Detach(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemon: locate executable: %w", err)
	}
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("daemon: open %s: %w", os.DevNull, err)
	}
	defer null.Close()

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("daemon: pipe: %w", err)
	}
	defer r.Close()

	cmd := exec.Command(exe, args...)
	cmd.Dir = "/"
	cmd.Env = append(os.Environ(), EnvChild+"=1")
	cmd.Stdin = null
	cmd.Stdout = null
	cmd.Stderr = null
	cmd.ExtraFiles = []*os.File{w}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		w.Close()
		return fmt.Errorf("daemon: start child: %w", err)
	}
	// Only the child holds the write end now, so its exit gives us EOF.
	w.Close()

	statusErr := readStatus(r)
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("daemon: release child: %w", err)
	}
	return statusErr
}

func readyPipe() *os.File {
	if !IsChild() {
		return nil
	}
	return os.NewFile(readyFD, "nookd-ready")
}

// NotifyReady tells the waiting parent the child started. It is a no-op
// outside the child and may be called once.
func NotifyReady() error { return notify(nil) }

// NotifyFailed hands err to the waiting parent for display.
func NotifyFailed(err error) error { return notify(err) }

func notify(err error) error {
	f := readyPipe()
	if f == nil {
		return nil
	}
	defer f.Close()
	return writeStatus(f, err)
}
