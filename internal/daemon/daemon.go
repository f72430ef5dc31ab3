// Package daemon detaches nookd from its terminal. The parent re-executes
// itself in a new session and waits on a pipe until the child has claimed
// the lock, so startup errors still reach the user.
package daemon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// EnvChild marks the detached child process.
const EnvChild = "NOOKD_DAEMON_CHILD"

const readyMsg = "ready"

// ErrChildFailed wraps the diagnostic a child reported before exiting.
var ErrChildFailed = errors.New("daemon: background instance failed to start")

// IsChild reports whether this process is the detached child.
func IsChild() bool { return os.Getenv(EnvChild) == "1" }

// readStatus reads the single line the child writes on the readiness pipe.
// EOF without a line means the child died before reporting.
func readStatus(r io.Reader) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	line = strings.TrimSpace(line)
	switch {
	case line == readyMsg:
		return nil
	case line != "":
		return fmt.Errorf("%w: %s", ErrChildFailed, line)
	case err != nil && !errors.Is(err, io.EOF):
		return fmt.Errorf("daemon: read status: %w", err)
	default:
		return fmt.Errorf("%w: exited without reporting", ErrChildFailed)
	}
}

func writeStatus(w io.Writer, err error) error {
	msg := readyMsg
	if err != nil {
		msg = strings.ReplaceAll(err.Error(), "\n", " ")
	}
	_, werr := io.WriteString(w, msg+"\n")
	return werr
}
