//go:build !unix

package lockfile

import (
	"context"
	"errors"
	"syscall"
)

type killSignaller struct{}

func (killSignaller) Signal(int, syscall.Signal) error { return errors.ErrUnsupported }

// Lock is unavailable on this platform; nookd runs in the foreground.
type Lock struct{}

func (l *Lock) Path() string { return "" }

func Acquire(context.Context, Options) (*Lock, error) { return nil, errors.ErrUnsupported }

func (l *Lock) Release() error { return nil }
