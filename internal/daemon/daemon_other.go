//go:build !unix

package daemon

import "errors"

func Supported() bool { return false }

func Detach([]string) error { return errors.ErrUnsupported }

func NotifyReady() error { return nil }

func NotifyFailed(error) error { return nil }
