package daemon

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestStatusRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeStatus(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if err := readStatus(&buf); err != nil {
		t.Errorf("ready status read as %v", err)
	}
}

func TestStatusCarriesChildError(t *testing.T) {
	var buf bytes.Buffer
	writeStatus(&buf, errors.New("lockfile: still held\nby 4242"))

	err := readStatus(&buf)
	if !errors.Is(err, ErrChildFailed) {
		t.Fatalf("err = %v, want ErrChildFailed", err)
	}
	if !strings.Contains(err.Error(), "lockfile: still held by 4242") {
		t.Errorf("diagnostic lost: %v", err)
	}
}

func TestStatusChildDiedSilently(t *testing.T) {
	err := readStatus(strings.NewReader(""))
	if !errors.Is(err, ErrChildFailed) {
		t.Errorf("err = %v, want ErrChildFailed", err)
	}
}

func TestStatusReadError(t *testing.T) {
	boom := errors.New("broken pipe")
	err := readStatus(iotest.ErrReader(boom))
	if err == nil || errors.Is(err, ErrChildFailed) {
		t.Errorf("err = %v, want a read error", err)
	}
}

func TestIsChild(t *testing.T) {
	t.Setenv(EnvChild, "")
	if IsChild() {
		t.Error("IsChild true without marker")
	}
	t.Setenv(EnvChild, "1")
	if !IsChild() {
		t.Error("IsChild false with marker")
	}
}
