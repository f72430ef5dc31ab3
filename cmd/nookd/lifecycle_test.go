//go:build unix

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/nookd/internal/audio"
	"github.com/satindergrewal/nookd/internal/autodj"
	"github.com/satindergrewal/nookd/internal/catalog"
	"github.com/satindergrewal/nookd/internal/config"
	"github.com/satindergrewal/nookd/internal/lockfile"
)

type silentClip struct {
	done chan struct{}
	once sync.Once
}

func (c *silentClip) Done() <-chan struct{} { return c.done }
func (c *silentClip) Stop()                 { c.once.Do(func() { close(c.done) }) }

type silentPlayer struct {
	mu     sync.Mutex
	plays  int
	closed bool
}

func (p *silentPlayer) Play([]byte, *float64) (autodj.Clip, error) {
	p.mu.Lock()
	p.plays++
	p.mu.Unlock()
	return &silentClip{done: make(chan struct{})}, nil
}

func (p *silentPlayer) Frames() <-chan []int16 { return nil }

func (p *silentPlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type lifecycle struct {
	h       hooks
	player  *silentPlayer
	opened  chan struct{}
	readyC  chan struct{}
	failedC chan error
}

func newLifecycle() *lifecycle {
	lc := &lifecycle{
		player:  &silentPlayer{},
		opened:  make(chan struct{}, 1),
		readyC:  make(chan struct{}, 1),
		failedC: make(chan error, 1),
	}
	lc.h = hooks{
		open: func(audio.SessionConfig, zerolog.Logger) (player, error) {
			lc.opened <- struct{}{}
			return lc.player, nil
		},
		ready:  func() error { lc.readyC <- struct{}{}; return nil },
		failed: func(err error) error { lc.failedC <- err; return nil },
	}
	return lc
}

// guardSIGTERM keeps the test binary alive whatever the signal timing.
func guardSIGTERM(t *testing.T) {
	t.Helper()
	c := make(chan os.Signal, 4)
	signal.Notify(c, syscall.SIGTERM)
	t.Cleanup(func() { signal.Stop(c) })
}

func testConfig(t *testing.T, origin string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Game:        "new-horizons",
		Rain:        "none",
		Origin:      origin,
		Extension:   ".ogg",
		LockPath:    filepath.Join(dir, "sub.lock"),
		LockTimeout: 10 * time.Second,
		LogLevel:    "debug",
		LogFile:     filepath.Join(dir, "nookd.log"),
	}
}

func trackServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OggS track"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func serveAsync(h hooks, cfg *config.Config) <-chan error {
	game, _ := catalog.ParseGame(cfg.Game)
	done := make(chan error, 1)
	go func() { done <- h.serve(cfg, game, false) }()
	return done
}

func awaitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after SIGTERM")
		return nil
	}
}

func awaitReady(t *testing.T, lc *lifecycle) {
	t.Helper()
	select {
	case <-lc.readyC:
	case err := <-lc.failedC:
		t.Fatalf("startup failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("never became ready")
	}
}

func TestSIGTERMRemovesLockAndExitsZero(t *testing.T) {
	guardSIGTERM(t)
	lc := newLifecycle()
	cfg := testConfig(t, trackServer(t).URL)

	done := serveAsync(lc.h, cfg)
	awaitReady(t, lc)

	b, err := os.ReadFile(cfg.LockPath)
	if err != nil {
		t.Fatalf("lock file missing while running: %v", err)
	}
	if string(b) != string(lockfile.FormatRecord(os.Getpid())) {
		t.Errorf("lock record = %q, want our pid", b)
	}

	syscall.Kill(os.Getpid(), syscall.SIGTERM)
	err = awaitServe(t, done)

	if code := exitCode(err); code != 0 {
		t.Errorf("exit code = %d (%v), want 0", code, err)
	}
	if _, err := os.Stat(cfg.LockPath); !os.IsNotExist(err) {
		t.Errorf("lock file still present after SIGTERM: %v", err)
	}
	lc.player.mu.Lock()
	defer lc.player.mu.Unlock()
	if !lc.player.closed {
		t.Error("audio output not closed")
	}
}

func TestSIGTERMWithStuckLockExitsTwo(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	guardSIGTERM(t)
	lc := newLifecycle()
	cfg := testConfig(t, trackServer(t).URL)
	lockDir := filepath.Dir(cfg.LockPath)
	cfg.LogFile = filepath.Join(t.TempDir(), "nookd.log")

	done := serveAsync(lc.h, cfg)
	awaitReady(t, lc)

	os.Chmod(lockDir, 0o500)
	defer os.Chmod(lockDir, 0o700)

	syscall.Kill(os.Getpid(), syscall.SIGTERM)
	err := awaitServe(t, done)

	if code := exitCode(err); code != lockfile.ExitCleanupFailed {
		t.Errorf("exit code = %d (%v), want %d", code, err, lockfile.ExitCleanupFailed)
	}
}

func TestSIGTERMWhileWaitingForLock(t *testing.T) {
	guardSIGTERM(t)
	lc := newLifecycle()
	cfg := testConfig(t, trackServer(t).URL)
	cfg.LockTimeout = time.Minute

	// Held under our own pid, so no signal goes anywhere.
	held, err := lockfile.Acquire(context.Background(), lockfile.Options{
		Path:   cfg.LockPath,
		PID:    os.Getpid(),
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	done := serveAsync(lc.h, cfg)
	time.Sleep(300 * time.Millisecond)
	syscall.Kill(os.Getpid(), syscall.SIGTERM)

	if code := exitCode(awaitServe(t, done)); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	select {
	case <-lc.opened:
		t.Error("audio output opened after termination")
	default:
	}
	select {
	case <-lc.readyC:
		t.Error("reported ready after termination")
	default:
	}
	select {
	case err := <-lc.failedC:
		if err == nil {
			t.Error("parent should get a reason")
		}
	default:
		t.Error("waiting parent was not told about the termination")
	}
	if _, err := os.Stat(cfg.LockPath); err != nil {
		t.Errorf("holder's lock file touched: %v", err)
	}
}
