package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/satindergrewal/nookd/internal/config"
)

func TestHelpListsGamesAndRain(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := execute([]string{"--help"}, &out, &errOut); code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, errOut.String())
	}
	help := out.String()
	for _, want := range []string{"new-horizons-snowy", "population-growing-cherry", "pocket-camp", "no-thunder", "--game-volume", "--no-daemon"} {
		if !strings.Contains(help, want) {
			t.Errorf("help does not mention %q", want)
		}
	}
}

func TestUnknownGameExitsOne(t *testing.T) {
	t.Setenv("NOOKD_GAME", "")
	var out, errOut bytes.Buffer
	code := execute([]string{"-g", "animal-forest"}, &out, &errOut)
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), `"animal-forest"`) {
		t.Errorf("stderr should name the input: %q", errOut.String())
	}
}

func TestMissingGameExitsOne(t *testing.T) {
	t.Setenv("NOOKD_GAME", "")
	var out, errOut bytes.Buffer
	if code := execute([]string{"--no-daemon"}, &out, &errOut); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "game is required") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestBadVolumeExitsOne(t *testing.T) {
	var out, errOut bytes.Buffer
	code := execute([]string{"-g", "new-leaf", "--game-volume", "250"}, &out, &errOut)
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
}

func TestStrayArgumentRejected(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := execute([]string{"-g", "new-leaf", "extra"}, &out, &errOut); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
}

func TestChildArgsPinsRelativePaths(t *testing.T) {
	cfg := &config.Config{LogFile: "logs/nookd.log", LockPath: "/tmp/sub.lock"}
	args := []string{"-g", "wild-world"}

	got := childArgs(args, cfg, "nookd.yaml")

	absCfg, _ := filepath.Abs("nookd.yaml")
	absLog, _ := filepath.Abs("logs/nookd.log")
	want := []string{"-g", "wild-world", "--config=" + absCfg, "--log-file=" + absLog}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("childArgs = %v, want %v", got, want)
	}
	if len(args) != 2 {
		t.Error("childArgs modified its input")
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	base := errors.New("remove /tmp/sub.lock: permission denied")
	err := error(&exitError{code: 2, err: base})
	if !errors.Is(err, base) {
		t.Error("exitError does not unwrap")
	}
	if err.Error() != base.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
}
