package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/nookd/internal/audio"
	"github.com/satindergrewal/nookd/internal/autodj"
	"github.com/satindergrewal/nookd/internal/catalog"
	"github.com/satindergrewal/nookd/internal/config"
	"github.com/satindergrewal/nookd/internal/daemon"
	"github.com/satindergrewal/nookd/internal/fetch"
	"github.com/satindergrewal/nookd/internal/lockfile"
	"github.com/satindergrewal/nookd/internal/logging"
	"github.com/satindergrewal/nookd/internal/monitor"
	"github.com/satindergrewal/nookd/internal/supervisor"
	"github.com/satindergrewal/nookd/internal/timeslot"
)

// monitorTapFrames buffers one second of output for the monitor.
const monitorTapFrames = 50

// player is the shared output both loops play on.
type player interface {
	autodj.Output
	Frames() <-chan []int16
	Close() error
}

type sessionPlayer struct{ *audio.Session }

func (p sessionPlayer) Play(data []byte, volume *float64) (autodj.Clip, error) {
	pb, err := p.PlayBytes(data, volume)
	if err != nil {
		return nil, err
	}
	return pb, nil
}

func openSession(cfg audio.SessionConfig, logger zerolog.Logger) (player, error) {
	sess, err := audio.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return sessionPlayer{sess}, nil
}

// hooks are the process-level collaborators of a run.
type hooks struct {
	open   func(audio.SessionConfig, zerolog.Logger) (player, error)
	ready  func() error
	failed func(error) error
}

var defaultHooks = hooks{
	open:   openSession,
	ready:  daemon.NotifyReady,
	failed: daemon.NotifyFailed,
}

func (h hooks) run(cfg *config.Config, args []string) error {
	game, err := catalog.ParseGame(cfg.Game)
	if err != nil {
		return fatal(fmt.Errorf("there is no game called %q, see --help for the list", cfg.Game))
	}

	foreground := cfg.Foreground || !daemon.Supported()
	if !foreground && !daemon.IsChild() {
		if err := daemon.Detach(args); err != nil {
			return fatal(err)
		}
		return nil
	}
	return h.serve(cfg, game, foreground)
}

// serve is the long-running part: lock, output, loops, teardown. Without
// foreground it owns the lock file and removes it on the way out.
func (h hooks) serve(cfg *config.Config, game catalog.Game, foreground bool) error {
	logOpts := logging.Options{Level: cfg.LogLevel}
	if !foreground {
		logOpts.File = cfg.LogFile
	}
	logger, closer, err := logging.Setup(logOpts)
	if err != nil {
		h.failed(err)
		return fatal(err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lock *lockfile.Lock
	if !foreground {
		lock, err = lockfile.Acquire(ctx, lockfile.Options{
			Path:    cfg.LockPath,
			PID:     os.Getpid(),
			Timeout: cfg.LockTimeout,
			Logger:  logger,
		})
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("terminated while waiting for the lock")
				h.failed(errors.New("terminated while waiting for the lock"))
				return nil
			}
			logger.Error().Err(err).Msg("could not claim lock")
			h.failed(err)
			return fatal(err)
		}
	}

	if ctx.Err() != nil {
		logger.Info().Msg("terminated before playback started")
		h.failed(errors.New("terminated before playback started"))
	} else {
		err = h.play(ctx, cfg, game, logger)
	}

	if lock != nil {
		if rerr := lock.Release(); rerr != nil {
			logger.Error().Err(rerr).Str("lock", cfg.LockPath).Msg("could not remove lock file")
			if err == nil {
				err = &exitError{code: lockfile.TeardownExitCode(rerr), err: rerr}
			}
		}
	}
	if err != nil {
		return err
	}
	logger.Info().Msg("shut down")
	return nil
}

// play opens the output and runs the loops until a signal or a failure.
// Startup errors are also reported to a waiting parent.
func (h hooks) play(ctx context.Context, cfg *config.Config, game catalog.Game, logger zerolog.Logger) error {
	tap := 0
	if cfg.MonitorAddr != "" {
		tap = monitorTapFrames
	}
	out, err := h.open(audio.SessionConfig{DeviceName: cfg.Device, TapSize: tap}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("could not open audio output")
		h.failed(err)
		return fatal(err)
	}
	defer out.Close()

	cat := catalog.New(cfg.Origin, cfg.Extension)
	clock := timeslot.SystemClock{}
	l := newLoops(fetch.NewClient(cfg.FetchTimeout, logger), out, clock, cfg, game, cat, logger)

	sup := supervisor.New(logger)
	sup.Add(l.music)
	if l.ambiance != nil {
		sup.Add(l.ambiance)
	}

	if cfg.MonitorAddr != "" {
		sup.Add(monitor.New(cfg.MonitorAddr, out.Frames(), func() monitor.Report {
			rep := monitor.Report{
				PID:     os.Getpid(),
				Game:    game.String(),
				Rain:    l.rain.String(),
				Tasks:   sup.Statuses(),
				Streams: []autodj.Status{l.music.Status()},
			}
			if slot, err := timeslot.Current(clock); err == nil {
				rep.Slot = slot.String()
				rep.Period = string(slot.Period())
			}
			if l.ambiance != nil {
				rep.Streams = append(rep.Streams, l.ambiance.Status())
			}
			return rep
		}, logger))
	}

	logger.Info().Str("game", game.String()).Str("rain", l.rain.String()).Str("origin", cat.Origin).Msg("nookd starting")
	h.ready()

	if err := sup.Run(ctx); err != nil {
		return fatal(err)
	}
	return nil
}

type loops struct {
	music    *autodj.Scheduler
	ambiance *autodj.Ambiance // nil without rain
	rain     catalog.Rain
}

func newLoops(fetcher autodj.Fetcher, out autodj.Output, clock timeslot.Clock, cfg *config.Config, game catalog.Game, cat catalog.Catalog, logger zerolog.Logger) loops {
	l := loops{
		music: autodj.NewScheduler(fetcher, out, clock, autodj.SchedulerConfig{
			Game:    game,
			Catalog: cat,
			Volume:  cfg.GameVolume,
		}, logger),
		rain: rainFor(cfg.Rain, logger),
	}
	if l.rain != catalog.NoRain {
		l.ambiance = autodj.NewAmbiance(fetcher, out, clock, autodj.AmbianceConfig{
			Rain:    l.rain,
			Catalog: cat,
			Volume:  cfg.RainVolume,
		}, logger)
	}
	return l
}

// rainFor resolves the rain option. An unknown name only disables the
// ambiance loop.
func rainFor(name string, logger zerolog.Logger) catalog.Rain {
	rain, err := catalog.ParseRain(name)
	if err != nil {
		logger.Warn().Err(err).Msg("no rain ambiance")
		return catalog.NoRain
	}
	return rain
}
