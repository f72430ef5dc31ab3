package autodj

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/nookd/internal/catalog"
	"github.com/satindergrewal/nookd/internal/timeslot"
)

// maxBoundaryWait caps a single boundary timer. Monotonic timers stall
// while the host is suspended, so the wall clock is re-read at least this
// often.
const maxBoundaryWait = time.Minute

// SchedulerConfig holds the music loop parameters.
type SchedulerConfig struct {
	Game    catalog.Game
	Catalog catalog.Catalog
	Volume  *float64 // percent, nil = device default
}

// Scheduler plays the catalog track for the current hour, replaying it when
// it ends and switching at the top of every hour.
type Scheduler struct {
	fetch  Fetcher
	out    Output
	clock  timeslot.Clock
	cfg    SchedulerConfig
	logger zerolog.Logger

	status statusCell
}

// NewScheduler creates the music loop.
func NewScheduler(fetch Fetcher, out Output, clock timeslot.Clock, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		fetch:  fetch,
		out:    out,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With().Str("stream", "music").Str("game", cfg.Game.String()).Logger(),
	}
	s.status.st.Stream = s.Name()
	return s
}

// Name identifies the loop in logs and status output.
func (s *Scheduler) Name() string { return "music" }

// Status returns what the loop is playing.
func (s *Scheduler) Status() Status { return s.status.get() }

// Run loops until ctx is cancelled or a step fails. A broken clock is
// reported as timeslot.ErrClockBroken and must end the process.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().Msg("music loop started")

	reason := ReasonStart
	for {
		slot, err := timeslot.Current(s.clock)
		if err != nil {
			return err
		}

		url := s.cfg.Catalog.TrackURL(s.cfg.Game, slot)
		data, err := s.fetch.Fetch(ctx, url)
		if err != nil {
			return fmt.Errorf("music: %w", err)
		}

		clip, err := s.out.Play(data, s.cfg.Volume)
		if err != nil {
			return fmt.Errorf("music: play %s: %w", url, err)
		}

		s.status.update(func(st *Status) {
			st.URL = url
			st.Slot = slot.String()
			st.Period = string(slot.Period())
			st.Reason = reason
			st.Plays++
			st.Since = s.clock.Now()
		})
		s.logger.Info().Str("slot", slot.String()).Str("url", url).Str("reason", reason).Msg("now playing")

		reason, err = s.wait(ctx, clip, slot)
		if err != nil {
			return err
		}
	}
}

// wait blocks until the clip ends or the wall clock leaves slot. When both
// are ready the hour wins, and the clip is cut. The slot is compared rather
// than a boundary instant, so an hour that turned over while the track was
// downloading is caught at once.
func (s *Scheduler) wait(ctx context.Context, clip Clip, slot timeslot.Slot) (string, error) {
	for {
		now := s.clock.Now()
		if s.leftSlot(slot, now) {
			clip.Stop()
			return ReasonBoundary, nil
		}
		d := timeslot.NextBoundary(now).Sub(now)
		if d > maxBoundaryWait {
			d = maxBoundaryWait
		}
		timer := s.clock.After(d)

		select {
		case <-ctx.Done():
			clip.Stop()
			return "", ctx.Err()
		case <-timer:
		case <-clip.Done():
			if s.leftSlot(slot, s.clock.Now()) {
				return ReasonBoundary, nil
			}
			return ReasonFinished, nil
		}
	}
}

// leftSlot reports whether now falls outside slot. An unreadable clock
// counts as a change so Run resolves the slot again and reports it.
func (s *Scheduler) leftSlot(slot timeslot.Slot, now time.Time) bool {
	cur, err := timeslot.At(now)
	return err != nil || cur != slot
}
