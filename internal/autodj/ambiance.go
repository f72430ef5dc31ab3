package autodj

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/nookd/internal/catalog"
	"github.com/satindergrewal/nookd/internal/timeslot"
)

// AmbianceConfig holds the rain loop parameters.
type AmbianceConfig struct {
	Rain    catalog.Rain
	Catalog catalog.Catalog
	Volume  *float64
}

// Ambiance plays one rain clip on repeat. The clip is fetched once and
// decoded afresh for every pass.
type Ambiance struct {
	fetch  Fetcher
	out    Output
	clock  timeslot.Clock
	cfg    AmbianceConfig
	logger zerolog.Logger

	status statusCell
}

// NewAmbiance creates the rain loop.
func NewAmbiance(fetch Fetcher, out Output, clock timeslot.Clock, cfg AmbianceConfig, logger zerolog.Logger) *Ambiance {
	a := &Ambiance{
		fetch:  fetch,
		out:    out,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With().Str("stream", "ambiance").Str("rain", cfg.Rain.String()).Logger(),
	}
	a.status.st.Stream = a.Name()
	return a
}

func (a *Ambiance) Name() string { return "ambiance" }

func (a *Ambiance) Status() Status { return a.status.get() }

// Run loops until ctx is cancelled or a step fails.
func (a *Ambiance) Run(ctx context.Context) error {
	url := a.cfg.Catalog.RainURL(a.cfg.Rain)
	data, err := a.fetch.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("ambiance: %w", err)
	}
	a.logger.Info().Str("url", url).Int("bytes", len(data)).Msg("ambiance loop started")

	reason := ReasonStart
	for {
		clip, err := a.out.Play(data, a.cfg.Volume)
		if err != nil {
			return fmt.Errorf("ambiance: play %s: %w", url, err)
		}
		a.status.update(func(st *Status) {
			st.URL = url
			st.Reason = reason
			st.Plays++
			st.Since = a.clock.Now()
		})
		a.logger.Debug().Str("reason", reason).Msg("rain clip started")

		select {
		case <-ctx.Done():
			clip.Stop()
			return ctx.Err()
		case <-clip.Done():
		}
		reason = ReasonRepeating
	}
}
