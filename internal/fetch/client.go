// Package fetch downloads track files from the remote catalog.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// maxBody caps a single track download. Hourly loops are a few MB.
const maxBody = 64 << 20

// Client downloads whole audio files into memory.
type Client struct {
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a fetch client. A zero timeout means no deadline.
func NewClient(timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "fetch").Logger(),
	}
}

// Fetch returns the body of url. Any transport error or non-2xx status is an
// error; there are no retries.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "nookd")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > maxBody {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, maxBody)
	}

	c.logger.Debug().
		Str("url", url).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("fetched")
	return data, nil
}
