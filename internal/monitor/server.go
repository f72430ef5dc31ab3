// Package monitor is the optional local HTTP server: a JSON status
// endpoint plus live PCM and WebRTC feeds of the mixed output.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/nookd/internal/autodj"
	"github.com/satindergrewal/nookd/internal/supervisor"
)

const shutdownTimeout = 3 * time.Second

// Report is the /api/status payload.
type Report struct {
	PID     int                     `json:"pid"`
	Game    string                  `json:"game"`
	Rain    string                  `json:"rain"`
	Slot    string                  `json:"slot"`
	Period  string                  `json:"period"`
	Tasks   []supervisor.TaskStatus `json:"tasks"`
	Streams []autodj.Status         `json:"streams"`

	HTTPListeners int `json:"http_listeners"`
	WebRTCPeers   int `json:"webrtc_peers"`
}

// ReportFunc fills everything in a Report except the listener counts.
type ReportFunc func() Report

// Server serves the monitor endpoints.
type Server struct {
	addr   string
	frames <-chan []int16
	report ReportFunc
	logger zerolog.Logger

	broadcaster *Broadcaster
	pcm         *PCMHandler
	webrtc      *WebRTCHandler
	mux         *http.ServeMux
}

// New builds a server on addr. frames is the session tap; it may be nil,
// in which case the audio feeds stay silent.
func New(addr string, frames <-chan []int16, report ReportFunc, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "monitor").Logger()
	b := NewBroadcaster()
	s := &Server{
		addr:        addr,
		frames:      frames,
		report:      report,
		logger:      logger,
		broadcaster: b,
		pcm:         NewPCMHandler(b, logger),
		webrtc:      NewWebRTCHandler(b, logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("GET /stream", s.pcm)
	mux.Handle("/offer", s.webrtc)
	s.mux = mux
	return s
}

// Handler exposes the routes without listening.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) Name() string { return "monitor" }

// Run listens until ctx is cancelled. A listen failure is returned.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.frames != nil {
		go s.broadcaster.Run(ctx, s.frames)
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.webrtc.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("monitor listening")
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var rep Report
	if s.report != nil {
		rep = s.report()
	}
	rep.HTTPListeners = s.pcm.Listeners()
	rep.WebRTCPeers = s.webrtc.PeerCount()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		s.logger.Debug().Err(err).Msg("write status")
	}
}
