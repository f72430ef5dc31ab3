package monitor

import (
	"encoding/binary"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/nookd/internal/audio"
)

// streamingSize stands in for the RIFF and data chunk sizes of an endless
// stream. Players treat it as "read until EOF".
const streamingSize = 0xFFFFFFFF

// wavHeader is a 44-byte PCM WAV header for the session's output format.
func wavHeader() []byte {
	h := make([]byte, 44)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], streamingSize)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], audio.Channels)
	binary.LittleEndian.PutUint32(h[24:], audio.SampleRate)
	binary.LittleEndian.PutUint32(h[28:], audio.SampleRate*audio.Channels*audio.BitDepth/8)
	binary.LittleEndian.PutUint16(h[32:], audio.Channels*audio.BitDepth/8)
	binary.LittleEndian.PutUint16(h[34:], audio.BitDepth)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], streamingSize)
	return h
}

// PCMHandler serves the mixed output as an endless WAV stream.
type PCMHandler struct {
	broadcaster *Broadcaster
	logger      zerolog.Logger
	listeners   atomic.Int64
}

// Listeners returns the number of connected PCM clients.
func (h *PCMHandler) Listeners() int { return int(h.listeners.Load()) }

func NewPCMHandler(b *Broadcaster, logger zerolog.Logger) *PCMHandler {
	return &PCMHandler{broadcaster: b, logger: logger}
}

func (h *PCMHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "nookd")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)
	n := h.listeners.Add(1)
	defer h.listeners.Add(-1)

	h.logger.Info().Str("remote", r.RemoteAddr).Int64("listeners", n).Int("subscribers", h.broadcaster.ListenerCount()).Msg("pcm listener connected")
	defer func() {
		h.logger.Info().Str("remote", r.RemoteAddr).Uint64("dropped", listener.Dropped()).Msg("pcm listener disconnected")
	}()

	if _, err := w.Write(wavHeader()); err != nil {
		return
	}
	flusher.Flush()

	buf := make([]byte, 0, audio.FrameBytes)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-listener.Done():
			return
		case frame := <-listener.C:
			buf = audio.AppendSamples(buf[:0], frame)
			if _, err := w.Write(buf); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
