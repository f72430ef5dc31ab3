package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// ErrNoDevice is returned when the host exposes no usable playback device.
var ErrNoDevice = errors.New("audio: no playback device")

// periodFrames is the device period, one 20ms frame.
const periodFrames = FrameSize

// SessionConfig selects the playback device.
type SessionConfig struct {
	DeviceName string // empty selects the system default
	TapSize    int    // buffered monitor frames, 0 disables the tap
}

// Session is the process-wide output device. Both streams play on it
// through the embedded Mixer.
type Session struct {
	*Mixer

	ctx    *malgo.AllocatedContext
	device *malgo.Device
	name   string
	logger zerolog.Logger
}

// Open initialises the audio backend and starts the playback device.
func Open(cfg SessionConfig, logger zerolog.Logger) (*Session, error) {
	logger = logger.With().Str("component", "audio").Logger()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	devices, err := mctx.Devices(malgo.Playback)
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("enumerate playback devices: %w", err)
	}
	if len(devices) == 0 {
		freeContext(mctx)
		return nil, ErrNoDevice
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.SampleRate = SampleRate
	deviceConfig.PeriodSizeInFrames = periodFrames
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = Channels

	name := "default"
	if cfg.DeviceName != "" {
		info, ok := findDevice(devices, cfg.DeviceName)
		if !ok {
			freeContext(mctx)
			return nil, fmt.Errorf("%w: %q not found", ErrNoDevice, cfg.DeviceName)
		}
		deviceConfig.Playback.DeviceID = info.ID.Pointer()
		name = cfg.DeviceName
	}

	s := &Session{
		Mixer:  NewMixer(cfg.TapSize),
		ctx:    mctx,
		name:   name,
		logger: logger,
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			s.Render(out)
		},
	})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("%w: init %s: %v", ErrNoDevice, name, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx)
		return nil, fmt.Errorf("%w: start %s: %v", ErrNoDevice, name, err)
	}
	s.device = device

	logger.Info().Str("device", name).Int("rate", SampleRate).Msg("audio output opened")
	return s, nil
}

// Close stops the device and releases the backend.
func (s *Session) Close() error {
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		freeContext(s.ctx)
		s.ctx = nil
	}
	s.logger.Debug().Msg("audio output closed")
	return nil
}

func findDevice(devices []malgo.DeviceInfo, name string) (malgo.DeviceInfo, bool) {
	for _, d := range devices {
		if strings.TrimSpace(d.Name()) == name {
			return d, true
		}
	}
	return malgo.DeviceInfo{}, false
}

func freeContext(c *malgo.AllocatedContext) {
	_ = c.Uninit()
	c.Free()
}
