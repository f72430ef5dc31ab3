package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceInfo describes a playback device.
type DeviceInfo struct {
	ID        string
	Name      string
	IsDefault bool
}

// PlaybackDevices lists the host's playback devices.
func PlaybackDevices() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer freeContext(mctx)

	devices, err := mctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate playback devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceInfo{
			ID:        d.ID.String(),
			Name:      strings.TrimSpace(d.Name()),
			IsDefault: d.IsDefault != 0,
		})
	}
	return infos, nil
}
