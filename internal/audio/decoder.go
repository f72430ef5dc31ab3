package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnknownContainer is returned when the bytes match no supported format.
var ErrUnknownContainer = errors.New("audio: unrecognised container")

// Container is an audio file format recognised by its magic bytes.
type Container int

const (
	Unknown Container = iota
	Ogg
	WAV
	FLAC
	MP3
)

func (c Container) String() string {
	switch c {
	case Ogg:
		return "ogg"
	case WAV:
		return "wav"
	case FLAC:
		return "flac"
	case MP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// Sniff identifies the container of data from its header.
func Sniff(data []byte) Container {
	switch {
	case bytes.HasPrefix(data, []byte("OggS")):
		return Ogg
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WAVE":
		return WAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FLAC
	case bytes.HasPrefix(data, []byte("ID3")):
		return MP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return MP3
	default:
		return Unknown
	}
}

// Decode turns a whole audio file into a playable source. Each call returns
// an independent source, so the same buffer can be decoded repeatedly.
func Decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	c := Sniff(data)
	switch c {
	case Ogg:
		s, f, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	case WAV:
		s, f, err = wav.Decode(bytes.NewReader(data))
	case FLAC:
		s, f, err = flac.Decode(bytes.NewReader(data))
	case MP3:
		s, f, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, beep.Format{}, ErrUnknownContainer
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", c, err)
	}
	return s, f, nil
}

// AppendSamples appends samples to dst as little-endian bytes.
func AppendSamples(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// toInt16 clamps a float sample in [-1, 1] to the int16 range.
func toInt16(v float64) int16 {
	v *= 32767
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
