package audio

import (
	"encoding/binary"
	"log"
	"sync"
)

// BytesPerSample is the PCM frame size this Stream emits: 16-bit
// signed, stereo (mono APU output duplicated to both channels), the
// format ebiten's audio context expects.
const BytesPerSample = 4

// Stream adapts a Ring of float32 mono samples into an io.Reader of
// interleaved little-endian 16-bit stereo PCM, for ebiten/v2/audio.NewPlayer.
type Stream struct {
	ring *Ring

	warnOnce sync.Once
	scratch  []float32
}

// NewStream wraps ring for PCM streaming.
func NewStream(ring *Ring) *Stream {
	return &Stream{ring: ring}
}

// Read fills p with interleaved stereo PCM, pulling mono samples from
// the ring and converting float32 [-1,1] to int16. Starved samples
// read back as silence rather than blocking, so a slow emulation
// frame never stalls the audio callback.
func (s *Stream) Read(p []byte) (int, error) {
	frames := len(p) / BytesPerSample
	if frames == 0 {
		return 0, nil
	}

	if cap(s.scratch) < frames {
		s.scratch = make([]float32, frames)
	}
	samples := s.scratch[:frames]

	n := s.ring.Pop(samples)
	if n < frames {
		for i := n; i < frames; i++ {
			samples[i] = 0
		}
	}

	if s.ring.Underflowed() {
		s.warnOnce.Do(func() { log.Println("audio: ring buffer underflow, inserting silence") })
	}

	for i, sample := range samples {
		v := int16(clamp(sample) * 32767)
		offset := i * BytesPerSample
		binary.LittleEndian.PutUint16(p[offset:], uint16(v))
		binary.LittleEndian.PutUint16(p[offset+2:], uint16(v))
	}

	return frames * BytesPerSample, nil
}

func clamp(sample float32) float32 {
	switch {
	case sample > 1:
		return 1
	case sample < -1:
		return -1
	default:
		return sample
	}
}
