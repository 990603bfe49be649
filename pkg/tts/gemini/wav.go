package gemini

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// SampleRate of Gemini speech output.
const SampleRate = 24000

// pcmStreamer streams 16-bit little-endian mono PCM as beep samples.
type pcmStreamer struct {
	data []byte
	pos  int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) && s.pos+1 < len(s.data) {
		v := float64(int16(binary.LittleEndian.Uint16(s.data[s.pos:]))) / 32768
		samples[n][0] = v
		samples[n][1] = v
		s.pos += 2
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error { return nil }

// WritePCMAsWAV wraps raw PCM in a WAV container.
func WritePCMAsWAV(w io.WriteSeeker, pcm []byte) error {
	if len(pcm) < 2 {
		return fmt.Errorf("no audio samples")
	}
	format := beep.Format{SampleRate: SampleRate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(w, &pcmStreamer{data: pcm}, format); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return nil
}
