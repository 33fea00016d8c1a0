package pcm

import (
	"time"
)

const (
	// L16Mono8K represents audio/L16; rate=8000; channels=1 (radio-rate signal)
	L16Mono8K Format = iota
	// L16Mono16K represents audio/L16; rate=16000; channels=1 (vocoder speech)
	L16Mono16K
	// L16Mono44K1 represents audio/L16; rate=44100; channels=1 (sound-card default)
	L16Mono44K1
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format represents an audio format configuration.
// All formats are 16-bit signed little-endian mono; the decoder collapses
// stereo capture to mono before any sample enters the pipeline.
type Format int

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono8K:
		return 8000
	case L16Mono16K:
		return 16000
	case L16Mono44K1:
		return 44100
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio format")
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int {
	switch f {
	case L16Mono8K, L16Mono16K, L16Mono44K1, L16Mono48K:
		return 1
	}
	panic("pcm: invalid audio format")
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	return 16
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels()) / int64(f.Depth())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// Duration returns the duration of the given number of samples.
func (f Format) Duration(samples int64) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate())
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono8K:
		return "audio/L16; rate=8000; channels=1"
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono44K1:
		return "audio/L16; rate=44100; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid audio format")
}

// FormatForRate returns the Format matching a negotiated device rate.
// Returns false for rates the decoder does not operate at.
func FormatForRate(rate int) (Format, bool) {
	switch rate {
	case 8000:
		return L16Mono8K, true
	case 16000:
		return L16Mono16K, true
	case 44100:
		return L16Mono44K1, true
	case 48000:
		return L16Mono48K, true
	}
	return 0, false
}

// FloatsFromInt16 converts int16 samples to float32 in [-1, 1), appending
// to dst. Stereo input is collapsed to mono by averaging sample pairs when
// channels == 2.
func FloatsFromInt16(dst []float32, src []int16, channels int) []float32 {
	if channels == 2 {
		for i := 0; i+1 < len(src); i += 2 {
			dst = append(dst, (float32(src[i])+float32(src[i+1]))/(2*32768.0))
		}
		return dst
	}
	for _, s := range src {
		dst = append(dst, float32(s)/32768.0)
	}
	return dst
}

// Int16FromFloats converts float32 samples in [-1, 1] to int16, appending to
// dst and clamping out-of-range values instead of wrapping.
func Int16FromFloats(dst []int16, src []float32) []int16 {
	for _, s := range src {
		v := s * 32767.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		dst = append(dst, int16(v))
	}
	return dst
}
