package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewConverter(t *testing.T) {
	t.Run("valid rates", func(t *testing.T) {
		c, err := NewConverter(44100, 8000)
		require.NoError(t, err)
		assert.InDelta(t, 5.5125, c.Ratio(), 1e-9)
	})

	t.Run("rejects non-positive rates", func(t *testing.T) {
		for _, rates := range [][2]float64{{0, 8000}, {44100, 0}, {-1, 8000}, {8000, -44100}} {
			_, err := NewConverter(rates[0], rates[1])
			assert.Error(t, err, "rates %v", rates)
		}
	})
}

// Converting two blocks back-to-back must equal converting their
// concatenation: the converter is a stateful streaming transform, not a
// per-block one.
func TestConverterContinuity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		inRate := rapid.Float64Range(4000, 96000).Draw(t, "inRate")
		outRate := rapid.Float64Range(4000, 96000).Draw(t, "outRate")
		samples := rapid.SliceOfN(rapid.Float32Range(-1, 1), 2, 512).Draw(t, "samples")
		split := rapid.IntRange(0, len(samples)).Draw(t, "split")

		whole, err := NewConverter(inRate, outRate)
		require.NoError(t, err)
		split2, err := NewConverter(inRate, outRate)
		require.NoError(t, err)

		want := whole.Convert(nil, samples)

		got := split2.Convert(nil, samples[:split])
		got = split2.Convert(got, samples[split:])

		assert.Equal(t, want, got)
	})
}

func TestConverterOutputCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		inRate := rapid.Float64Range(4000, 96000).Draw(t, "inRate")
		outRate := rapid.Float64Range(4000, 96000).Draw(t, "outRate")
		n := rapid.IntRange(100, 4000).Draw(t, "n")

		c, err := NewConverter(inRate, outRate)
		require.NoError(t, err)

		out := c.Convert(nil, make([]float32, n))
		expected := float64(n) * outRate / inRate
		assert.InDelta(t, expected, float64(len(out)), expected*0.01+2,
			"output count for %d samples at %v->%v", n, inRate, outRate)
	})
}

func TestConverterIdentityRate(t *testing.T) {
	c, err := NewConverter(8000, 8000)
	require.NoError(t, err)

	in := []float32{1, 2, 3, 4, 5}
	out := c.Convert(nil, in)

	// One sample of interpolator latency: output i is input i-1.
	require.Len(t, out, 5)
	assert.Equal(t, []float32{0, 1, 2, 3, 4}, out)
}

func TestConverterInterpolates(t *testing.T) {
	// 2x upsampling of a ramp fills in the midpoints.
	c, err := NewConverter(8000, 16000)
	require.NoError(t, err)

	out := c.Convert(nil, []float32{0, 1, 2})
	require.Len(t, out, 6)
	assert.Equal(t, []float32{0, 0, 0, 0.5, 1, 1.5}, out)
}

func TestConverterSineFidelity(t *testing.T) {
	// A 200 Hz tone downsampled 48k -> 8k should still be a clean 200 Hz
	// tone; linear interpolation error at this oversampling is tiny.
	c, err := NewConverter(48000, 8000)
	require.NoError(t, err)

	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 200 * float64(i) / 48000))
	}
	out := c.Convert(nil, in)
	require.Greater(t, len(out), 700)

	for i := 1; i < len(out); i++ {
		// With an exact integer step of 6 the phase stays at zero, so output
		// i is source sample 6i-1 (one sample of interpolator latency).
		want := float64(in[6*i-1])
		if math.Abs(float64(out[i])-want) > 1e-6 {
			t.Fatalf("sample %d: got %f, want %f", i, out[i], want)
		}
	}
}

func TestConverterReset(t *testing.T) {
	c, err := NewConverter(44100, 8000)
	require.NoError(t, err)

	in := make([]float32, 441)
	for i := range in {
		in[i] = float32(i%7) - 3
	}
	first := c.Convert(nil, in)

	c.Reset()
	second := c.Convert(nil, in)

	assert.Equal(t, first, second, "conversion after Reset must match a fresh converter")
}
