package dsp

import (
	"fmt"
	"math"
)

// Converter is a streaming fractional-phase linear-interpolation resampler.
// It keeps one previous sample and a phase accumulator so that converting
// back-to-back blocks produces the same waveform as converting their
// concatenation: there are no seams at block boundaries.
//
// The phase accumulator is always in [0, 1): it is the fractional position
// of the next output between the retained previous sample and the next
// source sample. Whole-sample advances are tracked separately as a count of
// source samples still to be consumed.
//
// The interpolator introduces one source sample of latency: each output is
// computed between the retained previous sample and the current one.
type Converter struct {
	step float64 // source samples advanced per output sample

	phase   float64 // in [0, 1)
	prev    float32
	pending int // source samples owed to the accumulator from a prior step
}

// NewConverter creates a converter from inRate to outRate (Hz). Both rates
// must be positive; anything else is a construction-time contract violation.
func NewConverter(inRate, outRate float64) (*Converter, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("dsp: invalid resample ratio %v -> %v", inRate, outRate)
	}
	return &Converter{step: inRate / outRate}, nil
}

// Convert resamples src, appending output samples to dst and returning the
// extended slice. The number of outputs per call varies by up to one sample
// around len(src)/step as the phase accumulator rolls over.
func (c *Converter) Convert(dst []float32, src []float32) []float32 {
	for _, s := range src {
		if c.pending > 0 {
			c.pending--
			c.prev = s
			continue
		}
		for c.phase < 1 {
			dst = append(dst, c.prev+float32(c.phase)*(s-c.prev))
			c.phase += c.step
		}
		whole := math.Floor(c.phase)
		c.phase -= whole
		c.pending = int(whole) - 1 // the current sample consumes one
		c.prev = s
	}
	return dst
}

// Ratio returns the conversion step, inRate/outRate.
func (c *Converter) Ratio() float64 {
	return c.step
}

// Reset returns the phase accumulator and retained sample to their initial
// values, as after construction.
func (c *Converter) Reset() {
	c.phase = 0
	c.prev = 0
	c.pending = 0
}
