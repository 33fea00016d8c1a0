// Package dsp implements the sample-domain stages of the receive pipeline:
// the analytic-signal (Hilbert) filter and the fractional-phase rate
// converter. Both are single-owner streaming transforms; neither allocates
// per call and neither is safe for concurrent use.
package dsp

import (
	"math"
)

// HilbertTaps is the FIR length of the analytic-signal filter. Must be odd
// so the quadrature branch has an integer group delay.
const HilbertTaps = 127

// HilbertDelay is the group delay of the filter in samples, (taps-1)/2.
const HilbertDelay = (HilbertTaps - 1) / 2

// AnalyticFilter converts a real sample stream into an analytic (I/Q)
// stream. The in-phase output is the input delayed by HilbertDelay samples
// via a parallel delay line, so both branches are time-aligned.
type AnalyticFilter struct {
	coeffs [HilbertTaps]float32

	hist    [HilbertTaps]float32 // circular FIR history
	histPos int

	delay    [HilbertTaps]float32 // real-branch delay line
	delayPos int
}

// NewAnalyticFilter creates a filter with a Hamming-windowed ideal Hilbert
// response. Coefficients are fixed for the life of the filter: zero at even
// taps, odd-symmetric about the center.
func NewAnalyticFilter() *AnalyticFilter {
	f := &AnalyticFilter{}
	for j := 0; j < HilbertTaps; j++ {
		k := j - HilbertDelay
		if k%2 == 0 {
			continue
		}
		ideal := 2.0 / (math.Pi * float64(k))
		f.coeffs[j] = float32(ideal * hamming(HilbertTaps, j))
	}
	return f
}

// hamming returns the Hamming window value at index j of a size-tap window.
func hamming(size, j int) float64 {
	return 0.53836 - 0.46164*math.Cos(float64(j)*2*math.Pi/float64(size-1))
}

// Process pushes one real sample and returns the time-aligned analytic pair:
// the input delayed by HilbertDelay samples, and its Hilbert transform.
func (f *AnalyticFilter) Process(sample float32) (inphase, quadrature float32) {
	f.hist[f.histPos] = sample

	// Convolve the coefficient set against the history, newest sample first.
	var acc float32
	idx := f.histPos
	for j := 0; j < HilbertTaps; j++ {
		acc += f.coeffs[j] * f.hist[idx]
		idx--
		if idx < 0 {
			idx = HilbertTaps - 1
		}
	}

	f.histPos++
	if f.histPos == HilbertTaps {
		f.histPos = 0
	}

	// Real branch: write, then read the sample HilbertDelay positions back.
	f.delay[f.delayPos] = sample
	rd := f.delayPos - HilbertDelay
	if rd < 0 {
		rd += HilbertTaps
	}
	inphase = f.delay[rd]
	f.delayPos++
	if f.delayPos == HilbertTaps {
		f.delayPos = 0
	}

	return inphase, acc
}

// Reset zeroes the filter history and delay line, returning the filter to
// its initial state.
func (f *AnalyticFilter) Reset() {
	f.hist = [HilbertTaps]float32{}
	f.delay = [HilbertTaps]float32{}
	f.histPos = 0
	f.delayPos = 0
}
