// Package rade wraps the neural receiver model that turns analytic radio
// samples into vocoder feature frames plus link telemetry.
//
// The model itself is opaque: it is an exported ONNX graph loaded from
// disk, and everything this package knows about it is its call contract.
// [FeatureDecoder] captures that contract as a capability interface so
// the pipeline can be tested against deterministic stubs; [Receiver] is
// the buffering adapter the pipeline actually talks to.
package rade

import "fmt"

// NumFeatures is the length of one vocoder feature frame.
const NumFeatures = 36

// Telemetry is the link-quality estimate from one model evaluation.
type Telemetry struct {
	// Synced reports whether the model has locked onto a valid signal.
	Synced bool

	// SNRdB is the estimated signal-to-noise ratio in dB.
	SNRdB float32

	// FreqOffsetHz is the estimated carrier frequency offset in Hz.
	FreqOffsetHz float32
}

// FeatureDecoder is the capability interface over the opaque receiver
// model. Implementations consume analytic samples in fixed-size chunks
// and emit zero or more feature frames per chunk.
type FeatureDecoder interface {
	// ChunkSamples returns the number of analytic samples the model
	// consumes per Decode call. Fixed for the life of the decoder.
	ChunkSamples() int

	// Decode consumes exactly one chunk of interleaved I/Q values
	// (2*ChunkSamples floats) and returns the feature frames it
	// produced, each NumFeatures long and in signal order, plus the
	// telemetry from this evaluation. An unsynchronized model returns
	// zero frames; that is not an error.
	Decode(iq []float32) (frames [][]float32, tel Telemetry, err error)

	// Close releases the model.
	Close() error
}

// Receiver adapts the per-sample pipeline flow to the model's chunked
// call contract. It accumulates incoming analytic samples, runs the
// model whenever a full chunk is available, and republishes the most
// recent telemetry.
//
// When the model reports loss of synchronization the SNR and frequency
// offset are zeroed rather than left at their last synced values, so an
// observer never mistakes a stale estimate for a current one.
//
// Not safe for concurrent use; owned by the processing goroutine.
type Receiver struct {
	dec FeatureDecoder

	pending []float32 // interleaved I/Q awaiting a full chunk
	tel     Telemetry
}

// NewReceiver creates a receiver around the given model.
func NewReceiver(dec FeatureDecoder) *Receiver {
	return &Receiver{
		dec:     dec,
		pending: make([]float32, 0, 2*dec.ChunkSamples()),
	}
}

// Push appends one analytic sample. Whenever a full model chunk has
// accumulated it is decoded immediately, and any emitted feature frames
// are appended to dst in arrival order. The returned slice is dst
// extended, in the manner of append.
func (r *Receiver) Push(dst [][]float32, inphase, quadrature float32) ([][]float32, error) {
	r.pending = append(r.pending, inphase, quadrature)

	chunk := 2 * r.dec.ChunkSamples()
	if len(r.pending) < chunk {
		return dst, nil
	}

	frames, tel, err := r.dec.Decode(r.pending[:chunk])
	r.pending = r.pending[:0]
	if err != nil {
		return dst, fmt.Errorf("rade: decode: %w", err)
	}

	if !tel.Synced {
		tel.SNRdB = 0
		tel.FreqOffsetHz = 0
	}
	r.tel = tel

	for _, f := range frames {
		if len(f) != NumFeatures {
			return dst, fmt.Errorf("rade: model emitted %d-value frame, want %d", len(f), NumFeatures)
		}
	}
	return append(dst, frames...), nil
}

// Telemetry returns the telemetry from the most recent model
// evaluation, or the zero value before the first full chunk.
func (r *Receiver) Telemetry() Telemetry {
	return r.tel
}

// Reset discards buffered samples and telemetry. The underlying model
// is not touched.
func (r *Receiver) Reset() {
	r.pending = r.pending[:0]
	r.tel = Telemetry{}
}
