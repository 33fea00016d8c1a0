// Package fargan wraps the vocoder model that turns feature frames into
// speech samples, including the cold-start warm-up it needs before its
// output is trustworthy.
//
// Like the receiver model, the vocoder is opaque: an exported ONNX
// graph behind the [FrameSynthesizer] capability interface. [Vocoder]
// is the warm-up adapter the pipeline talks to.
package fargan

import "fmt"

const (
	// NumFeatures is the length of one feature frame.
	NumFeatures = 36

	// FrameSamples is the number of speech samples produced per feature
	// frame: 10 ms at the 16 kHz synthesis rate.
	FrameSamples = 160

	// WarmupFrames is how many initial frames the model is primed with
	// before the first synthesis call.
	WarmupFrames = 5
)

// FrameSynthesizer is the capability interface over the opaque vocoder
// model.
type FrameSynthesizer interface {
	// Prime feeds the model its initial context. Called exactly once,
	// with exactly WarmupFrames frames in arrival order, before any
	// Synthesize call.
	Prime(frames [][]float32) error

	// Synthesize renders one feature frame, appending FrameSamples
	// speech samples to dst and returning the extended slice.
	Synthesize(dst []float32, frame []float32) ([]float32, error)

	// Close releases the model.
	Close() error
}

// Vocoder drives a FrameSynthesizer through its two-phase lifecycle:
// filling, where incoming frames are buffered and no audio is produced,
// then primed, where every frame synthesizes one audio block. The
// transition happens exactly once, when the WarmupFrames-th frame
// arrives; that frame is both the last priming frame and the first one
// synthesized. Primed is terminal: a new warm-up cycle requires a new
// Vocoder.
//
// Cold-starting the model on too little context produces audible
// artifacts, so the priming cost is paid once per session instead.
//
// Not safe for concurrent use; owned by the processing goroutine.
type Vocoder struct {
	syn FrameSynthesizer

	warmup [WarmupFrames][NumFeatures]float32
	filled int
	primed bool
}

// NewVocoder creates a vocoder adapter in the filling state.
func NewVocoder(syn FrameSynthesizer) *Vocoder {
	return &Vocoder{syn: syn}
}

// Process submits one feature frame, appending any synthesized samples
// to dst. The first WarmupFrames-1 frames produce no audio.
func (v *Vocoder) Process(dst []float32, frame []float32) ([]float32, error) {
	if len(frame) != NumFeatures {
		return dst, fmt.Errorf("fargan: frame has %d values, want %d", len(frame), NumFeatures)
	}

	if v.primed {
		return v.syn.Synthesize(dst, frame)
	}

	copy(v.warmup[v.filled][:], frame)
	v.filled++
	if v.filled < WarmupFrames {
		return dst, nil
	}

	frames := make([][]float32, WarmupFrames)
	for i := range frames {
		frames[i] = v.warmup[i][:]
	}
	if err := v.syn.Prime(frames); err != nil {
		return dst, fmt.Errorf("fargan: prime: %w", err)
	}
	v.primed = true

	// The priming frame is also the first audible one.
	return v.syn.Synthesize(dst, frame)
}

// Primed reports whether warm-up has completed.
func (v *Vocoder) Primed() bool {
	return v.primed
}
