package fargan

import (
	"fmt"

	"radaerx/pkg/onnx"
)

// Model tensor names and the recurrent state width, fixed by the export
// script that produced the .onnx file. The graph renders one frame per
// run and threads its internal state through explicit tensors.
const (
	featuresInName = "features"  // [1, 1, NumFeatures] float32
	stateInName    = "state_in"  // [1, stateSize] float32
	pcmOutName     = "pcm"       // [1, FrameSamples] float32
	stateOutName   = "state_out" // [1, stateSize] float32

	stateSize = 1152
)

// ModelSynthesizer is the ONNX-backed FrameSynthesizer.
type ModelSynthesizer struct {
	session *onnx.Session
	state   []float32 // recurrent state, carried between runs
	feat    []float32 // pinned input buffer, reused across runs
}

var _ FrameSynthesizer = (*ModelSynthesizer)(nil)

// NewModelSynthesizer loads the vocoder model from an .onnx file. The
// recurrent state starts at zero; Prime builds real context before the
// first synthesis.
func NewModelSynthesizer(env *onnx.Env, path string) (*ModelSynthesizer, error) {
	session, err := env.NewSessionFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("fargan: %w", err)
	}
	return &ModelSynthesizer{
		session: session,
		state:   make([]float32, stateSize),
		feat:    make([]float32, NumFeatures),
	}, nil
}

// Prime implements FrameSynthesizer: it runs the model over the warm-up
// frames in order, keeping the state and discarding the audio.
func (m *ModelSynthesizer) Prime(frames [][]float32) error {
	if len(frames) != WarmupFrames {
		return fmt.Errorf("fargan: prime with %d frames, want %d", len(frames), WarmupFrames)
	}
	for _, f := range frames {
		if _, err := m.run(f); err != nil {
			return err
		}
	}
	return nil
}

// Synthesize implements FrameSynthesizer.
func (m *ModelSynthesizer) Synthesize(dst []float32, frame []float32) ([]float32, error) {
	pcm, err := m.run(frame)
	if err != nil {
		return dst, err
	}
	if len(pcm) != FrameSamples {
		return dst, fmt.Errorf("fargan: model produced %d samples, want %d", len(pcm), FrameSamples)
	}
	return append(dst, pcm...), nil
}

// run performs one model evaluation, advancing the recurrent state.
func (m *ModelSynthesizer) run(frame []float32) ([]float32, error) {
	if len(frame) != NumFeatures {
		return nil, fmt.Errorf("fargan: frame has %d values, want %d", len(frame), NumFeatures)
	}
	copy(m.feat, frame)

	input, err := onnx.NewTensor([]int64{1, 1, NumFeatures}, m.feat)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	stateIn, err := onnx.NewTensor([]int64{1, stateSize}, m.state)
	if err != nil {
		return nil, err
	}
	defer stateIn.Close()

	outputs, err := m.session.Run(
		[]string{featuresInName, stateInName},
		[]*onnx.Tensor{input, stateIn},
		[]string{pcmOutName, stateOutName},
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, t := range outputs {
			t.Close()
		}
	}()

	next, err := outputs[1].FloatData()
	if err != nil {
		return nil, err
	}
	if len(next) != stateSize {
		return nil, fmt.Errorf("fargan: state output has %d values, want %d", len(next), stateSize)
	}
	copy(m.state, next)

	return outputs[0].FloatData()
}

// Close releases the model session.
func (m *ModelSynthesizer) Close() error {
	return m.session.Close()
}
