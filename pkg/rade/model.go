package rade

import (
	"fmt"

	"radaerx/pkg/onnx"
)

// Model tensor names, fixed by the export script that produced the
// .onnx file.
const (
	inputName       = "rx_in"        // [1, chunkSamples, 2] float32 I/Q
	featuresOutName = "features_out" // [1, nFrames, NumFeatures] float32
	syncOutName     = "sync"         // [1] float32, > 0.5 means locked
	snrOutName      = "snr_db"       // [1] float32
	offsetOutName   = "freq_offset"  // [1] float32 Hz
)

// chunkSamples is one modem frame of analytic samples at the 8 kHz
// radio rate: 120 ms, yielding up to 12 feature frames per evaluation.
const chunkSamples = 960

// ModelDecoder is the ONNX-backed FeatureDecoder.
type ModelDecoder struct {
	session *onnx.Session
	iq      []float32 // pinned input buffer, reused across Decode calls
}

var _ FeatureDecoder = (*ModelDecoder)(nil)

// NewModelDecoder loads the receiver model from an .onnx file.
func NewModelDecoder(env *onnx.Env, path string) (*ModelDecoder, error) {
	session, err := env.NewSessionFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("rade: %w", err)
	}
	return &ModelDecoder{
		session: session,
		iq:      make([]float32, 2*chunkSamples),
	}, nil
}

// ChunkSamples implements FeatureDecoder.
func (d *ModelDecoder) ChunkSamples() int { return chunkSamples }

// Decode implements FeatureDecoder. It runs one model evaluation over a
// full chunk of interleaved I/Q samples.
func (d *ModelDecoder) Decode(iq []float32) ([][]float32, Telemetry, error) {
	if len(iq) != 2*chunkSamples {
		return nil, Telemetry{}, fmt.Errorf("rade: chunk is %d values, want %d", len(iq), 2*chunkSamples)
	}
	copy(d.iq, iq)

	input, err := onnx.NewTensor([]int64{1, chunkSamples, 2}, d.iq)
	if err != nil {
		return nil, Telemetry{}, err
	}
	defer input.Close()

	outputs, err := d.session.Run(
		[]string{inputName}, []*onnx.Tensor{input},
		[]string{featuresOutName, syncOutName, snrOutName, offsetOutName},
	)
	if err != nil {
		return nil, Telemetry{}, err
	}
	defer func() {
		for _, t := range outputs {
			t.Close()
		}
	}()

	var tel Telemetry
	if v, err := scalar(outputs[1]); err != nil {
		return nil, Telemetry{}, err
	} else {
		tel.Synced = v > 0.5
	}
	if tel.SNRdB, err = scalar(outputs[2]); err != nil {
		return nil, Telemetry{}, err
	}
	if tel.FreqOffsetHz, err = scalar(outputs[3]); err != nil {
		return nil, Telemetry{}, err
	}

	flat, err := outputs[0].FloatData()
	if err != nil {
		return nil, Telemetry{}, err
	}
	if len(flat)%NumFeatures != 0 {
		return nil, Telemetry{}, fmt.Errorf("rade: features output has %d values, not a multiple of %d", len(flat), NumFeatures)
	}

	frames := make([][]float32, 0, len(flat)/NumFeatures)
	for off := 0; off < len(flat); off += NumFeatures {
		frames = append(frames, flat[off:off+NumFeatures:off+NumFeatures])
	}
	return frames, tel, nil
}

// Close releases the model session.
func (d *ModelDecoder) Close() error {
	return d.session.Close()
}

// scalar reads a single-element tensor.
func scalar(t *onnx.Tensor) (float32, error) {
	data, err := t.FloatData()
	if err != nil {
		return 0, err
	}
	if len(data) != 1 {
		return 0, fmt.Errorf("rade: expected scalar output, got %d values", len(data))
	}
	return data[0], nil
}
