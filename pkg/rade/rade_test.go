package rade

import (
	"testing"
)

// stubDecoder emits one frame per chunk, stamped with the chunk index,
// and replays a scripted telemetry sequence.
type stubDecoder struct {
	chunk  int
	calls  int
	script []Telemetry // telemetry per call; last entry repeats
	chunks [][]float32 // copy of every chunk received
}

func (s *stubDecoder) ChunkSamples() int { return s.chunk }

func (s *stubDecoder) Decode(iq []float32) ([][]float32, Telemetry, error) {
	cp := make([]float32, len(iq))
	copy(cp, iq)
	s.chunks = append(s.chunks, cp)

	tel := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		tel = s.script[s.calls]
	}
	s.calls++

	frame := make([]float32, NumFeatures)
	frame[0] = float32(s.calls)
	return [][]float32{frame}, tel, nil
}

func (s *stubDecoder) Close() error { return nil }

func TestReceiverChunking(t *testing.T) {
	dec := &stubDecoder{chunk: 4, script: []Telemetry{{Synced: true, SNRdB: 10}}}
	r := NewReceiver(dec)

	var frames [][]float32
	var err error

	t.Run("no call before a full chunk", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			frames, err = r.Push(frames, float32(i), -float32(i))
			if err != nil {
				t.Fatal(err)
			}
		}
		if dec.calls != 0 {
			t.Errorf("model called after 3 of 4 samples")
		}
		if len(frames) != 0 {
			t.Errorf("got %d frames before a full chunk", len(frames))
		}
	})

	t.Run("fourth sample triggers decode", func(t *testing.T) {
		frames, err = r.Push(frames, 3, -3)
		if err != nil {
			t.Fatal(err)
		}
		if dec.calls != 1 {
			t.Fatalf("model calls = %d, want 1", dec.calls)
		}
		if len(frames) != 1 {
			t.Fatalf("frames = %d, want 1", len(frames))
		}
	})

	t.Run("chunk is interleaved I/Q in order", func(t *testing.T) {
		want := []float32{0, 0, 1, -1, 2, -2, 3, -3}
		got := dec.chunks[0]
		if len(got) != len(want) {
			t.Fatalf("chunk len = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk[%d] = %f, want %f", i, got[i], want[i])
			}
		}
	})
}

func TestReceiverFrameOrder(t *testing.T) {
	dec := &stubDecoder{chunk: 2, script: []Telemetry{{Synced: true}}}
	r := NewReceiver(dec)

	var frames [][]float32
	var err error
	for i := 0; i < 10; i++ {
		frames, err = r.Push(frames, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
	}

	if len(frames) != 5 {
		t.Fatalf("frames = %d, want 5", len(frames))
	}
	for i, f := range frames {
		if f[0] != float32(i+1) {
			t.Errorf("frame %d carries stamp %f, want %d: reordered", i, f[0], i+1)
		}
	}
}

func TestReceiverTelemetry(t *testing.T) {
	dec := &stubDecoder{chunk: 1, script: []Telemetry{
		{Synced: true, SNRdB: 12.5, FreqOffsetHz: -20},
		{Synced: false, SNRdB: 12.5, FreqOffsetHz: -20}, // model may leave stale estimates
		{Synced: true, SNRdB: 3, FreqOffsetHz: 5},
	}}
	r := NewReceiver(dec)

	if tel := r.Telemetry(); tel.Synced || tel.SNRdB != 0 {
		t.Errorf("telemetry before first chunk = %+v, want zero value", tel)
	}

	push := func() {
		if _, err := r.Push(nil, 0, 0); err != nil {
			t.Fatal(err)
		}
	}

	push()
	if tel := r.Telemetry(); !tel.Synced || tel.SNRdB != 12.5 || tel.FreqOffsetHz != -20 {
		t.Errorf("synced telemetry = %+v", tel)
	}

	push()
	tel := r.Telemetry()
	if tel.Synced {
		t.Error("still synced after desync")
	}
	if tel.SNRdB != 0 || tel.FreqOffsetHz != 0 {
		t.Errorf("stale estimates survive desync: %+v", tel)
	}

	push()
	if tel := r.Telemetry(); !tel.Synced || tel.SNRdB != 3 || tel.FreqOffsetHz != 5 {
		t.Errorf("telemetry after re-lock = %+v", tel)
	}
}

func TestReceiverReset(t *testing.T) {
	dec := &stubDecoder{chunk: 4, script: []Telemetry{{Synced: true, SNRdB: 9}}}
	r := NewReceiver(dec)

	for i := 0; i < 6; i++ { // one full chunk plus two pending samples
		if _, err := r.Push(nil, 1, 1); err != nil {
			t.Fatal(err)
		}
	}
	r.Reset()

	if tel := r.Telemetry(); tel != (Telemetry{}) {
		t.Errorf("telemetry after Reset = %+v", tel)
	}

	// The two pre-Reset pending samples must not leak into the next chunk.
	for i := 0; i < 3; i++ {
		if _, err := r.Push(nil, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	if dec.calls != 1 {
		t.Errorf("model calls = %d, want 1: pending samples leaked across Reset", dec.calls)
	}
}
