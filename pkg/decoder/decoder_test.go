package decoder

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"radaerx/pkg/fargan"
	"radaerx/pkg/rade"
)

// stubSource serves a fixed number of deterministic blocks per start,
// then blocks until aborted, mimicking a device with no more data due
// yet. fill writes block n; nil means silence.
type stubSource struct {
	blocksPerRun int
	fill         func(buf []int16, n int)

	mu      sync.Mutex
	abort   chan struct{}
	reads   int
	blocked atomic.Int32 // times Read parked waiting for Abort
	closed  bool

	readErrs []error // scripted errors returned before any data flows
}

func newStubSource(blocksPerRun int) *stubSource {
	return &stubSource{blocksPerRun: blocksPerRun, abort: make(chan struct{})}
}

func (s *stubSource) Read(buf []int16) error {
	s.mu.Lock()
	abort := s.abort
	if len(s.readErrs) > 0 {
		err := s.readErrs[0]
		s.readErrs = s.readErrs[1:]
		s.mu.Unlock()
		return err
	}
	s.reads++
	n := s.reads
	fill := s.fill
	s.mu.Unlock()

	if n > s.blocksPerRun {
		s.blocked.Add(1)
		<-abort
		return ErrAborted
	}
	select {
	case <-abort:
		return ErrAborted
	default:
	}

	for i := range buf {
		buf[i] = 0
	}
	if fill != nil {
		fill(buf, n)
	}
	return nil
}

func (s *stubSource) Channels() int   { return 1 }
func (s *stubSource) SampleRate() int { return 44100 }

func (s *stubSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abort = make(chan struct{})
	s.reads = 0
	return nil
}

func (s *stubSource) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.abort:
	default:
		close(s.abort)
	}
	return nil
}

func (s *stubSource) Close() error {
	s.Abort()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// stubSink swallows playback and counts it.
type stubSink struct {
	writes atomic.Int32
	closed atomic.Bool
}

func (s *stubSink) Write(buf []int16) error { s.writes.Add(1); return nil }
func (s *stubSink) Channels() int           { return 2 }
func (s *stubSink) SampleRate() int         { return 44100 }
func (s *stubSink) Start() error            { return nil }
func (s *stubSink) Abort() error            { return nil }
func (s *stubSink) Close() error            { s.closed.Store(true); return nil }

// quietDecoder records every chunk it is offered and stays unsynced,
// emitting no frames.
type quietDecoder struct {
	chunk  int
	mu     sync.Mutex
	chunks [][]float32
}

func (d *quietDecoder) ChunkSamples() int { return d.chunk }

func (d *quietDecoder) Decode(iq []float32) ([][]float32, rade.Telemetry, error) {
	cp := make([]float32, len(iq))
	copy(cp, iq)
	d.mu.Lock()
	d.chunks = append(d.chunks, cp)
	d.mu.Unlock()
	return nil, rade.Telemetry{}, nil
}

func (d *quietDecoder) Close() error { return nil }

func (d *quietDecoder) chunkCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.chunks)
}

type silentSynth struct{}

func (silentSynth) Prime(frames [][]float32) error { return nil }
func (silentSynth) Synthesize(dst []float32, frame []float32) ([]float32, error) {
	for i := 0; i < fargan.FrameSamples; i++ {
		dst = append(dst, 0)
	}
	return dst, nil
}
func (silentSynth) Close() error { return nil }

// testPipeline wires a pipeline to the given stubs.
func testPipeline(t *testing.T, src *stubSource, snk *stubSink, dec rade.FeatureDecoder) *Pipeline {
	t.Helper()
	p, err := New(Config{
		OpenSource:          func(string, int, int) (Source, error) { return src, nil },
		OpenSink:            func(string, int, int) (Sink, error) { return snk, nil },
		NewFeatureDecoder:   func() (rade.FeatureDecoder, error) { return dec, nil },
		NewFrameSynthesizer: func() (fargan.FrameSynthesizer, error) { return silentSynth{}, nil },
		Logger:              slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPipelineSilentInput(t *testing.T) {
	src := newStubSource(10)
	snk := &stubSink{}
	dec := &quietDecoder{chunk: 960}
	p := testPipeline(t, src, snk, dec)
	defer p.Close()

	if err := p.Open("in", "out"); err != nil {
		t.Fatal(err)
	}
	p.Start()

	waitFor(t, "all blocks consumed", func() bool { return src.blocked.Load() > 0 })

	st := p.Status()
	if !st.Running() {
		t.Error("running = false while mid-run")
	}
	if st.OutputLevel() != 0 {
		t.Errorf("output level = %f on silent input, want 0", st.OutputLevel())
	}
	if st.Synced() {
		t.Error("synced = true on silent input")
	}

	p.Stop()
	snap := p.Status().Snapshot()
	if snap != (Snapshot{}) {
		t.Errorf("status after Stop = %+v, want idle zero values", snap)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	src := newStubSource(1)
	p := testPipeline(t, src, &stubSink{}, &quietDecoder{chunk: 960})
	defer p.Close()

	if err := p.Open("in", "out"); err != nil {
		t.Fatal(err)
	}
	p.Start()
	p.Stop()

	done := make(chan struct{})
	go func() {
		p.Stop()
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop on a stopped pipeline blocked")
	}
}

func TestStartRequiresOpen(t *testing.T) {
	p := testPipeline(t, newStubSource(1), &stubSink{}, &quietDecoder{chunk: 960})
	p.Start() // must be a silent no-op
	if p.Status().Running() {
		t.Error("running = true without Open")
	}
}

func TestOpenTwiceClosesFirstSession(t *testing.T) {
	src1 := newStubSource(1)
	snk1 := &stubSink{}
	src2 := newStubSource(1)
	snk2 := &stubSink{}

	sources := []Source{src1, src2}
	sinks := []Sink{snk1, snk2}
	p, err := New(Config{
		OpenSource: func(string, int, int) (Source, error) {
			s := sources[0]
			sources = sources[1:]
			return s, nil
		},
		OpenSink: func(string, int, int) (Sink, error) {
			s := sinks[0]
			sinks = sinks[1:]
			return s, nil
		},
		NewFeatureDecoder:   func() (rade.FeatureDecoder, error) { return &quietDecoder{chunk: 960}, nil },
		NewFrameSynthesizer: func() (fargan.FrameSynthesizer, error) { return silentSynth{}, nil },
		Logger:              slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Open("a", "b"); err != nil {
		t.Fatal(err)
	}
	p.Start()
	if err := p.Open("c", "d"); err != nil {
		t.Fatal(err)
	}

	src1.mu.Lock()
	closed := src1.closed
	src1.mu.Unlock()
	if !closed {
		t.Error("first source not closed by second Open")
	}
	if !snk1.closed.Load() {
		t.Error("first sink not closed by second Open")
	}

	p.Start()
	waitFor(t, "second session processing", func() bool { return src2.blocked.Load() > 0 })
}

func TestStopStartResetsStreamState(t *testing.T) {
	src := newStubSource(1)
	src.fill = func(buf []int16, n int) {
		for i := range buf {
			buf[i] = int16((i*37 + n*1000) % 20000)
		}
	}
	dec := &quietDecoder{chunk: 16}
	p := testPipeline(t, src, &stubSink{}, dec)
	defer p.Close()

	if err := p.Open("in", "out"); err != nil {
		t.Fatal(err)
	}

	p.Start()
	waitFor(t, "first run", func() bool { return src.blocked.Load() > 0 })
	p.Stop()
	firstRun := dec.chunkCount()
	if firstRun == 0 {
		t.Fatal("no chunks decoded in first run")
	}

	p.Start()
	waitFor(t, "second run", func() bool { return src.blocked.Load() > 1 })
	p.Stop()

	if dec.chunkCount() < 2*firstRun {
		t.Fatalf("second run decoded %d chunks, first decoded %d", dec.chunkCount()-firstRun, firstRun)
	}

	// Identical input through reset filter, resampler and receiver
	// buffers must yield identical chunks.
	first := dec.chunks[0]
	second := dec.chunks[firstRun]
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk value %d differs after stop/start: %f vs %f — state leaked", i, first[i], second[i])
		}
	}
}

func TestTransientReadFaultsAreRetried(t *testing.T) {
	src := newStubSource(3)
	src.readErrs = []error{ErrTransient, ErrTransient, ErrTransient}
	dec := &quietDecoder{chunk: 960}
	p := testPipeline(t, src, &stubSink{}, dec)
	defer p.Close()

	if err := p.Open("in", "out"); err != nil {
		t.Fatal(err)
	}
	p.Start()

	waitFor(t, "loop to ride out the faults", func() bool { return src.blocked.Load() > 0 })
	if !p.Status().Running() {
		t.Error("loop died on transient faults")
	}
	p.Stop()
}

func TestFaultBudgetExhaustionStopsLoop(t *testing.T) {
	src := newStubSource(0)
	for i := 0; i < faultBudget+5; i++ {
		src.readErrs = append(src.readErrs, ErrTransient)
	}

	var loopErr atomic.Value
	p, err := New(Config{
		OpenSource:          func(string, int, int) (Source, error) { return src, nil },
		OpenSink:            func(string, int, int) (Sink, error) { return &stubSink{}, nil },
		NewFeatureDecoder:   func() (rade.FeatureDecoder, error) { return &quietDecoder{chunk: 960}, nil },
		NewFrameSynthesizer: func() (fargan.FrameSynthesizer, error) { return silentSynth{}, nil },
		OnLoopExit:          func(err error) { loopErr.Store(err) },
		Logger:              slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Open("in", "out"); err != nil {
		t.Fatal(err)
	}
	p.Start()

	waitFor(t, "loop exit", func() bool { return !p.Status().Running() })
	got, _ := loopErr.Load().(error)
	if got == nil || !errors.Is(got, ErrTransient) {
		t.Errorf("loop exit error = %v, want wrapped ErrTransient", got)
	}
}

func TestOpenFailureLeavesPipelineClosed(t *testing.T) {
	p, err := New(Config{
		OpenSource:          func(string, int, int) (Source, error) { return nil, errors.New("no such device") },
		OpenSink:            func(string, int, int) (Sink, error) { return &stubSink{}, nil },
		NewFeatureDecoder:   func() (rade.FeatureDecoder, error) { return &quietDecoder{chunk: 960}, nil },
		NewFrameSynthesizer: func() (fargan.FrameSynthesizer, error) { return silentSynth{}, nil },
		Logger:              slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Open("bad", "out"); err == nil {
		t.Fatal("Open succeeded with a failing source")
	}
	p.Start()
	if p.Status().Running() {
		t.Error("goroutine started after failed Open")
	}
}
