// Package decoder runs the real-time receive pipeline: device capture,
// input rate conversion, analytic-signal filtering, the neural receiver,
// vocoder synthesis, output rate conversion, and playback, all on one
// dedicated goroutine with lock-free status publication.
//
// A Pipeline is freely instantiable with an explicit lifecycle:
// Open binds devices and models for one session, Start/Stop control the
// processing goroutine, Close releases everything. Multiple independent
// pipelines can coexist, which is also what makes the loop testable
// against stub sources, sinks and models.
package decoder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"radaerx/pkg/audio/pcm"
	"radaerx/pkg/dsp"
	"radaerx/pkg/fargan"
	"radaerx/pkg/rade"
)

// Pipeline rates and block sizing.
const (
	// RadioRate is the sample rate the receiver model runs at.
	RadioRate = 8000

	// SpeechRate is the sample rate the vocoder synthesizes at.
	SpeechRate = 16000

	// DefaultDeviceRate is the capture/playback rate requested when the
	// configuration does not say otherwise.
	DefaultDeviceRate = 44100

	// DefaultBlockFrames is the device block size per loop iteration.
	DefaultBlockFrames = 512
)

// faultBudget is how many consecutive transient device faults the loop
// rides out before concluding the device is gone and exiting.
const faultBudget = 50

// Device-fault sentinels, surfaced by Source and Sink implementations.
var (
	// ErrTransient marks a recoverable device fault (buffer under- or
	// overrun). The loop logs it and retries.
	ErrTransient = errors.New("decoder: transient device fault")

	// ErrAborted marks a read or write cut short by Abort, the
	// shutdown path.
	ErrAborted = errors.New("decoder: aborted")
)

// Source delivers fixed-size blocks of interleaved int16 frames from a
// capture device. Read blocks until a full block is available; Abort
// unblocks a pending Read promptly.
type Source interface {
	Read(buf []int16) error
	Channels() int
	SampleRate() int
	Start() error
	Abort() error
	Close() error
}

// Sink accepts interleaved int16 frames for playback. Write may be
// called with any whole number of frames up to the configured block
// size.
type Sink interface {
	Write(buf []int16) error
	Channels() int
	SampleRate() int
	Start() error
	Abort() error
	Close() error
}

// Config assembles a Pipeline. Zero-value fields take the defaults
// noted on each.
type Config struct {
	// DeviceRate is the rate requested from both devices. Default
	// DefaultDeviceRate.
	DeviceRate int

	// BlockFrames is the frames read and written per loop iteration.
	// Default DefaultBlockFrames.
	BlockFrames int

	// OpenSource and OpenSink bind device identifiers to streams.
	// Default to PortAudio devices.
	OpenSource func(id string, rate, blockFrames int) (Source, error)
	OpenSink   func(id string, rate, blockFrames int) (Sink, error)

	// NewFeatureDecoder and NewFrameSynthesizer construct the two
	// models, once per session. Required.
	NewFeatureDecoder   func() (rade.FeatureDecoder, error)
	NewFrameSynthesizer func() (fargan.FrameSynthesizer, error)

	// SpeechTap, if set, observes every synthesized block at
	// SpeechRate before output conversion. Called on the processing
	// goroutine; it must not block.
	SpeechTap func(block []float32)

	// OnLoopExit, if set, is called when the loop terminates for any
	// reason other than Stop, with the fault that ended it.
	OnLoopExit func(err error)

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Pipeline is one decoder instance. Methods on it are driven by the
// owning goroutine; Status reads are safe from anywhere.
type Pipeline struct {
	cfg Config
	log *slog.Logger

	mu   sync.Mutex // lifecycle state below
	open bool
	src  Source
	snk  Sink
	dec  rade.FeatureDecoder
	syn  fargan.FrameSynthesizer

	receiver *rade.Receiver
	vocoder  *fargan.Vocoder
	filter   *dsp.AnalyticFilter
	convIn   *dsp.Converter
	convOut  *dsp.Converter

	running  bool
	stopping atomic.Bool
	done     chan struct{}

	// Loop work buffers, sized at Open and reused every iteration.
	inBuf  []int16
	mono   []float32
	radio  []float32
	frames [][]float32
	speech []float32
	outBuf []float32
	outPCM []int16
	wire   []int16

	status Status
}

// New creates a closed pipeline. Open must succeed before Start does
// anything.
func New(cfg Config) (*Pipeline, error) {
	if cfg.DeviceRate == 0 {
		cfg.DeviceRate = DefaultDeviceRate
	}
	if _, ok := pcm.FormatForRate(cfg.DeviceRate); !ok {
		return nil, fmt.Errorf("decoder: unsupported device rate %d Hz", cfg.DeviceRate)
	}
	if cfg.BlockFrames == 0 {
		cfg.BlockFrames = DefaultBlockFrames
	}
	if cfg.OpenSource == nil {
		cfg.OpenSource = OpenCaptureDevice
	}
	if cfg.OpenSink == nil {
		cfg.OpenSink = OpenPlaybackDevice
	}
	if cfg.NewFeatureDecoder == nil || cfg.NewFrameSynthesizer == nil {
		return nil, errors.New("decoder: model constructors are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		cfg: cfg,
		log: cfg.Logger.With("component", "decoder"),
	}, nil
}

// Status returns the live telemetry for this pipeline.
func (p *Pipeline) Status() *Status { return &p.status }

// Open binds the capture and playback devices and constructs both
// models for a new session. Any prior session is closed first. On any
// failure the pipeline is left fully closed: configuration errors
// surface here and no goroutine is started.
func (p *Pipeline) Open(inputID, outputID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()

	session := uuid.NewString()
	log := p.cfg.Logger.With("component", "decoder", "session", session)

	fail := func(err error) error {
		p.closeLocked()
		log.Error("open failed", "error", err)
		return err
	}

	var err error
	if p.src, err = p.cfg.OpenSource(inputID, p.cfg.DeviceRate, p.cfg.BlockFrames); err != nil {
		return fail(fmt.Errorf("decoder: open capture %q: %w", inputID, err))
	}
	if p.snk, err = p.cfg.OpenSink(outputID, p.cfg.DeviceRate, p.cfg.BlockFrames); err != nil {
		return fail(fmt.Errorf("decoder: open playback %q: %w", outputID, err))
	}
	if p.dec, err = p.cfg.NewFeatureDecoder(); err != nil {
		return fail(fmt.Errorf("decoder: receiver model: %w", err))
	}
	if p.syn, err = p.cfg.NewFrameSynthesizer(); err != nil {
		return fail(fmt.Errorf("decoder: vocoder model: %w", err))
	}

	if p.convIn, err = dsp.NewConverter(float64(p.src.SampleRate()), RadioRate); err != nil {
		return fail(err)
	}
	if p.convOut, err = dsp.NewConverter(SpeechRate, float64(p.snk.SampleRate())); err != nil {
		return fail(err)
	}
	p.filter = dsp.NewAnalyticFilter()
	p.receiver = rade.NewReceiver(p.dec)
	p.vocoder = fargan.NewVocoder(p.syn)

	p.sizeBuffers()
	p.open = true
	p.log = log
	log.Info("session open",
		"input", inputID, "output", outputID,
		"device_rate", p.cfg.DeviceRate, "block_frames", p.cfg.BlockFrames)
	return nil
}

// sizeBuffers allocates every loop buffer once per session so the loop
// itself stays allocation-free at steady state.
func (p *Pipeline) sizeBuffers() {
	block := p.cfg.BlockFrames
	p.inBuf = make([]int16, block*p.src.Channels())
	p.mono = make([]float32, 0, block)

	// Input conversion shrinks toward RadioRate but may briefly run
	// ahead by a sample; leave headroom.
	p.radio = make([]float32, 0, block+8)

	// One device block is well under a model chunk of radio samples,
	// so at most one chunk completes per iteration, bursting at most
	// a chunk's worth of feature frames.
	p.frames = make([][]float32, 0, 16)
	p.speech = make([]float32, 0, 16*fargan.FrameSamples)

	outPerSpeech := float64(p.snk.SampleRate()) / SpeechRate
	p.outBuf = make([]float32, 0, int(float64(cap(p.speech))*outPerSpeech)+16)
	p.outPCM = make([]int16, 0, block)
	p.wire = make([]int16, block*p.snk.Channels())
}

// Start launches the processing goroutine. It is a no-op if the
// pipeline is not open or already running. Per-session DSP state is
// reset so a stop/start cycle carries nothing over, except the vocoder
// warm-up, which is per-session by design.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open || p.running {
		return
	}

	p.filter.Reset()
	p.convIn.Reset()
	p.convOut.Reset()
	p.receiver.Reset()
	p.status.reset()

	p.stopping.Store(false)
	if err := p.src.Start(); err != nil {
		p.log.Error("capture start", "error", err)
		return
	}
	if err := p.snk.Start(); err != nil {
		p.log.Error("playback start", "error", err)
		return
	}

	p.done = make(chan struct{})
	p.running = true
	p.status.running.Store(true)
	go p.loop(p.done)
	p.log.Info("decoding started")
}

// Stop requests termination, unblocks any pending device I/O, joins
// the processing goroutine, and resets the status to idle. Idempotent:
// calling it on a stopped pipeline returns immediately.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pipeline) stopLocked() {
	if !p.running {
		return
	}

	p.stopping.Store(true)
	p.src.Abort()
	p.snk.Abort()
	<-p.done

	p.running = false
	p.status.reset()
	p.log.Info("decoding stopped")
}

// Close stops the pipeline and releases devices and models.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Pipeline) closeLocked() {
	p.stopLocked()

	if p.src != nil {
		p.src.Close()
		p.src = nil
	}
	if p.snk != nil {
		p.snk.Close()
		p.snk = nil
	}
	if p.dec != nil {
		p.dec.Close()
		p.dec = nil
	}
	if p.syn != nil {
		p.syn.Close()
		p.syn = nil
	}
	if p.open {
		p.log.Info("session closed")
	}
	p.open = false
}

// loop is the dedicated processing goroutine: one device block in, one
// pass through the pipeline, synthesized audio out, status published.
func (p *Pipeline) loop(done chan struct{}) {
	defer close(done)
	defer p.status.running.Store(false)

	faults := 0
	for {
		if p.stopping.Load() {
			return
		}

		err := p.src.Read(p.inBuf)
		switch {
		case err == nil:
			faults = 0
		case errors.Is(err, ErrAborted):
			return
		case errors.Is(err, ErrTransient):
			if p.stopping.Load() {
				return
			}
			faults++
			if faults > faultBudget {
				p.exitOnFault(fmt.Errorf("decoder: %d consecutive capture faults: %w", faults, err))
				return
			}
			p.log.Warn("capture fault, retrying", "error", err, "consecutive", faults)
			continue
		default:
			p.exitOnFault(fmt.Errorf("decoder: capture failed: %w", err))
			return
		}

		if err := p.process(); err != nil {
			p.exitOnFault(err)
			return
		}
	}
}

// process runs one captured block through the pipeline stages and
// publishes telemetry.
func (p *Pipeline) process() error {
	p.mono = pcm.FloatsFromInt16(p.mono[:0], p.inBuf, p.src.Channels())
	p.radio = p.convIn.Convert(p.radio[:0], p.mono)

	var err error
	p.frames = p.frames[:0]
	for _, s := range p.radio {
		inphase, quadrature := p.filter.Process(s)
		p.frames, err = p.receiver.Push(p.frames, inphase, quadrature)
		if err != nil {
			return err
		}
	}

	p.speech = p.speech[:0]
	for _, f := range p.frames {
		p.speech, err = p.vocoder.Process(p.speech, f)
		if err != nil {
			return err
		}
	}

	if p.cfg.SpeechTap != nil && len(p.speech) > 0 {
		p.cfg.SpeechTap(p.speech)
	}

	p.status.level.Store(pcm.RMS(p.speech))
	p.status.setTelemetry(p.receiver.Telemetry())

	p.playback(p.convOut.Convert(p.outBuf[:0], p.speech))
	return nil
}

// playback writes converted output to the sink in device-block-sized
// chunks, duplicating mono across the sink's channels. Write faults
// are logged and dropped: losing a playback block is preferable to
// killing the session.
func (p *Pipeline) playback(out []float32) {
	block := p.cfg.BlockFrames
	ch := p.snk.Channels()

	for off := 0; off < len(out); off += block {
		end := min(off+block, len(out))
		p.outPCM = pcm.Int16FromFloats(p.outPCM[:0], out[off:end])

		n := len(p.outPCM)
		for i, s := range p.outPCM {
			for c := 0; c < ch; c++ {
				p.wire[i*ch+c] = s
			}
		}

		if err := p.snk.Write(p.wire[:n*ch]); err != nil {
			if errors.Is(err, ErrAborted) || p.stopping.Load() {
				return
			}
			p.log.Warn("playback fault, block dropped", "error", err)
		}
	}
}

// exitOnFault reports an abnormal loop exit. Observers see it as
// running flipping false; OnLoopExit carries the cause.
func (p *Pipeline) exitOnFault(err error) {
	p.log.Error("pipeline stopped on fault", "error", err)
	if p.cfg.OnLoopExit != nil {
		p.cfg.OnLoopExit(err)
	}
}
