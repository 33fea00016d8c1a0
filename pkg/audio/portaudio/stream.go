package portaudio

/*
#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// Wrapper functions using void* to avoid CGO type issues with PaStream
static PaError pa_open_stream(void **stream,
                              const PaStreamParameters *inputParams,
                              const PaStreamParameters *outputParams,
                              double sampleRate,
                              unsigned long framesPerBuffer,
                              PaStreamFlags streamFlags) {
    return Pa_OpenStream((PaStream**)stream, inputParams, outputParams, sampleRate,
                         framesPerBuffer, streamFlags, NULL, NULL);
}

static PaError pa_start_stream(void *stream) {
    return Pa_StartStream((PaStream*)stream);
}

static PaError pa_abort_stream(void *stream) {
    return Pa_AbortStream((PaStream*)stream);
}

static int pa_is_stream_active(void *stream) {
    return Pa_IsStreamActive((PaStream*)stream) == 1;
}

static PaError pa_close_stream(void *stream) {
    return Pa_CloseStream((PaStream*)stream);
}

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}

static PaError pa_write_stream(void *stream, const void *buffer, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buffer, frames);
}

static int pa_is_format_supported(const PaStreamParameters *inputParams,
                                  const PaStreamParameters *outputParams,
                                  double sampleRate) {
    return Pa_IsFormatSupported(inputParams, outputParams, sampleRate) == paFormatIsSupported;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// StreamParams configures one direction of blocking device I/O.
type StreamParams struct {
	Device          *DeviceInfo
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
}

func (p StreamParams) validate(maxChannels int) error {
	if p.Device == nil {
		return errors.New("portaudio: no device")
	}
	if p.Channels < 1 || p.Channels > maxChannels {
		return fmt.Errorf("portaudio: device %q supports %d channels, requested %d",
			p.Device.Name, maxChannels, p.Channels)
	}
	if p.SampleRate <= 0 || p.FramesPerBuffer <= 0 {
		return fmt.Errorf("portaudio: invalid stream params: rate %v, frames %d",
			p.SampleRate, p.FramesPerBuffer)
	}
	return nil
}

// stream is the shared core of InputStream and OutputStream: one
// PortAudio blocking stream plus a C-side transfer buffer sized for one
// block.
//
// Abort intentionally bypasses the mutex: its whole purpose is to cut
// short a Read or Write that currently holds it. PortAudio permits
// Pa_AbortStream concurrently with a blocking call on the same stream.
type stream struct {
	ptr     unsafe.Pointer
	buf     unsafe.Pointer // C-allocated, frames*channels int16 values
	values  int            // frames * channels
	frames  int
	aborted atomic.Bool
	closed  atomic.Bool

	mu sync.Mutex // serializes blocking device calls
}

func openStream(p StreamParams, input bool) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(p.Device.Index))
	if info == nil {
		return nil, fmt.Errorf("portaudio: device %d vanished", p.Device.Index)
	}

	params := &C.PaStreamParameters{
		device:                    C.PaDeviceIndex(p.Device.Index),
		channelCount:              C.int(p.Channels),
		sampleFormat:              C.paInt16,
		hostApiSpecificStreamInfo: nil,
	}

	var inputParams, outputParams *C.PaStreamParameters
	if input {
		params.suggestedLatency = info.defaultLowInputLatency
		inputParams = params
	} else {
		params.suggestedLatency = info.defaultLowOutputLatency
		outputParams = params
	}

	if C.pa_is_format_supported(inputParams, outputParams, C.double(p.SampleRate)) == 0 {
		return nil, fmt.Errorf("portaudio: device %q does not support %d ch @ %v Hz",
			p.Device.Name, p.Channels, p.SampleRate)
	}

	var ptr unsafe.Pointer
	if err := paError(C.pa_open_stream(
		&ptr, inputParams, outputParams,
		C.double(p.SampleRate), C.ulong(p.FramesPerBuffer), C.paClipOff,
	)); err != nil {
		return nil, err
	}

	values := p.FramesPerBuffer * p.Channels
	return &stream{
		ptr:    ptr,
		buf:    C.malloc(C.size_t(values * 2)),
		values: values,
		frames: p.FramesPerBuffer,
	}, nil
}

func (s *stream) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return errors.New("portaudio: stream closed")
	}
	s.aborted.Store(false)
	if C.pa_is_stream_active(s.ptr) == 1 {
		return nil
	}
	return paError(C.pa_start_stream(s.ptr))
}

// abort discards pending I/O and stops the stream, unblocking any
// in-flight Read or Write. Safe to call from any goroutine.
func (s *stream) abort() error {
	if s.closed.Load() {
		return nil
	}
	s.aborted.Store(true)
	return paError(C.pa_abort_stream(s.ptr))
}

func (s *stream) close() error {
	if s.closed.Swap(true) {
		return nil
	}

	// Unblock any in-flight call before taking the mutex it holds.
	s.aborted.Store(true)
	C.pa_abort_stream(s.ptr)

	s.mu.Lock()
	defer s.mu.Unlock()
	err := paError(C.pa_close_stream(s.ptr))
	C.free(s.buf)
	return err
}

// mapErr folds the aborted flag into the error from a blocking call: a
// read cut short by abort reports ErrAborted, whatever code the
// underlying call returned with.
func (s *stream) mapErr(err error) error {
	if s.aborted.Load() {
		return ErrAborted
	}
	return err
}

// InputStream captures int16 audio from a specific device.
type InputStream struct {
	s        *stream
	channels int
}

// OpenInput opens and starts a capture stream on the given device.
func OpenInput(p StreamParams) (*InputStream, error) {
	if err := p.validate(p.Device.MaxInputChannels); err != nil {
		return nil, err
	}
	s, err := openStream(p, true)
	if err != nil {
		return nil, err
	}
	if err := s.start(); err != nil {
		s.close()
		return nil, err
	}
	return &InputStream{s: s, channels: p.Channels}, nil
}

// Read blocks until one full block is captured and copies it into buf
// as interleaved int16 values. buf must hold FramesPerBuffer*Channels
// values. Returns ErrInputOverflow for a recoverable overrun (the data
// in buf is still valid) and ErrAborted when cut short by Abort.
func (is *InputStream) Read(buf []int16) error {
	if len(buf) < is.s.values {
		return fmt.Errorf("portaudio: read buffer holds %d values, need %d", len(buf), is.s.values)
	}

	is.s.mu.Lock()
	defer is.s.mu.Unlock()
	if is.s.closed.Load() {
		return errors.New("portaudio: stream closed")
	}

	err := paError(C.pa_read_stream(is.s.ptr, is.s.buf, C.ulong(is.s.frames)))
	if err != nil && !errors.Is(err, ErrInputOverflow) {
		return is.s.mapErr(err)
	}
	C.memcpy(unsafe.Pointer(&buf[0]), is.s.buf, C.size_t(is.s.values*2))
	return err
}

// Channels returns the stream's channel count.
func (is *InputStream) Channels() int { return is.channels }

// Start (re)starts a stream previously stopped by Abort.
func (is *InputStream) Start() error { return is.s.start() }

// Abort discards pending capture and unblocks any in-flight Read.
func (is *InputStream) Abort() error { return is.s.abort() }

// Close aborts and releases the stream.
func (is *InputStream) Close() error { return is.s.close() }

// OutputStream plays int16 audio on a specific device.
type OutputStream struct {
	s        *stream
	channels int
}

// OpenOutput opens and starts a playback stream on the given device.
func OpenOutput(p StreamParams) (*OutputStream, error) {
	if err := p.validate(p.Device.MaxOutputChannels); err != nil {
		return nil, err
	}
	s, err := openStream(p, false)
	if err != nil {
		return nil, err
	}
	if err := s.start(); err != nil {
		s.close()
		return nil, err
	}
	return &OutputStream{s: s, channels: p.Channels}, nil
}

// Write blocks until the samples are queued for playback. samples must
// be interleaved, a whole number of frames, and at most
// FramesPerBuffer*Channels values. Returns ErrOutputUnderflow for a
// recoverable underrun.
func (os *OutputStream) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	if len(samples) > os.s.values || len(samples)%os.channels != 0 {
		return fmt.Errorf("portaudio: write of %d values, want a multiple of %d up to %d",
			len(samples), os.channels, os.s.values)
	}

	os.s.mu.Lock()
	defer os.s.mu.Unlock()
	if os.s.closed.Load() {
		return errors.New("portaudio: stream closed")
	}

	C.memcpy(os.s.buf, unsafe.Pointer(&samples[0]), C.size_t(len(samples)*2))
	err := paError(C.pa_write_stream(os.s.ptr, os.s.buf, C.ulong(len(samples)/os.channels)))
	if err != nil && !errors.Is(err, ErrOutputUnderflow) {
		return os.s.mapErr(err)
	}
	return err
}

// Channels returns the stream's channel count.
func (os *OutputStream) Channels() int { return os.channels }

// Start (re)starts a stream previously stopped by Abort.
func (os *OutputStream) Start() error { return os.s.start() }

// Abort discards pending playback and unblocks any in-flight Write.
func (os *OutputStream) Abort() error { return os.s.abort() }

// Close aborts and releases the stream.
func (os *OutputStream) Close() error { return os.s.close() }
