package decoder

import (
	"errors"
	"fmt"

	"radaerx/pkg/audio/portaudio"
)

// deviceSource adapts a PortAudio capture stream to Source, translating
// its fault sentinels into the pipeline's taxonomy.
type deviceSource struct {
	st   *portaudio.InputStream
	rate int
}

// OpenCaptureDevice resolves id against the available capture devices
// (substring match, or the default device for an empty id) and opens a
// blocking stream on it. Mono is preferred; stereo devices are opened
// with two channels and collapsed downstream.
func OpenCaptureDevice(id string, rate, blockFrames int) (Source, error) {
	dev, err := portaudio.FindInputDevice(id)
	if err != nil {
		return nil, err
	}

	channels := 1
	if dev.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %q has no capture channels", dev.Name)
	}
	if dev.MaxInputChannels > 1 {
		channels = 2
	}

	st, err := portaudio.OpenInput(portaudio.StreamParams{
		Device:          dev,
		Channels:        channels,
		SampleRate:      float64(rate),
		FramesPerBuffer: blockFrames,
	})
	if err != nil {
		// The usual cause on a fresh system is device permissions.
		return nil, fmt.Errorf("%w (is the device in use, or access denied?)", err)
	}
	return &deviceSource{st: st, rate: rate}, nil
}

func (d *deviceSource) Read(buf []int16) error { return mapDeviceErr(d.st.Read(buf)) }
func (d *deviceSource) Channels() int          { return d.st.Channels() }
func (d *deviceSource) SampleRate() int        { return d.rate }
func (d *deviceSource) Start() error           { return d.st.Start() }
func (d *deviceSource) Abort() error           { return d.st.Abort() }
func (d *deviceSource) Close() error           { return d.st.Close() }

// deviceSink adapts a PortAudio playback stream to Sink.
type deviceSink struct {
	st   *portaudio.OutputStream
	rate int
}

// OpenPlaybackDevice is the playback counterpart of OpenCaptureDevice.
func OpenPlaybackDevice(id string, rate, blockFrames int) (Sink, error) {
	dev, err := portaudio.FindOutputDevice(id)
	if err != nil {
		return nil, err
	}

	channels := 1
	if dev.MaxOutputChannels < 1 {
		return nil, fmt.Errorf("device %q has no playback channels", dev.Name)
	}
	if dev.MaxOutputChannels > 1 {
		channels = 2
	}

	st, err := portaudio.OpenOutput(portaudio.StreamParams{
		Device:          dev,
		Channels:        channels,
		SampleRate:      float64(rate),
		FramesPerBuffer: blockFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (is the device in use, or access denied?)", err)
	}
	return &deviceSink{st: st, rate: rate}, nil
}

func (d *deviceSink) Write(buf []int16) error { return mapDeviceErr(d.st.Write(buf)) }
func (d *deviceSink) Channels() int           { return d.st.Channels() }
func (d *deviceSink) SampleRate() int         { return d.rate }
func (d *deviceSink) Start() error            { return d.st.Start() }
func (d *deviceSink) Abort() error            { return d.st.Abort() }
func (d *deviceSink) Close() error            { return d.st.Close() }

// mapDeviceErr folds PortAudio's fault sentinels into the pipeline's.
func mapDeviceErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, portaudio.ErrAborted):
		return ErrAborted
	case errors.Is(err, portaudio.ErrInputOverflow),
		errors.Is(err, portaudio.ErrOutputUnderflow):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
