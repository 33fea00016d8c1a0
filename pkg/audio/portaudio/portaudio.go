// Package portaudio provides Go bindings for the PortAudio library.
//
// This package uses CGO to interface with the PortAudio C library. It
// exposes device enumeration and blocking int16 streams on a device of
// the caller's choosing, with the abort operation the decode loop needs
// to make shutdown prompt while a read is in flight.
//
// For go build: requires portaudio installed via pkg-config.
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Device-fault sentinels. Overflow and underflow are the transient
// faults of a live device under scheduling jitter: the stream stays
// usable and the call should be retried. ErrAborted marks a read or
// write cut short by Abort.
var (
	ErrInputOverflow   = errors.New("portaudio: input overflowed")
	ErrOutputUnderflow = errors.New("portaudio: output underflowed")
	ErrAborted         = errors.New("portaudio: stream aborted")
)

var (
	initOnce sync.Once
	initErr  error
)

// paError converts a PortAudio error code to a Go error.
func paError(code C.PaError) error {
	switch code {
	case C.paNoError:
		return nil
	case C.paInputOverflowed:
		return ErrInputOverflow
	case C.paOutputUnderflowed:
		return ErrOutputUnderflow
	}
	return fmt.Errorf("portaudio: %s", C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library.
// It is safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Terminate terminates the PortAudio library.
func Terminate() error {
	return paError(C.Pa_Terminate())
}

// DeviceInfo contains information about an audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// Devices returns a list of available audio devices.
func Devices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}

	defaultInput := int(C.Pa_GetDefaultInputDevice())
	defaultOutput := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
			IsDefaultOutput:   i == defaultOutput,
		})
	}
	return devices, nil
}

// FindInputDevice resolves a capture device by name substring, or the
// default input device when name is empty.
func FindInputDevice(name string) (*DeviceInfo, error) {
	return findDevice(name, func(d DeviceInfo) bool { return d.MaxInputChannels > 0 },
		func(d DeviceInfo) bool { return d.IsDefaultInput }, "input")
}

// FindOutputDevice resolves a playback device by name substring, or the
// default output device when name is empty.
func FindOutputDevice(name string) (*DeviceInfo, error) {
	return findDevice(name, func(d DeviceInfo) bool { return d.MaxOutputChannels > 0 },
		func(d DeviceInfo) bool { return d.IsDefaultOutput }, "output")
}

func findDevice(name string, usable, isDefault func(DeviceInfo) bool, kind string) (*DeviceInfo, error) {
	devices, err := Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if !usable(d) {
			continue
		}
		if name == "" {
			if isDefault(d) {
				return &d, nil
			}
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			return &d, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("portaudio: no default %s device", kind)
	}
	return nil, fmt.Errorf("portaudio: no %s device matching %q", kind, name)
}
