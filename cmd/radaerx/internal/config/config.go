// Package config loads the radaerx YAML configuration.
//
// The default location is os.UserConfigDir()/radaerx/config.yaml:
//
//	~/.config/radaerx/config.yaml            (Linux)
//	~/Library/Application Support/radaerx/   (macOS)
//
// Every field has a working default except the model paths, which must
// point at the exported receiver and vocoder .onnx files. Command-line
// flags override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// appDir is the directory name under os.UserConfigDir().
const appDir = "radaerx"

// Config is the full radaerx configuration.
type Config struct {
	// InputDevice and OutputDevice select audio devices by name
	// substring; empty means the system default.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`

	// DeviceRate is the capture/playback sample rate in Hz.
	DeviceRate int `yaml:"device_rate"`

	// BlockFrames is the device block size per pipeline iteration.
	BlockFrames int `yaml:"block_frames"`

	Models    Models    `yaml:"models"`
	Monitor   Monitor   `yaml:"monitor"`
	RTP       RTP       `yaml:"rtp"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Models locates the two exported ONNX graphs.
type Models struct {
	Receiver string `yaml:"receiver"`
	Vocoder  string `yaml:"vocoder"`
}

// Monitor configures the HTTP/WebSocket status endpoint.
type Monitor struct {
	// Listen is the address to serve on; empty disables the monitor.
	Listen string `yaml:"listen"`

	// IntervalMS is the WebSocket push interval in milliseconds.
	IntervalMS int `yaml:"interval_ms"`
}

// RTP configures the decoded-speech network stream.
type RTP struct {
	// Target is the host:port to send RTP to; empty disables it.
	Target string `yaml:"target"`
}

// Telemetry configures link-quality recording.
type Telemetry struct {
	// Path is the msgpack record file; empty disables recording.
	Path string `yaml:"path"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		DeviceRate:  44100,
		BlockFrames: 512,
		Monitor:     Monitor{IntervalMS: 100},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, "config.yaml"), nil
}

// Load reads the configuration at path, applying defaults for absent
// fields. A missing file is not an error when path is the default
// location: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.Models.Receiver == "" || c.Models.Vocoder == "" {
		return fmt.Errorf("models.receiver and models.vocoder must point at the exported .onnx files")
	}
	if c.DeviceRate <= 0 {
		return fmt.Errorf("device_rate must be positive, got %d", c.DeviceRate)
	}
	if c.BlockFrames <= 0 {
		return fmt.Errorf("block_frames must be positive, got %d", c.BlockFrames)
	}
	return nil
}
