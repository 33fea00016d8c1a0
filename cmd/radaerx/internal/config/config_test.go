package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeviceRate != 44100 || cfg.BlockFrames != 512 {
		t.Errorf("defaults = rate %d, block %d", cfg.DeviceRate, cfg.BlockFrames)
	}
	if cfg.Monitor.IntervalMS != 100 {
		t.Errorf("monitor interval = %d, want 100", cfg.Monitor.IntervalMS)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
input_device: usb
device_rate: 48000
models:
  receiver: /models/rade.onnx
  vocoder: /models/fargan.onnx
monitor:
  listen: 127.0.0.1:8090
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InputDevice != "usb" || cfg.DeviceRate != 48000 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.BlockFrames != 512 {
		t.Errorf("unset field lost its default: %d", cfg.BlockFrames)
	}
	if cfg.Monitor.Listen != "127.0.0.1:8090" {
		t.Errorf("monitor.listen = %q", cfg.Monitor.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("config without model paths passed validation")
	}

	cfg.Models = Models{Receiver: "r.onnx", Vocoder: "v.onnx"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("complete config rejected: %v", err)
	}

	cfg.BlockFrames = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero block_frames passed validation")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed YAML accepted")
	}
}
