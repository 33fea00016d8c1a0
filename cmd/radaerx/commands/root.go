package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"radaerx/cmd/radaerx/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "radaerx",
	Short: "Real-time RADAE digital voice receiver",
	Long: `radaerx - a real-time receiver for RADAE digital voice.

It captures a modulated radio-autoencoder signal from an audio device,
decodes it through the neural receiver and vocoder models, and plays
the synthesized speech back, reporting sync, SNR and frequency-offset
telemetry while it runs.

Configuration lives in the OS config directory:
  Linux:   ~/.config/radaerx/config.yaml
  macOS:   ~/Library/Application Support/radaerx/config.yaml

Examples:
  # List audio devices
  radaerx devices

  # Decode from the default capture device
  radaerx run --receiver rade.onnx --vocoder fargan.onnx

  # Decode from a named device with the status endpoint enabled
  radaerx run --input usb --monitor 127.0.0.1:8090`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
}

// loadConfig loads the file named by --config, or the default path.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

// setupLogging routes slog to stderr, at debug level with --verbose.
func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
