package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"radaerx/pkg/audio/rtpout"
	"radaerx/pkg/cli"
	"radaerx/pkg/decoder"
	"radaerx/pkg/fargan"
	"radaerx/pkg/monitor"
	"radaerx/pkg/onnx"
	"radaerx/pkg/rade"
	"radaerx/pkg/telemetry"
)

var runFlags struct {
	input        string
	output       string
	receiver     string
	vocoder      string
	rate         int
	block        int
	monitorAddr  string
	rtpTarget    string
	telemetryLog string
	noMeter      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Decode from a capture device to a playback device",
	RunE:  runDecoder,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.input, "input", "i", "", "capture device name (substring match)")
	f.StringVarP(&runFlags.output, "output", "o", "", "playback device name (substring match)")
	f.StringVar(&runFlags.receiver, "receiver", "", "receiver model .onnx path")
	f.StringVar(&runFlags.vocoder, "vocoder", "", "vocoder model .onnx path")
	f.IntVar(&runFlags.rate, "rate", 0, "device sample rate in Hz")
	f.IntVar(&runFlags.block, "block", 0, "device block size in frames")
	f.StringVar(&runFlags.monitorAddr, "monitor", "", "status endpoint listen address")
	f.StringVar(&runFlags.rtpTarget, "rtp", "", "RTP target for decoded speech (host:port)")
	f.StringVar(&runFlags.telemetryLog, "telemetry-log", "", "msgpack link-quality record file")
	f.BoolVar(&runFlags.noMeter, "no-meter", false, "disable the terminal level meter")

	rootCmd.AddCommand(runCmd)
}

func runDecoder(cmd *cobra.Command, args []string) error {
	setupLogging()
	log := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDevice = runFlags.input
	}
	if flags.Changed("output") {
		cfg.OutputDevice = runFlags.output
	}
	if flags.Changed("receiver") {
		cfg.Models.Receiver = runFlags.receiver
	}
	if flags.Changed("vocoder") {
		cfg.Models.Vocoder = runFlags.vocoder
	}
	if flags.Changed("rate") {
		cfg.DeviceRate = runFlags.rate
	}
	if flags.Changed("block") {
		cfg.BlockFrames = runFlags.block
	}
	if flags.Changed("monitor") {
		cfg.Monitor.Listen = runFlags.monitorAddr
	}
	if flags.Changed("rtp") {
		cfg.RTP.Target = runFlags.rtpTarget
	}
	if flags.Changed("telemetry-log") {
		cfg.Telemetry.Path = runFlags.telemetryLog
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	env, err := onnx.NewEnv("radaerx")
	if err != nil {
		return err
	}
	defer env.Close()

	var speechTap func([]float32)
	if cfg.RTP.Target != "" {
		sender, err := rtpout.Dial(cfg.RTP.Target)
		if err != nil {
			return err
		}
		defer sender.Close()
		speechTap = func(block []float32) {
			if err := sender.Write(block); err != nil {
				log.Debug("rtp send", "error", err)
			}
		}
		log.Info("streaming decoded speech", "target", cfg.RTP.Target)
	}

	pipe, err := decoder.New(decoder.Config{
		DeviceRate:  cfg.DeviceRate,
		BlockFrames: cfg.BlockFrames,
		NewFeatureDecoder: func() (rade.FeatureDecoder, error) {
			return rade.NewModelDecoder(env, cfg.Models.Receiver)
		},
		NewFrameSynthesizer: func() (fargan.FrameSynthesizer, error) {
			return fargan.NewModelSynthesizer(env, cfg.Models.Vocoder)
		},
		SpeechTap: speechTap,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer pipe.Close()

	if err := pipe.Open(cfg.InputDevice, cfg.OutputDevice); err != nil {
		return err
	}
	pipe.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Monitor.Listen != "" {
		srv := monitor.New(
			func() any { return pipe.Status().Snapshot() },
			time.Duration(cfg.Monitor.IntervalMS)*time.Millisecond,
			log,
		)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Monitor.Listen); err != nil {
				log.Error("monitor", "error", err)
			}
		}()
	}

	var recorder *telemetry.Recorder
	if cfg.Telemetry.Path != "" {
		if recorder, err = telemetry.Create(cfg.Telemetry.Path, uuid.NewString()); err != nil {
			return err
		}
		defer recorder.Close()
	}

	observe(ctx, pipe, recorder)

	fmt.Println()
	log.Info("shutting down")
	pipe.Stop()
	return nil
}

// observe redraws the terminal meter and samples the telemetry
// recorder at ~30 fps until ctx is cancelled or the pipeline dies.
func observe(ctx context.Context, pipe *decoder.Pipeline, recorder *telemetry.Recorder) {
	meter := cli.NewMeter(cli.DefaultTheme, 24)
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := pipe.Status().Snapshot()
		if !runFlags.noMeter {
			fmt.Printf("\r\033[K%s", meter.Render(snap))
		}
		if recorder != nil {
			if err := recorder.Record(snap); err != nil {
				slog.Warn("telemetry record", "error", err)
			}
		}
		if !snap.Running {
			return
		}
	}
}
