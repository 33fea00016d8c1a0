package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"radaerx/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture and playback devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := portaudio.Devices()
		if err != nil {
			return err
		}
		defer portaudio.Terminate()

		for _, d := range devices {
			marker := ""
			if d.IsDefaultInput {
				marker += " [default input]"
			}
			if d.IsDefaultOutput {
				marker += " [default output]"
			}
			fmt.Printf("%d: %s%s\n", d.Index, d.Name, marker)
			fmt.Printf("   in %d ch, out %d ch, %.0f Hz\n",
				d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
