// Package main is the entry point for the radaerx CLI.
//
// Usage:
//
//	radaerx [flags] <command>
//
// Commands:
//
//	run      - decode from a capture device to a playback device
//	devices  - list audio devices
//	version  - show version information
package main

import (
	"fmt"
	"os"

	"radaerx/cmd/radaerx/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
