// Package cli provides terminal UI components for the decoder CLI.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"radaerx/pkg/decoder"
)

// Theme defines the color scheme for the terminal meter.
type Theme struct {
	Primary lipgloss.Color // bar and locked-state color
	Warn    lipgloss.Color // unlocked-state color
	Dim     lipgloss.Color // labels and idle segments
}

// DefaultTheme is the default green-on-dim theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ffb000"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Meter renders one-line decoder status suitable for redrawing in
// place at tens of Hz.
type Meter struct {
	width int

	bar     lipgloss.Style
	barOff  lipgloss.Style
	label   lipgloss.Style
	locked  lipgloss.Style
	nolock  lipgloss.Style
	stopped lipgloss.Style
}

// NewMeter creates a meter with a level bar of the given width.
func NewMeter(t Theme, width int) *Meter {
	if width <= 0 {
		width = 24
	}
	return &Meter{
		width:   width,
		bar:     lipgloss.NewStyle().Foreground(t.Primary),
		barOff:  lipgloss.NewStyle().Foreground(t.Dim),
		label:   lipgloss.NewStyle().Foreground(t.Dim),
		locked:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		nolock:  lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		stopped: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Render formats one status snapshot as a single line.
func (m *Meter) Render(snap decoder.Snapshot) string {
	if !snap.Running {
		return m.stopped.Render("stopped")
	}

	filled := int(snap.OutputLevel*float32(m.width) + 0.5)
	if filled > m.width {
		filled = m.width
	}
	bar := m.bar.Render(strings.Repeat("█", filled)) +
		m.barOff.Render(strings.Repeat("░", m.width-filled))

	sync := m.nolock.Render("NO SYNC")
	if snap.Synced {
		sync = m.locked.Render(" SYNCED")
	}

	return fmt.Sprintf("%s %s  %s %s  %s",
		m.label.Render("level"), bar, sync,
		m.label.Render(fmt.Sprintf("snr %5.1f dB", snap.SNRdB)),
		m.label.Render(fmt.Sprintf("offset %+6.1f Hz", snap.FreqOffsetHz)))
}
