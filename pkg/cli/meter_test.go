package cli

import (
	"strings"
	"testing"

	"radaerx/pkg/decoder"
)

func TestMeterRender(t *testing.T) {
	m := NewMeter(DefaultTheme, 10)

	t.Run("stopped", func(t *testing.T) {
		line := m.Render(decoder.Snapshot{})
		if !strings.Contains(line, "stopped") {
			t.Errorf("line = %q", line)
		}
	})

	t.Run("running", func(t *testing.T) {
		line := m.Render(decoder.Snapshot{
			Running: true, Synced: true, SNRdB: 8.2, FreqOffsetHz: -14.5, OutputLevel: 0.5,
		})
		if !strings.Contains(line, "SYNCED") {
			t.Errorf("no sync badge in %q", line)
		}
		if strings.Count(line, "█") != 5 {
			t.Errorf("bar fill = %d of 10 at level 0.5", strings.Count(line, "█"))
		}
		if !strings.Contains(line, "8.2") || !strings.Contains(line, "-14.5") {
			t.Errorf("telemetry missing from %q", line)
		}
	})

	t.Run("level clamps to bar width", func(t *testing.T) {
		line := m.Render(decoder.Snapshot{Running: true, OutputLevel: 2})
		if strings.Count(line, "█") != 10 {
			t.Errorf("bar overflows: %q", line)
		}
	})
}
