package decoder

import (
	"sync/atomic"

	"radaerx/pkg/audio/pcm"
	"radaerx/pkg/rade"
)

// Status is the lock-free telemetry published by the processing
// goroutine. Each field is an independent atomic written only by the
// loop; observers may poll at any rate without blocking it.
//
// There is no cross-field atomicity: a reader may see, say, a fresh
// sync flag next to a not-yet-updated SNR. Individual fields are never
// torn. This is the accepted contract for approximate, eventually
// consistent telemetry.
type Status struct {
	running atomic.Bool
	synced  atomic.Bool
	snrDB   pcm.AtomicFloat32
	offset  pcm.AtomicFloat32
	level   pcm.AtomicFloat32
}

// Running reports whether the processing goroutine is active.
func (s *Status) Running() bool { return s.running.Load() }

// Synced reports whether the receiver model is locked onto a signal.
func (s *Status) Synced() bool { return s.synced.Load() }

// SNRdB returns the most recent signal-to-noise estimate.
func (s *Status) SNRdB() float32 { return s.snrDB.Load() }

// FreqOffsetHz returns the most recent carrier offset estimate.
func (s *Status) FreqOffsetHz() float32 { return s.offset.Load() }

// OutputLevel returns the RMS level of the latest synthesized block,
// in [0, 1].
func (s *Status) OutputLevel() float32 { return s.level.Load() }

// Snapshot is one point-in-time reading of all status fields, for
// observers that want a single value to serialize or record.
type Snapshot struct {
	Running      bool    `json:"running" msgpack:"running"`
	Synced       bool    `json:"synced" msgpack:"synced"`
	SNRdB        float32 `json:"snr_db" msgpack:"snr_db"`
	FreqOffsetHz float32 `json:"freq_offset_hz" msgpack:"freq_offset_hz"`
	OutputLevel  float32 `json:"output_level" msgpack:"output_level"`
}

// Snapshot reads all fields. The combination is subject to the torn
// cross-field caveat above.
func (s *Status) Snapshot() Snapshot {
	return Snapshot{
		Running:      s.running.Load(),
		Synced:       s.synced.Load(),
		SNRdB:        s.snrDB.Load(),
		FreqOffsetHz: s.offset.Load(),
		OutputLevel:  s.level.Load(),
	}
}

func (s *Status) setTelemetry(tel rade.Telemetry) {
	s.synced.Store(tel.Synced)
	s.snrDB.Store(tel.SNRdB)
	s.offset.Store(tel.FreqOffsetHz)
}

// reset returns every field to its idle value.
func (s *Status) reset() {
	s.running.Store(false)
	s.synced.Store(false)
	s.snrDB.Store(0)
	s.offset.Store(0)
	s.level.Store(0)
}
