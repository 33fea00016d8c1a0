// Package telemetry records timestamped decoder status snapshots to an
// append-only msgpack stream for post-pass link-quality analysis.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"radaerx/pkg/decoder"
)

// Record is one timestamped status observation.
type Record struct {
	At       time.Time        `msgpack:"at"`
	Session  string           `msgpack:"session"`
	Snapshot decoder.Snapshot `msgpack:"snapshot"`
}

// Recorder appends records to a stream. Not safe for concurrent use;
// callers sample the status from one goroutine.
type Recorder struct {
	w       io.Writer
	c       io.Closer
	enc     *msgpack.Encoder
	session string
}

// NewRecorder writes records to w, stamping each with the session id.
func NewRecorder(w io.Writer, session string) *Recorder {
	return &Recorder{w: w, enc: msgpack.NewEncoder(w), session: session}
}

// Create opens (or truncates) a recording file.
func Create(path, session string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	r := NewRecorder(f, session)
	r.c = f
	return r, nil
}

// Record appends one snapshot, stamped with the current time.
func (r *Recorder) Record(snap decoder.Snapshot) error {
	return r.enc.Encode(Record{At: time.Now().UTC(), Session: r.session, Snapshot: snap})
}

// Close flushes and closes the underlying file, if Create opened one.
func (r *Recorder) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

// Reader iterates a recorded stream.
type Reader struct {
	dec *msgpack.Decoder
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: msgpack.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at end of stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
