// Package rtpout streams decoded speech over RTP, so another host can
// listen to or record the decoder output. Audio is sent as L16 mono
// (big-endian 16-bit PCM) in 10 ms packets.
package rtpout

import (
	"fmt"
	"math/rand/v2"
	"net"

	"github.com/pion/rtp"

	"radaerx/pkg/audio/pcm"
)

const (
	// SampleRate is the RTP clock rate; the decoder synthesizes at
	// 16 kHz and packets carry it unresampled.
	SampleRate = 16000

	// PacketSamples is 10 ms of audio per packet.
	PacketSamples = 160

	// PayloadType is a dynamic payload type; the receiving end maps it
	// to L16/16000 out of band.
	PayloadType = 96
)

// Sender packetizes speech blocks and sends them over UDP. Not safe
// for concurrent use; the decoder feeds it from one goroutine.
type Sender struct {
	conn *net.UDPConn

	seq       uint16
	timestamp uint32
	ssrc      uint32

	pending []int16 // carry-over shorter than one packet
	payload [2 * PacketSamples]byte
	pkt     rtp.Packet
}

// Dial creates a sender targeting addr (host:port).
func Dial(addr string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("rtpout: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("rtpout: %w", err)
	}
	return &Sender{
		conn:    conn,
		seq:     uint16(rand.Uint32()),
		ssrc:    rand.Uint32(),
		pending: make([]int16, 0, PacketSamples),
	}, nil
}

// Write queues a block of speech samples in [-1, 1] at SampleRate and
// sends every complete 10 ms packet. A trailing partial packet is held
// for the next call.
func (s *Sender) Write(block []float32) error {
	s.pending = pcm.Int16FromFloats(s.pending, block)

	off := 0
	for ; off+PacketSamples <= len(s.pending); off += PacketSamples {
		if err := s.send(s.pending[off : off+PacketSamples]); err != nil {
			s.pending = s.pending[:copy(s.pending, s.pending[off:])]
			return err
		}
	}
	s.pending = s.pending[:copy(s.pending, s.pending[off:])]
	return nil
}

func (s *Sender) send(samples []int16) error {
	for i, v := range samples {
		s.payload[2*i] = byte(v >> 8) // L16 wire format is big-endian
		s.payload[2*i+1] = byte(v)
	}

	s.pkt = rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    PayloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
		},
		Payload: s.payload[:],
	}
	s.seq++
	s.timestamp += PacketSamples

	data, err := s.pkt.Marshal()
	if err != nil {
		return fmt.Errorf("rtpout: %w", err)
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("rtpout: %w", err)
	}
	return nil
}

// Close releases the socket. Any held partial packet is dropped.
func (s *Sender) Close() error {
	return s.conn.Close()
}
