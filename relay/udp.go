package relay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/phanxgames/ardw"
)

// ============================================================
// Tracking Listener
// ============================================================

// DatagramSize is the length of one tracker datagram: six little-endian
// float32 values (tip x,y; end x,y; board x,y).
const DatagramSize = 24

// ErrShortDatagram reports a datagram smaller than DatagramSize.
var ErrShortDatagram = errors.New("short tracking datagram")

// Sample is one tracker reading in device pixels.
type Sample struct {
	Tip, End, Board ardw.Vec2
}

// Message returns the sample as a sync message.
func (s Sample) Message() *ardw.TrackingMessage {
	return &ardw.TrackingMessage{Tip: s.Tip, End: s.End, Board: s.Board}
}

// DecodeDatagram parses a tracker datagram. Bytes past DatagramSize are
// ignored.
func DecodeDatagram(b []byte) (Sample, error) {
	if len(b) < DatagramSize {
		return Sample{}, fmt.Errorf("%d bytes: %w", len(b), ErrShortDatagram)
	}
	f := func(i int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return Sample{
		Tip:   ardw.Vec2{X: f(0), Y: f(1)},
		End:   ardw.Vec2{X: f(2), Y: f(3)},
		Board: ardw.Vec2{X: f(4), Y: f(5)},
	}, nil
}

// EncodeDatagram is the inverse of DecodeDatagram.
func EncodeDatagram(s Sample) []byte {
	b := make([]byte, DatagramSize)
	for i, v := range []float64{s.Tip.X, s.Tip.Y, s.End.X, s.End.Y, s.Board.X, s.Board.Y} {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(float32(v)))
	}
	return b
}

// EWMA smooths samples: each value moves Alpha of the way back toward the
// previous output. Alpha 0 passes samples through unchanged.
type EWMA struct {
	Alpha float64

	prev   Sample
	primed bool
}

// Apply filters s and returns the smoothed sample.
func (f *EWMA) Apply(s Sample) Sample {
	if f.primed {
		blend := func(v, prev ardw.Vec2) ardw.Vec2 {
			return v.Add(prev.Sub(v).Scale(f.Alpha))
		}
		s = Sample{
			Tip:   blend(s.Tip, f.prev.Tip),
			End:   blend(s.End, f.prev.End),
			Board: blend(s.Board, f.prev.Board),
		}
	}
	f.prev = s
	f.primed = true
	return s
}

// Listener reads tracker datagrams, publishes them to the hub and feeds the
// dwell detector.
type Listener struct {
	conn   net.PacketConn
	hub    *Hub
	dwell  *Dwell
	filter EWMA
	clock  func() time.Time
}

// ListenUDP binds addr. dwell may be nil to disable probe selection.
func ListenUDP(addr string, alpha float64, hub *Hub, dwell *Dwell) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return &Listener{
		conn:   conn,
		hub:    hub,
		dwell:  dwell,
		filter: EWMA{Alpha: alpha},
		clock:  time.Now,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Serve reads datagrams until ctx is cancelled.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()

	buf := make([]byte, 1024)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read udp: %w", err)
		}
		s, err := DecodeDatagram(buf[:n])
		if err != nil {
			ardw.Logger().Warn("dropping datagram", "err", err)
			continue
		}
		l.handle(s)
	}
}

// Close releases the socket.
func (l *Listener) Close() error { return l.conn.Close() }

func (l *Listener) handle(s Sample) {
	s = l.filter.Apply(s)
	if l.dwell != nil {
		for _, msg := range l.dwell.Observe(s, l.clock()) {
			if err := l.hub.Publish("", msg); err != nil {
				ardw.Logger().Warn("publish probe selection", "err", err)
			}
		}
	}
	if err := l.hub.Publish("", s.Message()); err != nil {
		ardw.Logger().Warn("publish tracking sample", "err", err)
	}
}
