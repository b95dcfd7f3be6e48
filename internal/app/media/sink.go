package media

import (
	"io"
	"sync/atomic"

	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/rtp"
)

type SinkState int32

const (
	SinkStateOk SinkState = iota
	SinkStateMuted
	SinkStateDelete
)

func (s SinkState) String() string {
	switch s {
	case SinkStateOk:
		return "ok"
	case SinkStateMuted:
		return "muted"
	case SinkStateDelete:
		return "deleting"
	default:
		return "unknown"
	}
}

// PacketWriter is satisfied by *webrtc.TrackLocalStaticRTP and the pion
// media writers. A writer that also implements io.Closer is closed once
// its sink is dropped.
type PacketWriter interface {
	WriteRTP(*rtp.Packet) error
}

// SinkFactory opens the default sink for every new remote track. A nil
// writer with a nil error means the track is not consumed.
type SinkFactory interface {
	NewSink(pid domain.ParticipantID, trackID, mimeType string) (PacketWriter, error)
}

// Sink is one consumer of a remote track.
type Sink struct {
	W     PacketWriter
	state atomic.Int32 // Zero by default (SinkStateOk)
}

func NewSink(w PacketWriter) *Sink {
	return &Sink{W: w}
}

func (s *Sink) GetState() SinkState {
	return SinkState(s.state.Load())
}

// SetMuted pauses or resumes delivery. It fails once the sink is marked for deletion.
func (s *Sink) SetMuted(muted bool) bool {
	want := SinkStateOk
	if muted {
		want = SinkStateMuted
	}
	for {
		cur := s.state.Load()
		if SinkState(cur) == SinkStateDelete {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(want)) {
			return true
		}
	}
}

func (s *Sink) MarkDelete() {
	s.state.Store(int32(SinkStateDelete))
}

// write passes pkt on unless the sink is muted. It reports false once the
// sink is finished, either on request or because the writer failed.
func (s *Sink) write(pkt *rtp.Packet) (bool, error) {
	switch s.GetState() {
	case SinkStateDelete:
		return false, nil
	case SinkStateMuted:
		return true, nil
	}
	if err := s.W.WriteRTP(pkt); err != nil {
		s.MarkDelete()
		return false, err
	}
	return true, nil
}

func (s *Sink) close() error {
	if c, ok := s.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
