package core

import (
	"time"

	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// Session binds one remote participant to the connection negotiated with it.
// A closed Session is never reused: renegotiation always builds a new one.
type Session struct {
	pid       domain.ParticipantID
	role      domain.Role
	conn      MediaConnection
	tracks    []webrtc.TrackLocal
	createdAt time.Time

	state  atomic.Int32
	closed atomic.Bool
}

func NewSession(pid domain.ParticipantID, role domain.Role, conn MediaConnection) *Session {
	return &Session{
		pid:       pid,
		role:      role,
		conn:      conn,
		createdAt: time.Now(),
	}
}

func (s *Session) ParticipantID() domain.ParticipantID { return s.pid }
func (s *Session) Role() domain.Role                   { return s.role }
func (s *Session) Conn() MediaConnection               { return s.conn }
func (s *Session) CreatedAt() time.Time                { return s.createdAt }
func (s *Session) IsClosed() bool                      { return s.closed.Load() }

func (s *Session) State() domain.NegotiationState {
	return domain.NegotiationState(s.state.Load())
}

func (s *Session) SetState(st domain.NegotiationState) {
	s.state.Store(int32(st))
}

// Transition moves from -> to and reports whether the session was in from.
func (s *Session) Transition(from, to domain.NegotiationState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// AttachTracks adds every track to the connection. Tracks stay attached until Close.
func (s *Session) AttachTracks(tracks []webrtc.TrackLocal) error {
	for _, t := range tracks {
		if err := s.conn.AddTrack(t); err != nil {
			return err
		}
		s.tracks = append(s.tracks, t)
	}
	return nil
}

func (s *Session) Tracks() []webrtc.TrackLocal { return s.tracks }

// Close releases the connection. Only the first call has an effect.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.conn.Close()
	log.Debug().Str("module", "core.session").Str("participant", string(s.pid)).Msg("session closed")
}

// SessionInfo is a read-only view for APIs (no transport fields).
type SessionInfo struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Role          string               `json:"role"`
	State         string               `json:"state"`
	CreatedAt     time.Time            `json:"created_at"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ParticipantID: s.pid,
		Role:          s.role.String(),
		State:         s.State().String(),
		CreatedAt:     s.createdAt,
	}
}
