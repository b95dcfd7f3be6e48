package app

import (
	"slices"
	"sync"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/dkeye/Peer/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// SessionFactory builds the session that Upsert installs.
type SessionFactory func() (*core.Session, error)

// Registry is the only authority for which Session represents a participant.
// At most one Session is registered per ParticipantID.
type Registry struct {
	mu       sync.Mutex
	sessions map[domain.ParticipantID]*core.Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ParticipantID]*core.Session),
	}
}

// Upsert discards any existing session for pid, builds a new one and registers it.
// The previous session is closed exactly once. If the factory fails nothing is
// registered for pid. The factory runs under the registry lock and must not block.
func (r *Registry) Upsert(pid domain.ParticipantID, factory SessionFactory) (*core.Session, error) {
	r.mu.Lock()
	old := r.sessions[pid]
	delete(r.sessions, pid)
	sess, err := factory()
	if err == nil {
		r.sessions[pid] = sess
	}
	n := len(r.sessions)
	r.mu.Unlock()

	telemetry.SetSessions(n)
	if old != nil && old != sess {
		old.Close()
		log.Info().Str("module", "registry").Str("participant", string(pid)).Msg("replaced session")
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "registry").Str("participant", string(pid)).Str("role", sess.Role().String()).Msg("registered session")
	return sess, nil
}

func (r *Registry) Get(pid domain.ParticipantID) (*core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[pid]
	return s, ok
}

// Remove closes and forgets the session for pid. No-op when absent.
func (r *Registry) Remove(pid domain.ParticipantID) bool {
	r.mu.Lock()
	sess, ok := r.sessions[pid]
	delete(r.sessions, pid)
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return false
	}
	telemetry.SetSessions(n)
	sess.Close()
	log.Info().Str("module", "registry").Str("participant", string(pid)).Msg("removed session")
	return true
}

// RemoveIf removes pid only while it still maps to sess, so a late failure of
// a superseded session never tears down its replacement.
func (r *Registry) RemoveIf(pid domain.ParticipantID, sess *core.Session) bool {
	r.mu.Lock()
	cur, ok := r.sessions[pid]
	if !ok || cur != sess {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, pid)
	n := len(r.sessions)
	r.mu.Unlock()

	telemetry.SetSessions(n)
	sess.Close()
	log.Info().Str("module", "registry").Str("participant", string(pid)).Msg("removed failed session")
	return true
}

// Participants returns the registered ids in a stable order.
func (r *Registry) Participants() []domain.ParticipantID {
	r.mu.Lock()
	out := make([]domain.ParticipantID, 0, len(r.sessions))
	for pid := range r.sessions {
		out = append(out, pid)
	}
	r.mu.Unlock()
	slices.Sort(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Snapshot() []core.SessionInfo {
	r.mu.Lock()
	out := make([]core.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b core.SessionInfo) int {
		switch {
		case a.ParticipantID < b.ParticipantID:
			return -1
		case a.ParticipantID > b.ParticipantID:
			return 1
		}
		return 0
	})
	return out
}

// CloseAll tears every session down, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[domain.ParticipantID]*core.Session)
	r.mu.Unlock()

	telemetry.SetSessions(0)
	for _, s := range sessions {
		s.Close()
	}
	log.Info().Str("module", "registry").Int("count", len(sessions)).Msg("closed all sessions")
}
