package media

import (
	"context"
	"sync"

	"github.com/dkeye/Peer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RecorderSinkID names the sink opened by the SinkFactory on every track.
const RecorderSinkID = "recorder"

type ReceiverManager struct {
	sinks SinkFactory

	mu        sync.RWMutex
	receivers map[domain.ParticipantID]map[string]*Receiver
}

// NewReceiverManager returns a manager that opens a sink from sinks on every
// new track. A nil factory leaves tracks drained with no consumer.
func NewReceiverManager(sinks SinkFactory) *ReceiverManager {
	return &ReceiverManager{
		sinks:     sinks,
		receivers: make(map[domain.ParticipantID]map[string]*Receiver),
	}
}

// Start creates a Receiver for a remote track of pid and starts its loop.
func (m *ReceiverManager) Start(ctx context.Context, pid domain.ParticipantID, track RemoteTrack) *Receiver {
	logger := log.With().
		Str("module", "media").
		Str("participant", string(pid)).
		Str("track_id", track.ID()).
		Logger()

	recvCtx, cancel := context.WithCancel(ctx)
	recv := NewReceiver(track, cancel)
	m.attachRecorder(recv, pid, &logger)

	m.mu.Lock()
	byTrack, ok := m.receivers[pid]
	if !ok {
		byTrack = make(map[string]*Receiver)
		m.receivers[pid] = byTrack
	}
	if old, ok := byTrack[track.ID()]; ok {
		logger.Info().Msg("replacing existing receiver for track")
		old.markAllDelete()
		old.cancel()
	}
	byTrack[track.ID()] = recv
	m.mu.Unlock()

	logger.Info().Msg("starting receiver loop")

	go recv.loop(recvCtx, &logger)
	return recv
}

func (m *ReceiverManager) get(pid domain.ParticipantID, trackID string) (*Receiver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recv, ok := m.receivers[pid][trackID]
	return recv, ok
}

func (m *ReceiverManager) attachRecorder(recv *Receiver, pid domain.ParticipantID, logger *zerolog.Logger) {
	if m.sinks == nil {
		return
	}
	mime := recv.Src.Codec().MimeType
	w, err := m.sinks.NewSink(pid, recv.Src.ID(), mime)
	if err != nil {
		logger.Error().Err(err).Str("mime_type", mime).Msg("open recorder failed, track not recorded")
		return
	}
	if w == nil {
		logger.Debug().Str("mime_type", mime).Msg("no recorder for codec")
		return
	}
	recv.AddSink(RecorderSinkID, NewSink(w))
}

// Receiver returns the receiver of trackID published by pid.
func (m *ReceiverManager) Receiver(pid domain.ParticipantID, trackID string) (*Receiver, bool) {
	return m.get(pid, trackID)
}

// SetMuted pauses or resumes delivery to a sink. A sink already marked for
// deletion cannot be revived.
func (m *ReceiverManager) SetMuted(pid domain.ParticipantID, trackID, sinkID string, muted bool) bool {
	recv, ok := m.get(pid, trackID)
	if !ok {
		return false
	}
	s, ok := recv.sink(sinkID)
	if !ok {
		return false
	}
	return s.SetMuted(muted)
}

// RemoveSink marks the sink for deletion; the receiver drops and closes it
// on the next packet.
func (m *ReceiverManager) RemoveSink(pid domain.ParticipantID, trackID, sinkID string) bool {
	recv, ok := m.get(pid, trackID)
	if !ok {
		return false
	}
	s, ok := recv.sink(sinkID)
	if !ok {
		return false
	}
	s.MarkDelete()
	return true
}

// StopParticipant stops every receiver of pid.
func (m *ReceiverManager) StopParticipant(pid domain.ParticipantID) {
	m.mu.Lock()
	byTrack, ok := m.receivers[pid]
	delete(m.receivers, pid)
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, recv := range byTrack {
		recv.markAllDelete()
		recv.cancel()
	}
	log.Info().Str("module", "media").Str("participant", string(pid)).Int("tracks", len(byTrack)).Msg("stopped receivers")
}

// Tracks lists the remote track ids currently received from pid.
func (m *ReceiverManager) Tracks(pid domain.ParticipantID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.receivers[pid]))
	for id := range m.receivers[pid] {
		out = append(out, id)
	}
	return out
}
