package orch

import (
	"context"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) bindMediaHandlers(sess *core.Session) {
	pid := sess.ParticipantID()
	mc := sess.Conn()
	mc.OnICECandidate(o.BroadcastCandidate)
	mc.OnICECandidatesRemoved(o.BroadcastCandidatesRemoved)
	mc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		o.onConnectionState(sess, s)
	})
	mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		o.onTrack(trackCtx, pid, track)
	})
}

func (o *Orchestrator) handleCandidate(e core.CandidateGenerated) {
	if o.misaddressed(e, e.To) {
		return
	}
	sess, ok := o.lookup(e)
	if !ok {
		return
	}
	if err := sess.Conn().AddICECandidate(core.CandidateToInit(e.Candidate)); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("participant", string(e.From)).Msg("add ice candidate")
	}
}

func (o *Orchestrator) handleCandidatesRemoved(e core.CandidatesRemoved) {
	if o.misaddressed(e, e.To) {
		return
	}
	sess, ok := o.lookup(e)
	if !ok {
		return
	}
	if err := sess.Conn().RemoveICECandidates(core.CandidatesToInit(e.Candidates)); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("participant", string(e.From)).Msg("remove ice candidates")
	}
}

// BroadcastCandidate fans a locally gathered candidate out to every
// registered participant. Each send is independent of the others.
func (o *Orchestrator) BroadcastCandidate(ci webrtc.ICECandidateInit) {
	cand := core.CandidateFromInit(ci)
	for _, pid := range o.Registry.Participants() {
		o.send(core.CandidateGenerated{Candidate: cand, From: o.Self, To: pid})
	}
}

// BroadcastCandidatesRemoved fans withdrawn local candidates out to every registered participant.
func (o *Orchestrator) BroadcastCandidatesRemoved(cs []webrtc.ICECandidateInit) {
	cands := core.CandidatesFromInit(cs)
	for _, pid := range o.Registry.Participants() {
		o.send(core.CandidatesRemoved{Candidates: cands, From: o.Self, To: pid})
	}
}

// onConnectionState removes a session whose transport failed. Only that exact
// session is removed; a replacement registered meanwhile is left alone.
func (o *Orchestrator) onConnectionState(sess *core.Session, s webrtc.PeerConnectionState) {
	pid := sess.ParticipantID()
	log.Info().Str("module", "orch").Str("participant", string(pid)).Str("peer_connection_state", s.String()).Msg("connection state")
	if s != webrtc.PeerConnectionStateFailed {
		return
	}
	o.queue.Submit(pid, func() {
		if o.Registry.RemoveIf(pid, sess) {
			o.Receivers.StopParticipant(pid)
		}
	})
}

// onTrack is called when a new remote media track appears for a participant.
func (o *Orchestrator) onTrack(ctx context.Context, pid domain.ParticipantID, track *webrtc.TrackRemote) {
	o.Receivers.Start(ctx, pid, track)
}
