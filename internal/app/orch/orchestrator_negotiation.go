package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Peer/internal/app"
	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/dkeye/Peer/internal/telemetry"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var errSuperseded = errors.New("superseded by a newer negotiation")

// handleUserJoined starts a negotiation as initiator toward the joining participant.
func (o *Orchestrator) handleUserJoined(ctx context.Context, e core.UserJoined, gen uint64) {
	pid := e.UserID
	if pid == o.Self {
		return
	}
	logger := o.logger(pid)
	if o.stale(pid, gen) {
		logger.Debug().Msg("join superseded before negotiation started")
		return
	}
	o.drop(pid)

	sess, err := o.newSession(pid, domain.RoleInitiator)
	if err != nil {
		o.abort(&logger, nil, err)
		return
	}
	o.setInflight(sess)
	defer o.clearInflight(sess)
	conn := sess.Conn()

	offer, err := conn.CreateOffer()
	if err != nil {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "create_offer", err))
		return
	}
	if err := conn.SetLocalDescription(offer); err != nil {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "set_local_description", err))
		return
	}
	sess.SetState(domain.StateOfferSent)

	if o.stale(pid, gen) {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "send_offer", errSuperseded))
		return
	}
	if err := o.Emitter.Emit(ctx, core.Offer{SDP: offer.SDP, From: o.Self, To: pid}); err != nil {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "send_offer", err))
		return
	}
	o.commit(&logger, sess)
	telemetry.IncNegotiation(domain.RoleInitiator.String(), "offered")
}

// handleOffer answers an inbound offer. The newest offer supersedes any
// existing session unless the policy decides to keep it.
func (o *Orchestrator) handleOffer(ctx context.Context, e core.Offer, gen uint64) {
	if o.misaddressed(e, e.To) || e.From == o.Self {
		return
	}
	pid := e.From
	logger := o.logger(pid)
	if o.stale(pid, gen) {
		logger.Debug().Msg("offer superseded by a newer one, skipped")
		return
	}

	if existing, ok := o.Registry.Get(pid); ok && o.Policy.OnOffer(o.Self, existing) == app.KeepSession {
		logger.Info().Str("state", existing.State().String()).Msg("glare: keeping local offer, remote offer ignored")
		telemetry.IncNegotiation(domain.RoleResponder.String(), "kept")
		return
	}
	o.drop(pid)

	sess, err := o.newSession(pid, domain.RoleResponder)
	if err != nil {
		o.abort(&logger, nil, err)
		return
	}
	conn := sess.Conn()

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: e.SDP}
	if err := conn.SetRemoteDescription(remote); err != nil {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "set_remote_description", err))
		return
	}
	sess.SetState(domain.StateOfferReceived)

	answer, err := conn.CreateAnswer()
	if err != nil {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "create_answer", err))
		return
	}
	if err := conn.SetLocalDescription(answer); err != nil {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "set_local_description", err))
		return
	}
	sess.SetState(domain.StateAnswerSent)

	if o.stale(pid, gen) {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "send_answer", errSuperseded))
		return
	}
	if err := o.Emitter.Emit(ctx, core.Answer{SDP: answer.SDP, From: o.Self, To: pid}); err != nil {
		o.abort(&logger, sess, core.NewNegotiationError(pid, "send_answer", err))
		return
	}
	sess.SetState(domain.StateStable)
	o.commit(&logger, sess)
	telemetry.IncNegotiation(domain.RoleResponder.String(), "answered")
}

func (o *Orchestrator) handleAnswer(e core.Answer) {
	if o.misaddressed(e, e.To) {
		return
	}
	sess, ok := o.lookup(e)
	if !ok {
		return
	}
	logger := o.logger(e.From)
	if st := sess.State(); st != domain.StateOfferSent {
		logger.Warn().Str("state", st.String()).Msg("answer without outstanding offer ignored")
		return
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: e.SDP}
	if err := sess.Conn().SetRemoteDescription(remote); err != nil {
		telemetry.IncNegotiation(domain.RoleInitiator.String(), "failed")
		logger.Error().Err(core.NewNegotiationError(e.From, "set_remote_description", err)).Msg("answer rejected")
		return
	}
	sess.Transition(domain.StateOfferSent, domain.StateStable)
	telemetry.IncNegotiation(domain.RoleInitiator.String(), "completed")
	logger.Info().Msg("negotiation stable")
}

func (o *Orchestrator) handleUserLeft(e core.UserLeft) {
	if e.UserID == o.Self {
		return
	}
	o.drop(e.UserID)
}

// newSession allocates a fresh connection and attaches every local track.
// The session is not visible to anyone until commit.
func (o *Orchestrator) newSession(pid domain.ParticipantID, role domain.Role) (*core.Session, error) {
	conn, err := o.Media.NewConnection(pid)
	if err != nil {
		return nil, core.NewNegotiationError(pid, "new_connection", err)
	}
	sess := core.NewSession(pid, role, conn)
	o.bindMediaHandlers(sess)

	if o.Publisher == nil {
		l := o.logger(pid)
		l.Warn().Msg("no local publisher, negotiating without tracks")
		return sess, nil
	}
	if err := sess.AttachTracks(o.Publisher.Tracks()); err != nil {
		sess.Close()
		return nil, core.NewNegotiationError(pid, "add_track", err)
	}
	return sess, nil
}

// commit publishes sess as the participant's current session.
func (o *Orchestrator) commit(logger *zerolog.Logger, sess *core.Session) {
	if _, err := o.Registry.Upsert(sess.ParticipantID(), func() (*core.Session, error) { return sess, nil }); err != nil {
		o.abort(logger, sess, err)
		return
	}
	logger.Info().Str("role", sess.Role().String()).Str("state", sess.State().String()).Msg("session committed")
}

// abort discards a session that was never published.
func (o *Orchestrator) abort(logger *zerolog.Logger, sess *core.Session, err error) {
	role := "unknown"
	if sess != nil {
		role = sess.Role().String()
		sess.Close()
	}
	if errors.Is(err, errSuperseded) {
		telemetry.IncNegotiation(role, "superseded")
		logger.Info().Msg("negotiation superseded before commit")
		return
	}
	telemetry.IncNegotiation(role, "failed")
	logger.Error().Err(err).Msg("negotiation aborted")
}

// drop tears down whatever is registered for pid.
func (o *Orchestrator) drop(pid domain.ParticipantID) {
	if o.Registry.Remove(pid) {
		o.Receivers.StopParticipant(pid)
	}
}
