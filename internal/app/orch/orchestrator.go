package orch

import (
	"context"
	"sync"

	"github.com/dkeye/Peer/internal/app"
	"github.com/dkeye/Peer/internal/app/dispatch"
	"github.com/dkeye/Peer/internal/app/media"
	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/dkeye/Peer/internal/telemetry"
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultOutboundWorkers = 4

var _ core.Dispatcher = (*Orchestrator)(nil)

type Params struct {
	Self      domain.ParticipantID
	Registry  *app.Registry
	Media     core.MediaFactory
	Publisher core.TrackPublisher
	Emitter   core.Emitter
	Policy    app.Policy
	Receivers *media.ReceiverManager
	// OutboundWorkers bounds concurrent fire-and-forget sends.
	OutboundWorkers int
}

// Orchestrator is the negotiation engine. Events for one participant are
// handled strictly in arrival order on that participant's queue; different
// participants proceed independently. A session is published to the
// registry only once its local description is committed and advertised.
type Orchestrator struct {
	Self      domain.ParticipantID
	Registry  *app.Registry
	Media     core.MediaFactory
	Publisher core.TrackPublisher
	Emitter   core.Emitter
	Policy    app.Policy
	Receivers *media.ReceiverManager

	ctx    context.Context
	cancel context.CancelFunc
	queue  *dispatch.Queue[domain.ParticipantID]

	// generations counts offer-worthy events dispatched per participant so a
	// negotiation can notice it was superseded while still queued or in flight.
	genMu       sync.Mutex
	generations map[domain.ParticipantID]uint64
	// inflight holds initiator sessions between creation and commit.
	inflight map[domain.ParticipantID]*core.Session

	outMu    sync.RWMutex
	outbound *workerpool.WorkerPool
	stopped  bool
}

func New(ctx context.Context, p Params) *Orchestrator {
	if p.Registry == nil {
		p.Registry = app.NewRegistry()
	}
	if p.Policy == nil {
		p.Policy = app.LastWriterWins{}
	}
	if p.Receivers == nil {
		p.Receivers = media.NewReceiverManager(nil)
	}
	if p.OutboundWorkers <= 0 {
		p.OutboundWorkers = defaultOutboundWorkers
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Orchestrator{
		Self:      p.Self,
		Registry:  p.Registry,
		Media:     p.Media,
		Publisher: p.Publisher,
		Emitter:   p.Emitter,
		Policy:    p.Policy,
		Receivers: p.Receivers,
		ctx:       ctx,
		cancel:    cancel,
		queue:     dispatch.NewQueue[domain.ParticipantID](),
		outbound:  workerpool.New(p.OutboundWorkers),

		generations: make(map[domain.ParticipantID]uint64),
		inflight:    make(map[domain.ParticipantID]*core.Session),
	}
}

// Dispatch queues ev behind earlier events for the same participant and returns immediately.
// It is the only entry point for inbound events.
func (o *Orchestrator) Dispatch(ctx context.Context, ev core.Event) {
	pid := ev.Subject()
	gen := o.admit(ev)
	if !o.queue.Submit(pid, func() { o.handle(ctx, ev, gen) }) {
		log.Warn().Str("module", "orch").Str("type", string(ev.Kind())).Msg("engine closed, event dropped")
	}
}

// admit stamps ev with the participant's negotiation generation, starting a
// new one when ev supersedes whatever is in progress.
func (o *Orchestrator) admit(ev core.Event) uint64 {
	pid := ev.Subject()
	if !o.supersedes(ev) {
		return o.generation(pid)
	}
	if offer, ok := ev.(core.Offer); ok && o.keepsOwnOffer(offer) {
		return o.generation(pid)
	}
	return o.bump(pid)
}

// keepsOwnOffer asks the policy about an inbound offer before it may cancel
// our own offer, including one that is still being built.
func (o *Orchestrator) keepsOwnOffer(e core.Offer) bool {
	sess := o.inflightSession(e.From)
	if sess == nil {
		sess, _ = o.Registry.Get(e.From)
	}
	return sess != nil && o.Policy.OnOffer(o.Self, sess) == app.KeepSession
}

func (o *Orchestrator) handle(ctx context.Context, ev core.Event, gen uint64) {
	switch e := ev.(type) {
	case core.UserJoined:
		o.handleUserJoined(ctx, e, gen)
	case core.UserLeft:
		o.handleUserLeft(e)
	case core.Offer:
		o.handleOffer(ctx, e, gen)
	case core.Answer:
		o.handleAnswer(e)
	case core.CandidateGenerated:
		o.handleCandidate(e)
	case core.CandidatesRemoved:
		o.handleCandidatesRemoved(e)
	default:
		log.Debug().Str("module", "orch").Str("type", string(ev.Kind())).Msg("unhandled event")
	}
}

// supersedes reports whether ev starts or ends a negotiation with us, making
// any earlier one for the same participant stale.
func (o *Orchestrator) supersedes(ev core.Event) bool {
	switch e := ev.(type) {
	case core.UserJoined:
		return e.UserID != o.Self
	case core.UserLeft:
		return e.UserID != o.Self
	case core.Offer:
		return e.To == o.Self
	}
	return false
}

func (o *Orchestrator) bump(pid domain.ParticipantID) uint64 {
	o.genMu.Lock()
	defer o.genMu.Unlock()
	o.generations[pid]++
	return o.generations[pid]
}

func (o *Orchestrator) generation(pid domain.ParticipantID) uint64 {
	o.genMu.Lock()
	defer o.genMu.Unlock()
	return o.generations[pid]
}

func (o *Orchestrator) setInflight(sess *core.Session) {
	o.genMu.Lock()
	o.inflight[sess.ParticipantID()] = sess
	o.genMu.Unlock()
}

func (o *Orchestrator) clearInflight(sess *core.Session) {
	o.genMu.Lock()
	if o.inflight[sess.ParticipantID()] == sess {
		delete(o.inflight, sess.ParticipantID())
	}
	o.genMu.Unlock()
}

func (o *Orchestrator) inflightSession(pid domain.ParticipantID) *core.Session {
	o.genMu.Lock()
	defer o.genMu.Unlock()
	return o.inflight[pid]
}

// stale reports whether a newer negotiation for pid was dispatched after gen.
func (o *Orchestrator) stale(pid domain.ParticipantID, gen uint64) bool {
	return o.generation(pid) != gen
}

// Announce tells every peer that we are here so they start negotiating with us.
func (o *Orchestrator) Announce(ctx context.Context) error {
	return o.Emitter.Emit(ctx, core.UserJoined{UserID: o.Self})
}

// Close drains queued events, waits for pending sends and tears down every session.
func (o *Orchestrator) Close() {
	o.queue.Close()

	o.outMu.Lock()
	already := o.stopped
	o.stopped = true
	o.outMu.Unlock()
	if !already {
		o.outbound.StopWait()
	}

	for _, pid := range o.Registry.Participants() {
		o.Receivers.StopParticipant(pid)
	}
	o.Registry.CloseAll()
	o.cancel()
}

// send hands ev to the outbound pool without waiting for delivery.
func (o *Orchestrator) send(ev core.Event) {
	o.outMu.RLock()
	defer o.outMu.RUnlock()
	if o.stopped {
		return
	}
	o.outbound.Submit(func() {
		if err := o.Emitter.Emit(o.ctx, ev); err != nil {
			telemetry.IncSendFailure(string(ev.Kind()))
			log.Warn().Err(err).
				Str("module", "orch").
				Str("type", string(ev.Kind())).
				Str("participant", string(ev.Subject())).
				Msg("send failed")
		}
	})
}

func (o *Orchestrator) logger(pid domain.ParticipantID) zerolog.Logger {
	return log.With().Str("module", "orch").Str("participant", string(pid)).Logger()
}

// misaddressed reports events whose recipient is not us.
func (o *Orchestrator) misaddressed(ev core.Event, to domain.ParticipantID) bool {
	if to == o.Self {
		return false
	}
	telemetry.IncDropped(telemetry.DropMisaddressed)
	log.Debug().Str("module", "orch").Str("type", string(ev.Kind())).Str("to", string(to)).Msg("event not addressed to us")
	return true
}

// lookup finds the session an event refers to. A miss is an expected race, not a failure.
func (o *Orchestrator) lookup(ev core.Event) (*core.Session, bool) {
	pid := ev.Subject()
	sess, ok := o.Registry.Get(pid)
	if !ok {
		telemetry.IncStale(string(ev.Kind()))
		log.Warn().
			Err(core.ErrStaleReference).
			Str("module", "orch").
			Str("participant", string(pid)).
			Str("type", string(ev.Kind())).
			Msg("event for unknown session discarded")
	}
	return sess, ok
}
