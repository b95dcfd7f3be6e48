package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/dkeye/Peer/internal/telemetry"
	"github.com/rs/zerolog/log"
)

var _ core.Emitter = (*Router)(nil)

// Router sits between the wire and the negotiation engine. It owns no
// session state: inbound frames are decoded and handed to Engine, outbound
// events are encoded and written to Transport.
type Router struct {
	Transport core.SignalTransport
	Engine    core.Dispatcher
	// Limiter throttles negotiation-starting events per sender. Nil disables it.
	Limiter *RateLimiter

	mu sync.Mutex
	// held keeps the newest throttled event per sender until its window reopens.
	held   map[domain.ParticipantID]core.Event
	timers map[domain.ParticipantID]*time.Timer
}

func NewRouter(transport core.SignalTransport, engine core.Dispatcher, limiter *RateLimiter) *Router {
	return &Router{Transport: transport, Engine: engine, Limiter: limiter}
}

// OnMessage handles one inbound frame. Undecodable frames are dropped
// without touching any session.
func (r *Router) OnMessage(ctx context.Context, data []byte) {
	ev, err := Decode(data)
	if err != nil {
		reason := telemetry.DropDecode
		if errors.Is(err, ErrUnknownType) {
			reason = telemetry.DropUnknownType
		}
		telemetry.IncDropped(reason)
		log.Warn().Err(err).Str("module", "signal").Int("bytes", len(data)).Msg("inbound frame dropped")
		return
	}
	telemetry.IncMessage(telemetry.DirectionInbound, string(ev.Kind()))

	switch e := ev.(type) {
	case core.UserJoined, core.Offer:
		r.throttle(ctx, ev)
		return
	case core.UserLeft:
		r.release(e.UserID)
		r.Limiter.Forget(e.UserID)
	}
	r.dispatch(ctx, ev)
}

// throttle dispatches a negotiation-starting event, or holds it when its
// sender is over the limit. A held event is replaced by any newer one, so
// the latest negotiation always goes through once the window reopens.
func (r *Router) throttle(ctx context.Context, ev core.Event) {
	pid := ev.Subject()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, waiting := r.timers[pid]; !waiting && r.Limiter.Allow(pid) {
		r.dispatch(ctx, ev)
		return
	}
	if r.held == nil {
		r.held = make(map[domain.ParticipantID]core.Event)
		r.timers = make(map[domain.ParticipantID]*time.Timer)
	}
	if prev, ok := r.held[pid]; ok {
		telemetry.IncDropped(telemetry.DropRateLimited)
		log.Debug().Str("module", "signal").Str("participant", string(pid)).Str("type", string(prev.Kind())).Msg("held event superseded")
	}
	r.held[pid] = ev
	if _, ok := r.timers[pid]; !ok {
		r.schedule(ctx, pid)
		log.Warn().Str("module", "signal").Str("participant", string(pid)).Str("type", string(ev.Kind())).Msg("negotiation rate limited, holding latest")
	}
}

// schedule arms the flush timer for pid. Callers hold mu.
func (r *Router) schedule(ctx context.Context, pid domain.ParticipantID) {
	r.timers[pid] = time.AfterFunc(r.Limiter.Retry(pid), func() { r.flush(ctx, pid) })
}

func (r *Router) flush(ctx context.Context, pid domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.held[pid]
	if !ok || ctx.Err() != nil {
		delete(r.held, pid)
		delete(r.timers, pid)
		return
	}
	if !r.Limiter.Allow(pid) {
		r.schedule(ctx, pid)
		return
	}
	delete(r.held, pid)
	delete(r.timers, pid)
	r.dispatch(ctx, ev)
}

// release discards whatever is held for pid.
func (r *Router) release(pid domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[pid]; ok {
		t.Stop()
		delete(r.timers, pid)
	}
	delete(r.held, pid)
}

// Close drops every held event.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, t := range r.timers {
		t.Stop()
		delete(r.timers, pid)
	}
	clear(r.held)
}

func (r *Router) dispatch(ctx context.Context, ev core.Event) {
	if r.Engine == nil {
		log.Warn().Str("module", "signal").Msg("no engine bound, event dropped")
		return
	}
	r.Engine.Dispatch(ctx, ev)
}

// Emit encodes ev and queues it on the transport.
func (r *Router) Emit(ctx context.Context, ev core.Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := r.Transport.Send(ctx, data); err != nil {
		return err
	}
	telemetry.IncMessage(telemetry.DirectionOutbound, string(ev.Kind()))
	log.Debug().Str("module", "signal").Str("type", string(ev.Kind())).Msg("sent")
	return nil
}
