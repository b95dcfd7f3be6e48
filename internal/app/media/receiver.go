package media

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// RemoteTrack is the read side of *webrtc.TrackRemote.
type RemoteTrack interface {
	ID() string
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Receiver drains one remote track so the transport never backs up, and
// forwards every packet to the attached sinks. Sinks are written and closed
// only from the read loop.
type Receiver struct {
	Src RemoteTrack

	mu    sync.RWMutex
	sinks map[string]*Sink

	packets atomic.Uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewReceiver(src RemoteTrack, cancel context.CancelFunc) *Receiver {
	return &Receiver{
		Src:    src,
		sinks:  make(map[string]*Sink),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// loop reads RTP packets from the source track until it fails or ctx ends,
// then closes every sink.
func (r *Receiver) loop(ctx context.Context, logger *zerolog.Logger) {
	defer close(r.done)
	defer r.detachAll(logger)

	for ctx.Err() == nil {
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("remote track ended")
			return
		}
		r.packets.Add(1)
		r.forward(pkt, logger)
	}
	logger.Info().Msg("receiver stopped")
}

func (r *Receiver) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	var finished []string
	for id, s := range r.snapshot() {
		alive, err := s.write(pkt)
		if err != nil {
			logger.Error().Err(err).Str("sink", id).Msg("sink write failed, dropping sink")
		}
		if !alive {
			finished = append(finished, id)
		}
	}
	if len(finished) > 0 {
		r.detach(finished, logger)
	}
}

func (r *Receiver) snapshot() map[string]*Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Sink, len(r.sinks))
	for id, s := range r.sinks {
		out[id] = s
	}
	return out
}

// detach removes the given sinks and closes their writers.
func (r *Receiver) detach(ids []string, logger *zerolog.Logger) {
	r.mu.Lock()
	gone := make(map[string]*Sink, len(ids))
	for _, id := range ids {
		if s, ok := r.sinks[id]; ok {
			gone[id] = s
			delete(r.sinks, id)
		}
	}
	r.mu.Unlock()

	for id, s := range gone {
		if err := s.close(); err != nil {
			logger.Warn().Err(err).Str("sink", id).Msg("sink close failed")
		}
	}
}

func (r *Receiver) detachAll(logger *zerolog.Logger) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sinks))
	for id := range r.sinks {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	r.detach(ids, logger)
}

// markAllDelete stops delivery to every sink without waiting for the loop.
func (r *Receiver) markAllDelete() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sinks {
		s.MarkDelete()
	}
}

func (r *Receiver) AddSink(id string, s *Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = s
}

func (r *Receiver) sink(id string) (*Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[id]
	return s, ok
}

// SinkStates reports the state of every attached sink.
func (r *Receiver) SinkStates() map[string]SinkState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]SinkState, len(r.sinks))
	for id, s := range r.sinks {
		out[id] = s.GetState()
	}
	return out
}

func (r *Receiver) Packets() uint64 { return r.packets.Load() }

// Done is closed once the read loop has exited.
func (r *Receiver) Done() <-chan struct{} { return r.done }
