package rtc

import (
	"context"
	"sync"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var _ core.MediaConnection = (*WebRTCConnection)(nil)

// WebRTCConnection adapts a pion PeerConnection to core.MediaConnection.
// Candidates are trickled: local descriptions are returned without waiting
// for gathering to finish.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	pid    domain.ParticipantID
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onTrack func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

func NewWebRTCConnection(api *webrtc.API, cfg webrtc.Configuration, pid domain.ParticipantID) (*WebRTCConnection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &WebRTCConnection{pc: pc, pid: pid, ctx: ctx, cancel: cancel}
	c.bind()
	return c, nil
}

func (c *WebRTCConnection) bind() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "webrtc").Str("participant", string(c.pid)).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			c.cancel()
		}
		c.mu.RLock()
		fn := c.onState
		c.mu.RUnlock()
		if fn != nil {
			fn(s)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if cand == nil {
			return
		}
		c.mu.RLock()
		fn := c.onICE
		c.mu.RUnlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("participant", string(c.pid)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.RLock()
		fn := c.onTrack
		c.mu.RUnlock()
		if fn != nil {
			fn(c.ctx, track, receiver)
		}
	})
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *WebRTCConnection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *WebRTCConnection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// RemoveICECandidates is accepted and logged. The ICE agent prunes dead
// pairs on its own and exposes no way to withdraw a remote candidate.
func (c *WebRTCConnection) RemoveICECandidates(cs []webrtc.ICECandidateInit) error {
	log.Debug().Str("module", "webrtc").Str("participant", string(c.pid)).Int("count", len(cs)).Msg("remote candidates withdrawn")
	return nil
}

// AddTrack attaches a local track. The stream id travels on the track itself.
func (c *WebRTCConnection) AddTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *WebRTCConnection) Close() {
	c.cancel()
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Str("participant", string(c.pid)).Msg("close error")
		return
	}
	log.Info().Str("module", "webrtc").Str("participant", string(c.pid)).Msg("closed")
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

// OnICECandidatesRemoved is kept for interface parity; pion never reports withdrawn local candidates.
func (c *WebRTCConnection) OnICECandidatesRemoved(func([]webrtc.ICECandidateInit)) {}

func (c *WebRTCConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}
