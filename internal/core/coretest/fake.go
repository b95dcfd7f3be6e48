// Package coretest provides in-memory collaborators for engine tests.
package coretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/webrtc/v4"
)

var _ core.MediaConnection = (*FakeConnection)(nil)

// FakeConnection records every call made by the engine. Errors are injected
// per step through the Err* fields before the connection is used.
type FakeConnection struct {
	Participant domain.ParticipantID
	Serial      int

	ErrCreateOffer     error
	ErrCreateAnswer    error
	ErrSetLocal        error
	ErrSetRemote       error
	ErrAddCandidate    error
	ErrRemoveCandidate error
	ErrAddTrack        error

	// OfferGate, AnswerGate and LocalGate, when set, hold CreateOffer,
	// CreateAnswer and SetLocalDescription until closed.
	OfferGate  chan struct{}
	AnswerGate chan struct{}
	LocalGate  chan struct{}

	mu         sync.Mutex
	calls      []string
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	removed    []webrtc.ICECandidateInit
	tracks     []webrtc.TrackLocal
	closes     int

	onICE        func(webrtc.ICECandidateInit)
	onICERemoved func([]webrtc.ICECandidateInit)
	onState      func(webrtc.PeerConnectionState)
	onTrack      func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)
}

func (c *FakeConnection) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *FakeConnection) CreateOffer() (webrtc.SessionDescription, error) {
	c.record("create_offer")
	if c.OfferGate != nil {
		<-c.OfferGate
	}
	if c.ErrCreateOffer != nil {
		return webrtc.SessionDescription{}, c.ErrCreateOffer
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%s-%d", c.Participant, c.Serial)}, nil
}

func (c *FakeConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	c.record("create_answer")
	if c.AnswerGate != nil {
		<-c.AnswerGate
	}
	if c.ErrCreateAnswer != nil {
		return webrtc.SessionDescription{}, c.ErrCreateAnswer
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%s-%d", c.Participant, c.Serial)}, nil
}

func (c *FakeConnection) SetLocalDescription(d webrtc.SessionDescription) error {
	c.record("set_local")
	if c.LocalGate != nil {
		<-c.LocalGate
	}
	if c.ErrSetLocal != nil {
		return c.ErrSetLocal
	}
	c.mu.Lock()
	c.local = &d
	c.mu.Unlock()
	return nil
}

func (c *FakeConnection) SetRemoteDescription(d webrtc.SessionDescription) error {
	c.record("set_remote")
	if c.ErrSetRemote != nil {
		return c.ErrSetRemote
	}
	c.mu.Lock()
	c.remote = &d
	c.mu.Unlock()
	return nil
}

func (c *FakeConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	c.record("add_candidate")
	if c.ErrAddCandidate != nil {
		return c.ErrAddCandidate
	}
	c.mu.Lock()
	c.candidates = append(c.candidates, ci)
	c.mu.Unlock()
	return nil
}

func (c *FakeConnection) RemoveICECandidates(cs []webrtc.ICECandidateInit) error {
	c.record("remove_candidates")
	if c.ErrRemoveCandidate != nil {
		return c.ErrRemoveCandidate
	}
	c.mu.Lock()
	c.removed = append(c.removed, cs...)
	c.mu.Unlock()
	return nil
}

func (c *FakeConnection) AddTrack(t webrtc.TrackLocal) error {
	c.record("add_track")
	if c.ErrAddTrack != nil {
		return c.ErrAddTrack
	}
	c.mu.Lock()
	c.tracks = append(c.tracks, t)
	c.mu.Unlock()
	return nil
}

func (c *FakeConnection) Close() {
	c.record("close")
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
}

func (c *FakeConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *FakeConnection) OnICECandidatesRemoved(fn func([]webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICERemoved = fn
	c.mu.Unlock()
}

func (c *FakeConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *FakeConnection) OnTrack(fn func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

// EmitCandidate simulates local gathering.
func (c *FakeConnection) EmitCandidate(ci webrtc.ICECandidateInit) {
	c.mu.Lock()
	fn := c.onICE
	c.mu.Unlock()
	if fn != nil {
		fn(ci)
	}
}

func (c *FakeConnection) EmitCandidatesRemoved(cs []webrtc.ICECandidateInit) {
	c.mu.Lock()
	fn := c.onICERemoved
	c.mu.Unlock()
	if fn != nil {
		fn(cs)
	}
}

func (c *FakeConnection) EmitState(s webrtc.PeerConnectionState) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *FakeConnection) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *FakeConnection) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *FakeConnection) Local() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *FakeConnection) Remote() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *FakeConnection) Candidates() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.candidates...)
}

func (c *FakeConnection) Removed() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.removed...)
}

func (c *FakeConnection) Tracks() []webrtc.TrackLocal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.TrackLocal(nil), c.tracks...)
}

var _ core.MediaFactory = (*FakeFactory)(nil)

// FakeFactory hands out FakeConnections and remembers them in creation order.
type FakeFactory struct {
	// Prepare, when set, configures each connection before it is returned.
	Prepare func(c *FakeConnection)
	Err     error

	mu    sync.Mutex
	conns []*FakeConnection
}

func (f *FakeFactory) NewConnection(pid domain.ParticipantID) (core.MediaConnection, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	c := &FakeConnection{Participant: pid, Serial: len(f.conns)}
	f.conns = append(f.conns, c)
	f.mu.Unlock()
	if f.Prepare != nil {
		f.Prepare(c)
	}
	return c, nil
}

func (f *FakeFactory) Connections() []*FakeConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeConnection(nil), f.conns...)
}

func (f *FakeFactory) Last() *FakeConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

// RecordingEmitter captures outbound events instead of sending them.
type RecordingEmitter struct {
	// Fail, when set, decides per event whether Emit returns an error.
	Fail func(ev core.Event) error

	mu     sync.Mutex
	events []core.Event
}

func (e *RecordingEmitter) Emit(_ context.Context, ev core.Event) error {
	if e.Fail != nil {
		if err := e.Fail(ev); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
	return nil
}

func (e *RecordingEmitter) Events() []core.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Event(nil), e.events...)
}

// StaticPublisher publishes a fixed track list.
type StaticPublisher struct {
	Stream string
	List   []webrtc.TrackLocal
}

func (p *StaticPublisher) StreamID() string            { return p.Stream }
func (p *StaticPublisher) Tracks() []webrtc.TrackLocal { return p.List }
