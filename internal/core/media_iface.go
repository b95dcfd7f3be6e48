package core

import (
	"context"

	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/webrtc/v4"
)

// MediaConnection is the narrow capability set the engine needs from one
// transport connection. It is exclusively owned by a Session.
type MediaConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate. Early candidates are
	// buffered by the implementation, not by the caller.
	AddICECandidate(webrtc.ICECandidateInit) error
	RemoveICECandidates([]webrtc.ICECandidateInit) error
	// AddTrack attaches a local track. The stream id travels with the track.
	AddTrack(webrtc.TrackLocal) error
	// Close should stop all underlying media resources.
	Close()

	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnICECandidatesRemoved(func([]webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
}

// MediaFactory allocates a fresh connection for every negotiation.
type MediaFactory interface {
	NewConnection(pid domain.ParticipantID) (MediaConnection, error)
}

// TrackPublisher owns locally captured tracks.
type TrackPublisher interface {
	StreamID() string
	Tracks() []webrtc.TrackLocal
}
