package rtc

import (
	"github.com/dkeye/Peer/internal/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

var _ core.TrackPublisher = (*StaticPublisher)(nil)

// StaticPublisher owns the local audio and video tracks offered to every
// participant. Samples written to them fan out to all peer connections.
type StaticPublisher struct {
	streamID string
	Audio    *webrtc.TrackLocalStaticSample
	Video    *webrtc.TrackLocalStaticSample
}

func NewStaticPublisher() (*StaticPublisher, error) {
	streamID := uuid.NewString()
	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio-"+streamID, streamID)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video-"+streamID, streamID)
	if err != nil {
		return nil, err
	}
	return &StaticPublisher{streamID: streamID, Audio: audio, Video: video}, nil
}

func (p *StaticPublisher) StreamID() string { return p.streamID }

func (p *StaticPublisher) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{p.Audio, p.Video}
}
