package rtc

import (
	"fmt"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

var _ core.MediaFactory = (*Factory)(nil)

// Factory builds one PeerConnection per remote participant, all sharing a
// media engine with the default codecs and interceptors.
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

func NewFactory(iceServers []string) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register default codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("register default interceptors: %w", err)
	}
	pli, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create PLI interceptor: %w", err)
	}
	interceptorRegistry.Add(pli)

	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	return &Factory{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(interceptorRegistry),
		),
		config: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
		},
	}, nil
}

func (f *Factory) NewConnection(pid domain.ParticipantID) (core.MediaConnection, error) {
	conn, err := NewWebRTCConnection(f.api, f.config, pid)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("module", "webrtc").Str("participant", string(pid)).Msg("peer connection created")
	return conn, nil
}
