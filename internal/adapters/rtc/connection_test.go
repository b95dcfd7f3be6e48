package rtc

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func newLoopbackFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := NewFactory(nil)
	require.NoError(t, err)
	// No STUN on loopback tests.
	f.config = webrtc.Configuration{}
	return f
}

func TestOfferAnswerBetweenConnections(t *testing.T) {
	f := newLoopbackFactory(t)
	pub, err := NewStaticPublisher()
	require.NoError(t, err)

	offerer, err := f.NewConnection("bob")
	require.NoError(t, err)
	t.Cleanup(offerer.Close)
	answerer, err := f.NewConnection("alice")
	require.NoError(t, err)
	t.Cleanup(answerer.Close)

	for _, tr := range pub.Tracks() {
		require.NoError(t, offerer.AddTrack(tr))
	}

	var mu sync.Mutex
	var gathered []webrtc.ICECandidateInit
	offerer.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		mu.Lock()
		gathered = append(gathered, ci)
		mu.Unlock()
	})

	offer, err := offerer.CreateOffer()
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	require.Contains(t, offer.SDP, pub.StreamID())
	require.NoError(t, offerer.SetLocalDescription(offer))

	require.NoError(t, answerer.SetRemoteDescription(offer))
	answer, err := answerer.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, answerer.SetLocalDescription(answer))
	require.NoError(t, offerer.SetRemoteDescription(answer))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gathered) > 0
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	first := gathered[0]
	mu.Unlock()
	require.NoError(t, answerer.AddICECandidate(first))
	require.NoError(t, answerer.RemoveICECandidates([]webrtc.ICECandidateInit{first}))
}

func TestAnswerWithoutRemoteOfferFails(t *testing.T) {
	f := newLoopbackFactory(t)
	conn, err := f.NewConnection("bob")
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = conn.CreateAnswer()
	require.Error(t, err)
	require.Error(t, conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "garbage"}))
}

func TestPublisherTracksShareStream(t *testing.T) {
	pub, err := NewStaticPublisher()
	require.NoError(t, err)
	tracks := pub.Tracks()
	require.Len(t, tracks, 2)
	for _, tr := range tracks {
		require.Equal(t, pub.StreamID(), tr.StreamID())
	}
	require.Equal(t, "audio", tracks[0].Kind().String())
	require.Equal(t, "video", tracks[1].Kind().String())
}
