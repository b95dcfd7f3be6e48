package signal

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	mid := "audio"
	events := []core.Event{
		core.UserJoined{UserID: "bob"},
		core.UserLeft{UserID: "bob"},
		core.Offer{SDP: "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n", From: "bob", To: "alice"},
		core.Answer{SDP: "v=0\r\n", From: "alice", To: "bob"},
		core.CandidateGenerated{Candidate: domain.Candidate{SDP: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMLineIndex: 1, SDPMid: &mid}, From: "alice", To: "bob"},
		core.CandidateGenerated{Candidate: domain.Candidate{SDP: "candidate:2", SDPMLineIndex: 0}, From: "alice", To: "bob"},
		core.CandidatesRemoved{Candidates: []domain.Candidate{{SDP: "candidate:1", SDPMLineIndex: 0, SDPMid: &mid}, {SDP: "candidate:2", SDPMLineIndex: 1}}, From: "bob", To: "alice"},
	}
	for _, ev := range events {
		t.Run(string(ev.Kind()), func(t *testing.T) {
			data, err := Encode(ev)
			require.NoError(t, err)
			got, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, ev, got)
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	data, err := Encode(core.Offer{SDP: "X", From: "alice", To: "bob"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"offer","sdp":"X","from":"alice","to":"bob"}`, string(data))

	data, err = Encode(core.CandidateGenerated{Candidate: domain.Candidate{SDP: "c", SDPMLineIndex: 2}, From: "alice", To: "bob"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"iceCandidateGenerated","iceCandidate":{"sdp":"c","sdpMLineIndex":2},"from":"alice","to":"bob"}`, string(data))

	data, err = Encode(core.UserJoined{UserID: "alice"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"userJoined","userId":"alice"}`, string(data))
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"renegotiate","from":"bob"}`))
	require.ErrorIs(t, err, ErrUnknownType)
	require.ErrorIs(t, err, core.ErrDecode)
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":            `{"type":`,
		"no type":             `{"sdp":"X","from":"bob","to":"alice"}`,
		"type not string":     `{"type":3}`,
		"offer without sdp":   `{"type":"offer","from":"bob","to":"alice"}`,
		"offer without from":  `{"type":"offer","sdp":"X","to":"alice"}`,
		"answer empty to":     `{"type":"answer","sdp":"X","from":"bob","to":""}`,
		"join without id":     `{"type":"userJoined"}`,
		"candidate missing":   `{"type":"iceCandidateGenerated","from":"bob","to":"alice"}`,
		"candidate no index":  `{"type":"iceCandidateGenerated","iceCandidate":{"sdp":"c"},"from":"bob","to":"alice"}`,
		"negative index":      `{"type":"iceCandidateGenerated","iceCandidate":{"sdp":"c","sdpMLineIndex":-1},"from":"bob","to":"alice"}`,
		"index too large":     `{"type":"iceCandidateGenerated","iceCandidate":{"sdp":"c","sdpMLineIndex":65536},"from":"bob","to":"alice"}`,
		"removed bad index":   `{"type":"iceCandidatesRemoved","iceCandidates":[{"sdp":"c","sdpMLineIndex":70000}],"from":"bob","to":"alice"}`,
		"removed not list":    `{"type":"iceCandidatesRemoved","iceCandidates":{},"from":"bob","to":"alice"}`,
		"removed missing":     `{"type":"iceCandidatesRemoved","from":"bob","to":"alice"}`,
		"removed bad element": `{"type":"iceCandidatesRemoved","iceCandidates":[{"sdpMLineIndex":0}],"from":"bob","to":"alice"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(in))
			require.Nil(t, ev)
			require.ErrorIs(t, err, core.ErrDecode)
			require.False(t, errors.Is(err, ErrUnknownType))
		})
	}
}

func TestDecodeIgnoresExtraFields(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"answer","sdp":"Y","from":"bob","to":"alice","session":"ignored"}`))
	require.NoError(t, err)
	require.Equal(t, core.Answer{SDP: "Y", From: "bob", To: "alice"}, ev)
}

func TestDecodeBoundaryValues(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"iceCandidateGenerated","iceCandidate":{"sdp":"c","sdpMLineIndex":65535},"from":"bob","to":"alice"}`))
	require.NoError(t, err)
	require.Equal(t, int32(65535), ev.(core.CandidateGenerated).Candidate.SDPMLineIndex)

	long := strings.Repeat("p", 512)
	ev, err = Decode([]byte(`{"type":"offer","sdp":"X","from":"` + long + `","to":"alice"}`))
	require.NoError(t, err)
	require.Equal(t, domain.ParticipantID(long), ev.(core.Offer).From)
}

func TestEncodeEmptyRemovalList(t *testing.T) {
	data, err := Encode(core.CandidatesRemoved{From: "alice", To: "bob"})
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "[]", string(raw["iceCandidates"]))
}
