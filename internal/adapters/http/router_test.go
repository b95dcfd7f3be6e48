package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Peer/internal/app"
	"github.com/dkeye/Peer/internal/app/media"
	"github.com/dkeye/Peer/internal/config"
	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/core/coretest"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/dkeye/Peer/internal/telemetry"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeHealth bool

func (h fakeHealth) Connected() bool { return bool(h) }

// blockingTrack delivers nothing until closed.
type blockingTrack struct {
	id   string
	stop chan struct{}
}

func (t *blockingTrack) ID() string { return t.id }

func (t *blockingTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}}
}

func (t *blockingTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	<-t.stop
	return nil, nil, io.EOF
}

type nopWriter struct{}

func (nopWriter) WriteRTP(*rtp.Packet) error { return nil }

func newTestRouter(t *testing.T, connected bool) (*app.Registry, http.Handler) {
	t.Helper()
	reg, _, r := newTestRouterWithMedia(t, connected)
	return reg, r
}

func newTestRouterWithMedia(t *testing.T, connected bool) (*app.Registry, *media.ReceiverManager, http.Handler) {
	t.Helper()
	reg := app.NewRegistry()
	receivers := media.NewReceiverManager(nil)
	promReg := prometheus.NewRegistry()
	require.NoError(t, telemetry.Register(promReg))
	r := SetupRouter(&config.Config{Mode: "test"}, Deps{
		Self:      "alice",
		Registry:  reg,
		Receivers: receivers,
		Health:    fakeHealth(connected),
		Gatherer:  promReg,
	})
	return reg, receivers, r
}

func TestSessionsEndpoint(t *testing.T) {
	reg, r := newTestRouter(t, true)
	for _, pid := range []domain.ParticipantID{"carol", "bob"} {
		_, err := reg.Upsert(pid, func() (*core.Session, error) {
			return core.NewSession(pid, domain.RoleResponder, &coretest.FakeConnection{Participant: pid}), nil
		})
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Self     string `json:"self"`
		Sessions []struct {
			ParticipantID string `json:"participant_id"`
			Role          string `json:"role"`
			State         string `json:"state"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "alice", body.Self)
	require.Len(t, body.Sessions, 2)
	require.Equal(t, "bob", body.Sessions[0].ParticipantID)
	require.Equal(t, "carol", body.Sessions[1].ParticipantID)
	require.Equal(t, "responder", body.Sessions[0].Role)
	require.Equal(t, "idle", body.Sessions[0].State)
}

func TestTracksEndpoint(t *testing.T) {
	reg, r := newTestRouter(t, true)
	_, err := reg.Upsert("bob", func() (*core.Session, error) {
		return core.NewSession("bob", domain.RoleInitiator, &coretest.FakeConnection{Participant: "bob"}), nil
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/bob/tracks", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"participant_id":"bob","tracks":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/carol/tracks", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSinkEndpoints(t *testing.T) {
	_, receivers, r := newTestRouterWithMedia(t, true)
	track := &blockingTrack{id: "mic", stop: make(chan struct{})}
	recv := receivers.Start(context.Background(), "bob", track)
	t.Cleanup(func() {
		close(track.stop)
		<-recv.Done()
	})
	recv.AddSink("speaker", media.NewSink(nopWriter{}))

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := serve(http.MethodGet, "/api/sessions/bob/tracks/mic/sinks", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"participant_id":"bob","track_id":"mic","sinks":{"speaker":"ok"}}`, w.Body.String())

	w = serve(http.MethodPut, "/api/sessions/bob/tracks/mic/sinks/speaker", `{"muted":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]media.SinkState{"speaker": media.SinkStateMuted}, recv.SinkStates())

	w = serve(http.MethodPut, "/api/sessions/bob/tracks/mic/sinks/speaker", `{"muted":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]media.SinkState{"speaker": media.SinkStateOk}, recv.SinkStates())

	w = serve(http.MethodPut, "/api/sessions/bob/tracks/mic/sinks/speaker", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = serve(http.MethodPut, "/api/sessions/bob/tracks/mic/sinks/nope", `{"muted":true}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = serve(http.MethodPut, "/api/sessions/carol/tracks/mic/sinks/speaker", `{"muted":true}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = serve(http.MethodGet, "/api/sessions/bob/tracks/cam/sinks", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = serve(http.MethodDelete, "/api/sessions/bob/tracks/mic/sinks/speaker", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, map[string]media.SinkState{"speaker": media.SinkStateDelete}, recv.SinkStates())
	w = serve(http.MethodPut, "/api/sessions/bob/tracks/mic/sinks/speaker", `{"muted":false}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = serve(http.MethodDelete, "/api/sessions/bob/tracks/mic/sinks/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	_, r := newTestRouter(t, true)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	_, r = newTestRouter(t, false)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestRouter(t, true)
	telemetry.IncMessage(telemetry.DirectionInbound, "offer")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "peer_signal_messages_total")
}
