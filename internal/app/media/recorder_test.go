package media

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestFileRecorderWritesContainers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	rec := FileRecorder{Dir: dir, Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }}

	audio, err := rec.NewSink("bob", "mic", "audio/OPUS")
	require.NoError(t, err)
	require.NotNil(t, audio)
	require.NoError(t, audio.WriteRTP(&rtp.Packet{Header: rtp.Header{Timestamp: 960}, Payload: []byte{0xf8, 0xff, 0xfe}}))
	require.NoError(t, audio.(io.Closer).Close())

	video, err := rec.NewSink("bob", "cam", webrtc.MimeTypeVP8)
	require.NoError(t, err)
	require.NoError(t, video.(io.Closer).Close())

	ogg, err := os.ReadFile(filepath.Join(dir, "bob_mic_20260301T120000.ogg"))
	require.NoError(t, err)
	require.Equal(t, "OggS", string(ogg[:4]))

	ivf, err := os.ReadFile(filepath.Join(dir, "bob_cam_20260301T120000.ivf"))
	require.NoError(t, err)
	require.Equal(t, "DKIF", string(ivf[:4]))
}

func TestFileRecorderSkipsUnsupportedCodec(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	w, err := FileRecorder{Dir: dir}.NewSink("bob", "cam", webrtc.MimeTypeH264)
	require.NoError(t, err)
	require.Nil(t, w)
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestSafeName(t *testing.T) {
	require.Equal(t, "bob", safeName("bob"))
	require.Equal(t, "_etc_passwd", safeName("/etc/passwd"))
	require.Equal(t, "_", safeName(".."))
	require.Equal(t, "caf_", safeName("café"))
	require.Len(t, safeName(string(make([]byte, 300))), maxNameLen)
}
