package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

var _ SinkFactory = FileRecorder{}

// FileRecorder writes opus tracks to Ogg files and VP8, VP9 or AV1 tracks
// to IVF files under Dir. Other codecs are not recorded.
type FileRecorder struct {
	Dir string
	Now func() time.Time
}

func (f FileRecorder) NewSink(pid domain.ParticipantID, trackID, mimeType string) (PacketWriter, error) {
	var ext string
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeOpus):
		ext = ".ogg"
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8):
		mimeType, ext = webrtc.MimeTypeVP8, ".ivf"
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP9):
		mimeType, ext = webrtc.MimeTypeVP9, ".ivf"
	case strings.EqualFold(mimeType, webrtc.MimeTypeAV1):
		mimeType, ext = webrtc.MimeTypeAV1, ".ivf"
	default:
		return nil, nil
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder dir: %w", err)
	}
	path := filepath.Join(f.Dir, f.fileName(pid, trackID)+ext)

	if ext == ".ogg" {
		w, err := oggwriter.New(path, 48000, 2)
		if err != nil {
			return nil, fmt.Errorf("ogg recorder %s: %w", path, err)
		}
		return w, nil
	}
	w, err := ivfwriter.New(path, ivfwriter.WithCodec(mimeType))
	if err != nil {
		return nil, fmt.Errorf("ivf recorder %s: %w", path, err)
	}
	return w, nil
}

func (f FileRecorder) fileName(pid domain.ParticipantID, trackID string) string {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return fmt.Sprintf("%s_%s_%s", safeName(string(pid)), safeName(trackID), now().UTC().Format("20060102T150405"))
}

const maxNameLen = 64

// safeName keeps ids usable as a single, bounded path element.
func safeName(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if len(out) > maxNameLen {
		out = out[:maxNameLen]
	}
	if strings.Trim(out, ".") == "" {
		return "_"
	}
	return out
}
