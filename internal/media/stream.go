package media

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/negotiator"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

const frameInterval = 20 * time.Millisecond

// opusSilence is a single Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// FrameSource produces encoded video frames. Returning nil skips a tick.
type FrameSource func() []byte

// Provider hands out synthetic local media. A terminal has no camera, so
// audio is Opus silence and video comes from Video when set.
type Provider struct {
	Video FrameSource

	// Deny makes every Acquire fail as if the user refused access.
	Deny bool
}

// Acquire creates the local tracks and starts feeding them.
func (p *Provider) Acquire(ctx context.Context, c negotiator.Constraints) (negotiator.Stream, error) {
	if p.Deny {
		return nil, chat.WrapError("acquire media", chat.ErrMediaPermissionDenied, "access refused")
	}
	if err := ctx.Err(); err != nil {
		return nil, chat.NewError("acquire media", err)
	}

	streamID := "warpchat-" + uuid.NewString()
	s := &LocalStream{stop: make(chan struct{})}

	if c.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", streamID)
		if err != nil {
			return nil, chat.WrapError("acquire media", chat.ErrMediaPermissionDenied, err.Error())
		}
		s.audio = track
		s.audioOn.Store(true)
	}
	if c.Video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", streamID)
		if err != nil {
			return nil, chat.WrapError("acquire media", chat.ErrMediaPermissionDenied, err.Error())
		}
		s.video = track
		s.videoOn.Store(true)
	}

	s.wg.Add(1)
	go s.pump(p.Video)

	slog.Info("local media ready", "stream", streamID, "audio", c.Audio, "video", c.Video)
	return s, nil
}

// LocalStream is a set of local sample tracks.
type LocalStream struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	audioOn atomic.Bool
	videoOn atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Tracks returns the tracks to attach to a peer connection.
func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	var tracks []webrtc.TrackLocal
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

func (s *LocalStream) SetAudioEnabled(enabled bool) { s.audioOn.Store(enabled) }
func (s *LocalStream) SetVideoEnabled(enabled bool) { s.videoOn.Store(enabled) }

func (s *LocalStream) AudioEnabled() bool { return s.audioOn.Load() }
func (s *LocalStream) VideoEnabled() bool { return s.videoOn.Load() }

// Close stops feeding the tracks.
func (s *LocalStream) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

func (s *LocalStream) pump(video FrameSource) {
	defer s.wg.Done()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		if s.audio != nil && s.audioOn.Load() {
			s.write(s.audio, opusSilence)
		}
		if s.video != nil && video != nil && s.videoOn.Load() {
			if frame := video(); frame != nil {
				s.write(s.video, frame)
			}
		}
	}
}

func (s *LocalStream) write(track *webrtc.TrackLocalStaticSample, data []byte) {
	if err := track.WriteSample(pionmedia.Sample{Data: data, Duration: frameInterval}); err != nil {
		slog.Debug("write sample", "track", track.Kind().String(), "err", err)
	}
}
