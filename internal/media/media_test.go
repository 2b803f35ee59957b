package media

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/negotiator"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCreatesTracks(t *testing.T) {
	p := &Provider{}
	stream, err := p.Acquire(context.Background(), negotiator.Constraints{Audio: true, Video: true})
	require.NoError(t, err)
	defer stream.Close()

	local := stream.(*LocalStream)
	require.Len(t, local.Tracks(), 2)
	assert.Equal(t, webrtc.RTPCodecTypeAudio, local.Tracks()[0].Kind())
	assert.Equal(t, webrtc.RTPCodecTypeVideo, local.Tracks()[1].Kind())
	assert.Equal(t, local.Tracks()[0].StreamID(), local.Tracks()[1].StreamID())
}

func TestAcquireDenied(t *testing.T) {
	p := &Provider{Deny: true}
	_, err := p.Acquire(context.Background(), negotiator.Constraints{Audio: true})
	assert.ErrorIs(t, err, chat.ErrMediaPermissionDenied)
}

func TestToggles(t *testing.T) {
	var frames atomic.Int32
	p := &Provider{Video: func() []byte {
		frames.Add(1)
		return nil
	}}
	stream, err := p.Acquire(context.Background(), negotiator.Constraints{Audio: true, Video: true})
	require.NoError(t, err)
	local := stream.(*LocalStream)

	assert.True(t, local.AudioEnabled())
	assert.True(t, local.VideoEnabled())
	require.Eventually(t, func() bool { return frames.Load() > 0 }, time.Second, 5*time.Millisecond)

	local.SetAudioEnabled(false)
	local.SetVideoEnabled(false)
	assert.False(t, local.AudioEnabled())
	assert.False(t, local.VideoEnabled())

	require.NoError(t, local.Close())
	n := frames.Load()
	time.Sleep(3 * frameInterval)
	assert.Equal(t, n, frames.Load())
	assert.NoError(t, local.Close())
}

func TestConnState(t *testing.T) {
	cases := map[webrtc.ICEConnectionState]negotiator.ConnState{
		webrtc.ICEConnectionStateNew:          negotiator.ConnNew,
		webrtc.ICEConnectionStateChecking:     negotiator.ConnChecking,
		webrtc.ICEConnectionStateConnected:    negotiator.ConnConnected,
		webrtc.ICEConnectionStateCompleted:    negotiator.ConnConnected,
		webrtc.ICEConnectionStateDisconnected: negotiator.ConnDisconnected,
		webrtc.ICEConnectionStateFailed:       negotiator.ConnFailed,
		webrtc.ICEConnectionStateClosed:       negotiator.ConnClosed,
	}
	for in, want := range cases {
		assert.Equal(t, want, ConnState(in), in.String())
	}
}

func TestNewPeerFactoryICEServers(t *testing.T) {
	f := NewPeerFactory(&config.Config{STUNServers: []string{config.DefaultSTUN}})
	require.Len(t, f.ICEServers, 1)
	assert.Equal(t, []string{config.DefaultSTUN}, f.ICEServers[0].URLs)

	f = NewPeerFactory(&config.Config{TURNServer: "turn.example.com", TURNUser: "u", TURNPass: "p"})
	require.Len(t, f.ICEServers, 1)
	assert.Equal(t, "u", f.ICEServers[0].Username)
	assert.Len(t, f.ICEServers[0].URLs, 3)
}

func TestOfferAnswerExchange(t *testing.T) {
	provider := &Provider{}
	stream, err := provider.Acquire(context.Background(), negotiator.Constraints{Audio: true, Video: true})
	require.NoError(t, err)
	defer stream.Close()

	factory := &PeerFactory{}
	offerer, err := factory.NewPeer(stream, negotiator.PeerHooks{})
	require.NoError(t, err)
	defer offerer.Close()

	answerer, err := factory.NewPeer(nil, negotiator.PeerHooks{})
	require.NoError(t, err)
	defer answerer.Close()

	offer, err := offerer.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.True(t, strings.Contains(offer.SDP, "m=audio"))
	assert.True(t, strings.Contains(offer.SDP, "m=video"))

	require.NoError(t, answerer.SetRemoteDescription(offer))
	answer, err := answerer.CreateAnswer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	require.NoError(t, offerer.SetRemoteDescription(answer))
}

func TestSetRemoteDescriptionRejectsGarbage(t *testing.T) {
	peer, err := (&PeerFactory{}).NewPeer(nil, negotiator.PeerHooks{})
	require.NoError(t, err)
	defer peer.Close()

	err = peer.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "not sdp"})
	assert.Error(t, err)
}
