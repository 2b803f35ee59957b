package media

import (
	"errors"
	"io"
	"log/slog"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/negotiator"
	"github.com/pion/webrtc/v4"
)

// PeerFactory builds pion peer connections for the negotiator.
type PeerFactory struct {
	ICEServers []webrtc.ICEServer
}

// NewPeerFactory builds the ICE server list from cfg.
func NewPeerFactory(cfg *config.Config) *PeerFactory {
	var servers []webrtc.ICEServer
	if len(cfg.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	if turn := cfg.GetTURNServers(); turn != nil {
		username, password := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}
	return &PeerFactory{ICEServers: servers}
}

// NewPeer creates a peer connection carrying the tracks of stream.
func (f *PeerFactory) NewPeer(stream negotiator.Stream, hooks negotiator.PeerHooks) (negotiator.Peer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: f.ICEServers})
	if err != nil {
		return nil, chat.NewError("create peer connection", err)
	}

	if local, ok := stream.(*LocalStream); ok {
		for _, track := range local.Tracks() {
			if _, err := pc.AddTrack(track); err != nil {
				pc.Close()
				return nil, chat.NewError("add track", err)
			}
		}
	} else {
		// Receive-only when no local media is available.
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				pc.Close()
				return nil, chat.NewError("add transceiver", err)
			}
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || hooks.OnCandidate == nil {
			return
		}
		hooks.OnCandidate(c.ToJSON())
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		slog.Debug("ice connection state", "state", state.String())
		if hooks.OnStateChange != nil {
			hooks.OnStateChange(ConnState(state))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		slog.Info("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		go drain(track)
	})

	return &Peer{pc: pc}, nil
}

// drain reads a remote track until it ends. The terminal has nowhere to
// render media, but RTP must still be consumed.
func drain(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track ended", "err", err)
			}
			return
		}
	}
}

// ConnState maps a pion ICE state onto the negotiator's connectivity states.
func ConnState(state webrtc.ICEConnectionState) negotiator.ConnState {
	switch state {
	case webrtc.ICEConnectionStateChecking:
		return negotiator.ConnChecking
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return negotiator.ConnConnected
	case webrtc.ICEConnectionStateDisconnected:
		return negotiator.ConnDisconnected
	case webrtc.ICEConnectionStateFailed:
		return negotiator.ConnFailed
	case webrtc.ICEConnectionStateClosed:
		return negotiator.ConnClosed
	}
	return negotiator.ConnNew
}

// Peer wraps a pion PeerConnection.
type Peer struct {
	pc *webrtc.PeerConnection
}

func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, chat.NewError("create offer", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, chat.NewError("set local description", err)
	}
	return *p.pc.LocalDescription(), nil
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, chat.NewError("create answer", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, chat.NewError("set local description", err)
	}
	return *p.pc.LocalDescription(), nil
}

func (p *Peer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return chat.NewError("set remote description", err)
	}
	return nil
}

func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(c); err != nil {
		return chat.NewError("add ice candidate", err)
	}
	return nil
}

func (p *Peer) Close() error {
	return p.pc.Close()
}
