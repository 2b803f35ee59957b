package negotiator

import (
	"context"

	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Channel is the negotiator's view of a transport connection to the relay.
type Channel interface {
	Send(protocol.Envelope) error
	// Incoming is closed when the channel terminates.
	Incoming() <-chan protocol.Envelope
	Err() error
	Close() error
}

// Dialer opens a Channel. Its error means the relay is unreachable.
type Dialer func(ctx context.Context) (Channel, error)

// Constraints select which local media to capture.
type Constraints struct {
	Audio bool
	Video bool
}

// Stream is captured local media.
type Stream interface {
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
	Close() error
}

// MediaProvider acquires local media. An error means permission was denied
// or no device is available.
type MediaProvider interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Peer is the connectivity primitive for one pairing. CreateOffer and
// CreateAnswer also apply the result as the local description.
type Peer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// PeerHooks receive the Peer's asynchronous notifications.
type PeerHooks struct {
	OnCandidate   func(webrtc.ICECandidateInit)
	OnStateChange func(ConnState)
}

// PeerFactory builds a Peer carrying stream.
type PeerFactory interface {
	NewPeer(stream Stream, hooks PeerHooks) (Peer, error)
}

// Display is where status lines and chat end up.
type Display interface {
	Status(text string)
	CommonInterests(text string)
	Chat(from Speaker, text string)
	Typing(typing bool)
	PeerHandle(handle string)
	Online(count int)
	Error(err error)
}
