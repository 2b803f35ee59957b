// Package negotiator drives one client through pairing and the
// offer/answer/candidate exchange. Transition logic lives in Next, a pure
// function from (State, Event) to (State, []Command); Negotiator is the
// runtime that feeds it events and carries out the commands.
package negotiator

import (
	"slices"

	"github.com/pion/webrtc/v4"
)

// Phase is the negotiator's lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Requesting
	Paired
	Offering
	Answering
	Connected
	Terminating
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Paired:
		return "paired"
	case Offering:
		return "offering"
	case Answering:
		return "answering"
	case Connected:
		return "connected"
	case Terminating:
		return "terminating"
	}
	return "unknown"
}

// paired reports whether the phase belongs to an active pairing.
func (p Phase) paired() bool {
	switch p {
	case Paired, Offering, Answering, Connected:
		return true
	}
	return false
}

// ConnState is the connectivity primitive's view of the media path.
type ConnState int

const (
	ConnNew ConnState = iota
	ConnChecking
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnNew:
		return "new"
	case ConnChecking:
		return "checking"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// lost reports whether the media path is gone for good.
func (s ConnState) lost() bool {
	return s == ConnDisconnected || s == ConnFailed || s == ConnClosed
}

// PairingKind separates real pairings from the offline demo stand-in.
type PairingKind int

const (
	// LivePairing was formed by the relay.
	LivePairing PairingKind = iota

	// DegradedPairing is simulated locally because the relay is unreachable.
	DegradedPairing
)

// Pairing is the client's view of its current match.
type Pairing struct {
	Kind       PairingKind
	Shared     []string
	PeerHandle string
}

// Session is the negotiation state of one pairing attempt. Epoch tags every
// asynchronous result so that results from a discarded session are ignored.
type Session struct {
	Epoch uint64

	Local     *webrtc.SessionDescription
	LocalSet  bool
	LocalSent bool
	RemoteSet bool

	// answering is set while an answer is being created.
	answering bool

	// PendingLocal holds local candidates found before the local
	// description went out; PendingRemote holds remote candidates that
	// arrived before the remote description was applied. Both keep arrival
	// order.
	PendingLocal  []webrtc.ICECandidateInit
	PendingRemote []webrtc.ICECandidateInit
}

// State is everything Next needs. It is a value; Next never mutates the
// State it is given.
type State struct {
	Phase Phase

	// Active is true between Start and Stop.
	Active     bool
	MediaReady bool
	Online     bool

	Interests []string
	Handle    string

	Pairing *Pairing
	Session Session

	epochs uint64
}

func appendCandidate(list []webrtc.ICECandidateInit, c webrtc.ICECandidateInit) []webrtc.ICECandidateInit {
	return append(slices.Clip(list), c)
}
