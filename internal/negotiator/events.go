package negotiator

import (
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Event is an input to Next.
type Event interface {
	event()
}

// User actions.
type (
	Start struct {
		Interests []string
		Handle    string
	}
	Stop     struct{}
	Skip     struct{}
	SendChat struct{ Text string }
	SetTyping struct{ Typing bool }
)

// Results reported by the runtime.
type (
	MediaAcquired struct{}
	MediaFailed   struct{ Err error }

	TransportOpened struct{}
	TransportFailed struct{ Err error }
	TransportClosed struct{ Err error }

	Received struct{ Envelope protocol.Envelope }

	LocalDescriptionReady struct {
		Epoch       uint64
		Description webrtc.SessionDescription
	}
	RemoteDescriptionApplied struct{ Epoch uint64 }
	NegotiationFailed        struct {
		Epoch uint64
		Err   error
	}

	LocalCandidate struct {
		Epoch     uint64
		Candidate webrtc.ICECandidateInit
	}
	ConnectivityChanged struct {
		Epoch uint64
		State ConnState
	}

	// Rearm restarts matching after a teardown.
	Rearm struct{}

	// SimulatedMatch fires when the offline demo delay elapses.
	SimulatedMatch struct{ Epoch uint64 }
)

func (Start) event()                    {}
func (Stop) event()                     {}
func (Skip) event()                     {}
func (SendChat) event()                 {}
func (SetTyping) event()                {}
func (MediaAcquired) event()            {}
func (MediaFailed) event()              {}
func (TransportOpened) event()          {}
func (TransportFailed) event()          {}
func (TransportClosed) event()          {}
func (Received) event()                 {}
func (LocalDescriptionReady) event()    {}
func (RemoteDescriptionApplied) event() {}
func (NegotiationFailed) event()        {}
func (LocalCandidate) event()           {}
func (ConnectivityChanged) event()      {}
func (Rearm) event()                    {}
func (SimulatedMatch) event()           {}
