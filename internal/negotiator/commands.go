package negotiator

import (
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Command is a side effect requested by Next.
type Command interface {
	command()
}

// Speaker identifies who wrote a chat line.
type Speaker int

const (
	You Speaker = iota
	Stranger
)

func (s Speaker) String() string {
	if s == You {
		return "You"
	}
	return "Stranger"
}

type (
	AcquireMedia   struct{}
	OpenTransport  struct{}
	CloseTransport struct{}
	Send           struct{ Envelope protocol.Envelope }

	// PreparePeer creates the connectivity primitive for a new session.
	PreparePeer struct{ Epoch uint64 }
	ClosePeer   struct{ Epoch uint64 }

	CreateOffer          struct{ Epoch uint64 }
	CreateAnswer         struct{ Epoch uint64 }
	SetRemoteDescription struct {
		Epoch       uint64
		Description webrtc.SessionDescription
	}
	// AddCandidates applies remote candidates in slice order.
	AddCandidates struct {
		Epoch      uint64
		Candidates []webrtc.ICECandidateInit
	}

	ShowStatus          struct{ Text string }
	ShowCommonInterests struct{ Text string }
	ShowChat            struct {
		From Speaker
		Text string
	}
	ShowTyping     struct{ Typing bool }
	ShowPeerHandle struct{ Handle string }
	ShowOnline     struct{ Count int }
	ShowError      struct{ Err error }

	// ScheduleRearm asks the runtime to deliver Rearm on its next step.
	ScheduleRearm struct{}

	// ScheduleSimulatedMatch asks for SimulatedMatch after a random delay.
	// AfterSkip selects the shorter delay used when skipping a demo peer.
	ScheduleSimulatedMatch struct {
		Epoch     uint64
		AfterSkip bool
	}

	// Drop records input that was ignored.
	Drop struct {
		What   string
		Reason error
	}
)

func (AcquireMedia) command()           {}
func (OpenTransport) command()          {}
func (CloseTransport) command()         {}
func (Send) command()                   {}
func (PreparePeer) command()            {}
func (ClosePeer) command()              {}
func (CreateOffer) command()            {}
func (CreateAnswer) command()           {}
func (SetRemoteDescription) command()   {}
func (AddCandidates) command()          {}
func (ShowStatus) command()             {}
func (ShowCommonInterests) command()    {}
func (ShowChat) command()               {}
func (ShowTyping) command()             {}
func (ShowPeerHandle) command()         {}
func (ShowOnline) command()             {}
func (ShowError) command()              {}
func (ScheduleRearm) command()          {}
func (ScheduleSimulatedMatch) command() {}
func (Drop) command()                   {}
