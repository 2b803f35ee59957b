package negotiator

import (
	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Status lines shown to the user.
const (
	StatusLooking        = "Looking for someone to video chat with..."
	StatusConnected      = "Connected! You are now video chatting with a stranger."
	StatusStrangerLeft   = "Stranger has disconnected."
	StatusConnectionLost = "Connection lost."
	StatusOffline        = "Relay unreachable, chatting in demo mode."
	StatusSkipped        = "You skipped the stranger."
	StatusStopped        = "You have disconnected."

	// DemoPeerHandle is shown for the simulated stranger.
	DemoPeerHandle = "@demo_user"
)

// Next returns the state following ev and the commands that carry it out.
// It performs no I/O.
func Next(st State, ev Event) (State, []Command) {
	switch ev := ev.(type) {
	case Start:
		return onStart(st, ev)
	case Stop:
		return onStop(st)
	case Skip:
		return onSkip(st)
	case SendChat:
		return onSendChat(st, ev)
	case SetTyping:
		return onSetTyping(st, ev)

	case MediaAcquired:
		st.MediaReady = true
		if !st.Active || st.Phase != Idle {
			return st, nil
		}
		return request(st)
	case MediaFailed:
		st.Active = false
		st.Phase = Idle
		return st, []Command{ShowError{Err: chat.NewError("acquire media", chat.ErrMediaPermissionDenied)}}

	case TransportOpened:
		return onTransportOpened(st)
	case TransportFailed:
		return onTransportFailed(st, ev)
	case TransportClosed:
		return onTransportClosed(st)

	case Received:
		return onReceived(st, ev.Envelope)

	case LocalDescriptionReady:
		return onLocalDescription(st, ev)
	case RemoteDescriptionApplied:
		return onRemoteApplied(st, ev)
	case NegotiationFailed:
		if ev.Epoch != st.Session.Epoch || !st.Phase.paired() {
			return st, stale("negotiation failure")
		}
		return teardown(st, true, StatusConnectionLost)
	case LocalCandidate:
		return onLocalCandidate(st, ev)
	case ConnectivityChanged:
		return onConnectivity(st, ev)

	case Rearm:
		if !st.Active || st.Phase != Terminating {
			return st, nil
		}
		return request(st)
	case SimulatedMatch:
		return onSimulatedMatch(st, ev)
	}

	return st, []Command{Drop{What: "unknown event"}}
}

func stale(what string) []Command {
	return []Command{Drop{What: "stale " + what}}
}

func onStart(st State, ev Start) (State, []Command) {
	if st.Active {
		return st, []Command{Drop{What: "start while active"}}
	}
	st.Active = true
	st.Interests = chat.NormalizeInterests(ev.Interests)
	st.Handle = ev.Handle

	if !st.MediaReady {
		return st, []Command{AcquireMedia{}}
	}
	return request(st)
}

// request discards any previous session and asks the relay for a match, or
// opens the transport first.
func request(st State) (State, []Command) {
	st.epochs++
	st.Session = Session{Epoch: st.epochs}
	st.Pairing = nil
	st.Phase = Requesting

	cmds := []Command{
		ShowStatus{Text: StatusLooking},
		PreparePeer{Epoch: st.Session.Epoch},
	}
	if st.Online {
		return st, append(cmds, Send{Envelope: matchEnvelope(st)})
	}
	return st, append(cmds, OpenTransport{})
}

func matchEnvelope(st State) protocol.Envelope {
	return protocol.Match(protocol.MatchRequest{
		Data:      protocol.MediaVideo,
		Interests: st.Interests,
		Twitter:   st.Handle,
	})
}

// teardown ends the current pairing and schedules a fresh request.
// notifyPeer sends an explicit disconnect when the relay can carry it.
func teardown(st State, notifyPeer bool, status string) (State, []Command) {
	var cmds []Command
	if notifyPeer && st.Online && st.Pairing != nil && st.Pairing.Kind == LivePairing {
		cmds = append(cmds, Send{Envelope: protocol.Disconnect()})
	}
	cmds = append(cmds,
		ClosePeer{Epoch: st.Session.Epoch},
		ShowTyping{Typing: false},
		ShowStatus{Text: status},
		ScheduleRearm{},
	)

	st.Phase = Terminating
	st.Pairing = nil
	st.Session = Session{Epoch: st.Session.Epoch}
	return st, cmds
}

func onStop(st State) (State, []Command) {
	if !st.Active {
		return st, nil
	}

	var cmds []Command
	if st.Online && st.Pairing != nil && st.Pairing.Kind == LivePairing {
		cmds = append(cmds, Send{Envelope: protocol.Disconnect()})
	}
	if st.Phase != Idle {
		cmds = append(cmds, ClosePeer{Epoch: st.Session.Epoch})
	}
	if st.Online {
		cmds = append(cmds, CloseTransport{})
	}
	cmds = append(cmds, ShowTyping{Typing: false}, ShowStatus{Text: StatusStopped})

	st.Active = false
	st.Online = false
	st.Phase = Idle
	st.Pairing = nil
	st.epochs++
	st.Session = Session{Epoch: st.epochs}
	return st, cmds
}

func onSkip(st State) (State, []Command) {
	if !st.Phase.paired() || st.Pairing == nil {
		return st, []Command{Drop{What: "skip", Reason: chat.ErrNoActivePairing}}
	}

	if st.Pairing.Kind == DegradedPairing || !st.Online {
		prev := st.Session.Epoch
		st.epochs++
		st.Session = Session{Epoch: st.epochs}
		st.Pairing = nil
		st.Phase = Requesting
		return st, []Command{
			ClosePeer{Epoch: prev},
			ShowStatus{Text: StatusLooking},
			PreparePeer{Epoch: st.Session.Epoch},
			ScheduleSimulatedMatch{Epoch: st.Session.Epoch, AfterSkip: true},
		}
	}

	return teardown(st, true, StatusSkipped)
}

func onSendChat(st State, ev SendChat) (State, []Command) {
	text := chat.Sanitize(ev.Text)
	if text == "" {
		return st, nil
	}
	if !st.Phase.paired() || st.Pairing == nil {
		return st, []Command{Drop{What: "chat", Reason: chat.ErrNoActivePairing}}
	}

	cmds := []Command{ShowChat{From: You, Text: text}}
	if st.Online && st.Pairing.Kind == LivePairing {
		cmds = append(cmds,
			Send{Envelope: protocol.Message(text)},
			Send{Envelope: protocol.Typing(false)},
		)
	}
	return st, cmds
}

func onSetTyping(st State, ev SetTyping) (State, []Command) {
	if !st.Online || st.Pairing == nil || st.Pairing.Kind != LivePairing {
		return st, nil
	}
	return st, []Command{Send{Envelope: protocol.Typing(ev.Typing)}}
}

func onTransportOpened(st State) (State, []Command) {
	if !st.Active {
		return st, []Command{CloseTransport{}}
	}
	st.Online = true
	if st.Phase == Requesting {
		return st, []Command{Send{Envelope: matchEnvelope(st)}}
	}
	return st, nil
}

func onTransportFailed(st State, ev TransportFailed) (State, []Command) {
	st.Online = false
	if !st.Active || st.Phase != Requesting {
		return st, nil
	}
	return st, []Command{
		Drop{What: "relay", Reason: ev.Err},
		ShowStatus{Text: StatusOffline},
		ScheduleSimulatedMatch{Epoch: st.Session.Epoch},
	}
}

func onTransportClosed(st State) (State, []Command) {
	wasOnline := st.Online
	st.Online = false
	if !st.Active || !wasOnline {
		return st, nil
	}

	switch {
	case st.Phase.paired() && st.Pairing != nil && st.Pairing.Kind == DegradedPairing:
		return st, nil
	case st.Phase.paired(), st.Phase == Requesting:
		return teardown(st, false, StatusConnectionLost)
	}
	return st, nil
}

func onSimulatedMatch(st State, ev SimulatedMatch) (State, []Command) {
	if ev.Epoch != st.Session.Epoch || st.Phase != Requesting || st.Online {
		return st, stale("simulated match")
	}

	st.Phase = Connected
	st.Pairing = &Pairing{Kind: DegradedPairing, PeerHandle: DemoPeerHandle}
	return st, []Command{
		ShowStatus{Text: StatusConnected},
		ShowPeerHandle{Handle: DemoPeerHandle},
	}
}

func onReceived(st State, env protocol.Envelope) (State, []Command) {
	switch env.Channel {
	case protocol.ChannelConnected:
		if st.Phase != Requesting || !st.Online {
			return st, []Command{Drop{What: "connected outside requesting"}}
		}
		shared := env.Interests()
		st.Phase = Paired
		st.Pairing = &Pairing{Kind: LivePairing, Shared: shared}

		cmds := []Command{ShowStatus{Text: StatusConnected}}
		if summary := chat.InterestSummary(shared); summary != "" {
			cmds = append(cmds, ShowCommonInterests{Text: summary})
		}
		return st, cmds

	case protocol.ChannelHandle:
		if st.Pairing == nil {
			return st, []Command{Drop{What: "handle", Reason: chat.ErrNoActivePairing}}
		}
		handle, err := env.Text()
		if err != nil {
			return st, []Command{Drop{What: "handle", Reason: err}}
		}
		handle = chat.Sanitize(handle)
		p := *st.Pairing
		p.PeerHandle = handle
		st.Pairing = &p
		return st, []Command{ShowPeerHandle{Handle: handle}}

	case protocol.ChannelBegin:
		if st.Phase != Paired {
			return st, []Command{Drop{What: "begin outside paired"}}
		}
		st.Phase = Offering
		return st, []Command{CreateOffer{Epoch: st.Session.Epoch}}

	case protocol.ChannelDescription:
		if !st.Phase.paired() {
			return st, []Command{Drop{What: "description", Reason: chat.ErrNoActivePairing}}
		}
		desc, err := env.SessionDescription()
		if err != nil {
			return st, []Command{Drop{What: "description", Reason: err}}
		}
		if st.Phase == Paired {
			st.Phase = Answering
		}
		return st, []Command{SetRemoteDescription{Epoch: st.Session.Epoch, Description: desc}}

	case protocol.ChannelICECandidate:
		if !st.Phase.paired() {
			return st, []Command{Drop{What: "candidate", Reason: chat.ErrNoActivePairing}}
		}
		c, err := env.ICECandidate()
		if err != nil {
			return st, []Command{Drop{What: "candidate", Reason: err}}
		}
		if st.Session.RemoteSet {
			return st, []Command{AddCandidates{Epoch: st.Session.Epoch, Candidates: []webrtc.ICECandidateInit{c}}}
		}
		st.Session.PendingRemote = appendCandidate(st.Session.PendingRemote, c)
		return st, nil

	case protocol.ChannelMessage:
		if st.Pairing == nil {
			return st, []Command{Drop{What: "message", Reason: chat.ErrNoActivePairing}}
		}
		text, err := env.Text()
		if err != nil {
			return st, []Command{Drop{What: "message", Reason: err}}
		}
		if text = chat.Sanitize(text); text == "" {
			return st, nil
		}
		return st, []Command{ShowChat{From: Stranger, Text: text}}

	case protocol.ChannelTyping:
		if st.Pairing == nil {
			return st, []Command{Drop{What: "typing", Reason: chat.ErrNoActivePairing}}
		}
		typing, err := env.Typing()
		if err != nil {
			return st, []Command{Drop{What: "typing", Reason: err}}
		}
		return st, []Command{ShowTyping{Typing: typing}}

	case protocol.ChannelDisconnect:
		if st.Pairing == nil {
			return st, []Command{Drop{What: "disconnect", Reason: chat.ErrNoActivePairing}}
		}
		return teardown(st, false, StatusStrangerLeft)

	case protocol.ChannelPeopleOnline:
		n, err := env.Count()
		if err != nil {
			return st, nil
		}
		return st, []Command{ShowOnline{Count: n}}
	}

	return st, []Command{Drop{What: "envelope on " + string(env.Channel)}}
}

func onLocalDescription(st State, ev LocalDescriptionReady) (State, []Command) {
	if ev.Epoch != st.Session.Epoch || !st.Phase.paired() {
		return st, stale("local description")
	}

	desc := ev.Description
	st.Session.Local = &desc
	st.Session.LocalSet = true
	st.Session.answering = false

	if st.Session.LocalSent || !st.Online {
		return st, nil
	}
	st.Session.LocalSent = true

	cmds := []Command{Send{Envelope: protocol.Description(desc)}}
	for _, c := range st.Session.PendingLocal {
		cmds = append(cmds, Send{Envelope: protocol.Candidate(c)})
	}
	st.Session.PendingLocal = nil
	return st, cmds
}

func onRemoteApplied(st State, ev RemoteDescriptionApplied) (State, []Command) {
	if ev.Epoch != st.Session.Epoch || !st.Phase.paired() {
		return st, stale("remote description")
	}
	st.Session.RemoteSet = true

	var cmds []Command
	if len(st.Session.PendingRemote) > 0 {
		cmds = append(cmds, AddCandidates{Epoch: st.Session.Epoch, Candidates: st.Session.PendingRemote})
		st.Session.PendingRemote = nil
	}
	if !st.Session.LocalSet && !st.Session.answering {
		st.Session.answering = true
		cmds = append(cmds, CreateAnswer{Epoch: st.Session.Epoch})
	}
	return st, cmds
}

func onLocalCandidate(st State, ev LocalCandidate) (State, []Command) {
	if ev.Epoch != st.Session.Epoch || !st.Phase.paired() {
		return st, stale("local candidate")
	}
	if st.Session.LocalSent {
		return st, []Command{Send{Envelope: protocol.Candidate(ev.Candidate)}}
	}
	st.Session.PendingLocal = appendCandidate(st.Session.PendingLocal, ev.Candidate)
	return st, nil
}

func onConnectivity(st State, ev ConnectivityChanged) (State, []Command) {
	if ev.Epoch != st.Session.Epoch || !st.Phase.paired() {
		return st, stale("connectivity change")
	}

	switch {
	case ev.State == ConnConnected:
		st.Phase = Connected
		return st, nil
	case ev.State.lost():
		if st.Pairing != nil && st.Pairing.Kind == DegradedPairing {
			return st, nil
		}
		return teardown(st, true, StatusConnectionLost)
	}
	return st, nil
}
