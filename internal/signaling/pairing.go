package signaling

import "time"

// NegotiationState tracks how far the paired clients have progressed with
// the description exchange, as observed by the relay.
type NegotiationState int

const (
	NegotiationPending NegotiationState = iota
	NegotiationOffered
	NegotiationAnswered
)

func (s NegotiationState) String() string {
	switch s {
	case NegotiationPending:
		return "pending"
	case NegotiationOffered:
		return "offered"
	case NegotiationAnswered:
		return "answered"
	}
	return "unknown"
}

// Pairing is the symmetric relation between two matched clients.
type Pairing struct {
	ID      string
	Members [2]ClientID
	Created time.Time
	Shared  []string
	State   NegotiationState

	// offerer is the member that sent the first description.
	offerer ClientID
}

// Peer returns the other member of the pairing.
func (p *Pairing) Peer(id ClientID) (ClientID, bool) {
	switch id {
	case p.Members[0]:
		return p.Members[1], true
	case p.Members[1]:
		return p.Members[0], true
	}
	return "", false
}

// observeDescription advances the negotiation state when a member relays a
// session description.
func (p *Pairing) observeDescription(from ClientID) {
	switch p.State {
	case NegotiationPending:
		p.State = NegotiationOffered
		p.offerer = from
	case NegotiationOffered:
		if from != p.offerer {
			p.State = NegotiationAnswered
		}
	}
}
