package signaling

import (
	"log/slog"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
)

// Relay forwards pairing-scoped envelopes (negotiation and chat) to the
// sender's partner. It keeps no state of its own beyond the peer lookup.
type Relay struct {
	matches *Matchmaker
}

func NewRelay(m *Matchmaker) *Relay {
	return &Relay{matches: m}
}

// Forward returns the notice delivering env to the partner of from. Without
// an active pairing, or with an unusable payload, nothing is forwarded and
// the reason is returned for logging only.
func (r *Relay) Forward(from ClientID, env protocol.Envelope) (Notice, error) {
	p, ok := r.matches.PairingOf(from)
	if !ok {
		return Notice{}, chat.WrapError("relay "+string(env.Channel), chat.ErrNoActivePairing, string(from))
	}
	peer, _ := p.Peer(from)

	switch env.Channel {
	case protocol.ChannelMessage:
		if _, err := env.Text(); err != nil {
			return Notice{}, err
		}
	case protocol.ChannelTyping:
		if _, err := env.Typing(); err != nil {
			return Notice{}, err
		}
	case protocol.ChannelDescription:
		if len(env.Data) == 0 {
			return Notice{}, chat.WrapError("relay description", chat.ErrMalformedEnvelope, "missing payload")
		}
		p.observeDescription(from)
		slog.Debug("description relayed", "pairing", p.ID, "from", from, "state", p.State)
	case protocol.ChannelICECandidate:
		if len(env.Data) == 0 {
			return Notice{}, chat.WrapError("relay candidate", chat.ErrMalformedEnvelope, "missing payload")
		}
	}

	return Notice{To: peer, Envelope: env}, nil
}
