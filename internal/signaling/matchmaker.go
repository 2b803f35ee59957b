package signaling

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/google/uuid"
)

// ClientID identifies one transport connection on the relay.
type ClientID string

// NewClientID returns a fresh random client id.
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

// Notice is an envelope the Matchmaker wants delivered to a client.
type Notice struct {
	To       ClientID
	Envelope protocol.Envelope
}

// member is what the Matchmaker remembers about a client between requests.
type member struct {
	interests []string
	handle    string
}

// Matchmaker pairs waiting clients and tears pairings down. All methods must
// be called from a single goroutine; the Hub serializes them through its
// event loop.
type Matchmaker struct {
	policy   MatchPolicy
	pool     WaitingPool
	members  map[ClientID]*member
	pairings map[string]*Pairing
	byClient map[ClientID]*Pairing
	now      func() time.Time
}

// NewMatchmaker creates a Matchmaker using policy, or PolicyOverlap when nil.
func NewMatchmaker(policy MatchPolicy) *Matchmaker {
	if policy == nil {
		policy = PolicyOverlap
	}
	return &Matchmaker{
		policy:   policy,
		members:  make(map[ClientID]*member),
		pairings: make(map[string]*Pairing),
		byClient: make(map[ClientID]*Pairing),
		now:      time.Now,
	}
}

// Submit handles a match request. When a suitable partner is waiting a
// Pairing is formed and both sides are told; otherwise the requester waits.
// A request from a client that is already paired is ignored.
func (m *Matchmaker) Submit(id ClientID, req protocol.MatchRequest) []Notice {
	if p, ok := m.byClient[id]; ok {
		slog.Debug("match request ignored, client already paired", "client", id, "pairing", p.ID)
		return nil
	}

	interests := chat.NormalizeInterests(req.Interests)
	m.members[id] = &member{interests: interests, handle: req.Twitter}

	_, prev := m.pool.Remove(id)

	partner, ok := m.pool.Take(interests, m.policy)
	if !ok {
		w := waiter{ID: id, Interests: interests, Since: m.now()}
		if prev >= 0 {
			m.pool.Insert(prev, w)
		} else {
			m.pool.PushBack(w)
		}
		slog.Debug("client waiting", "client", id, "waiting", m.pool.Len())
		return nil
	}

	return m.pair(id, partner.ID)
}

// pair forms a Pairing between requester and a partner taken from the pool.
func (m *Matchmaker) pair(requester, partner ClientID) []Notice {
	req := m.member(requester)
	other := m.member(partner)

	shared := chat.SharedInterests(req.interests, other.interests)
	p := &Pairing{
		ID:      uuid.NewString(),
		Members: [2]ClientID{requester, partner},
		Created: m.now(),
		Shared:  shared,
	}
	m.pairings[p.ID] = p
	m.byClient[requester] = p
	m.byClient[partner] = p

	slog.Info("pairing formed", "pairing", p.ID, "a", requester, "b", partner, "shared", shared)

	connected := protocol.Connected(shared)
	notices := []Notice{
		{To: partner, Envelope: connected},
		{To: requester, Envelope: connected},
	}
	if req.handle != "" {
		notices = append(notices, Notice{To: partner, Envelope: protocol.Handle(req.handle)})
	}
	if other.handle != "" {
		notices = append(notices, Notice{To: requester, Envelope: protocol.Handle(other.handle)})
	}
	return append(notices, Notice{To: requester, Envelope: protocol.Begin()})
}

// Release ends whatever id is doing. A waiting client leaves the pool. A
// paired client's partner is told to disconnect and goes back to the head
// of the pool.
func (m *Matchmaker) Release(id ClientID) []Notice {
	if _, i := m.pool.Remove(id); i >= 0 {
		slog.Debug("client left pool", "client", id)
		return nil
	}

	p, ok := m.byClient[id]
	if !ok {
		return nil
	}
	peer, _ := p.Peer(id)

	delete(m.pairings, p.ID)
	delete(m.byClient, id)
	delete(m.byClient, peer)

	m.pool.PushFront(waiter{ID: peer, Interests: m.member(peer).interests, Since: m.now()})

	slog.Info("pairing released", "pairing", p.ID, "by", id, "requeued", peer)
	return []Notice{{To: peer, Envelope: protocol.Disconnect()}}
}

// Remove forgets a client whose transport closed.
func (m *Matchmaker) Remove(id ClientID) []Notice {
	notices := m.Release(id)
	delete(m.members, id)
	return notices
}

func (m *Matchmaker) member(id ClientID) *member {
	if mem, ok := m.members[id]; ok {
		return mem
	}
	mem := &member{}
	m.members[id] = mem
	return mem
}

// PeerOf returns the partner of id in its active pairing.
func (m *Matchmaker) PeerOf(id ClientID) (ClientID, bool) {
	p, ok := m.byClient[id]
	if !ok {
		return "", false
	}
	return p.Peer(id)
}

// PairingOf returns the active pairing of id.
func (m *Matchmaker) PairingOf(id ClientID) (*Pairing, bool) {
	p, ok := m.byClient[id]
	return p, ok
}

// Waiting reports whether id is in the pool.
func (m *Matchmaker) Waiting(id ClientID) bool {
	return m.pool.Contains(id)
}

// Stats is a snapshot of the Matchmaker's tables.
type Stats struct {
	Waiting     int            `json:"waiting"`
	Pairings    int            `json:"pairings"`
	Negotiation map[string]int `json:"negotiation,omitempty"`
}

func (m *Matchmaker) Stats() Stats {
	s := Stats{
		Waiting:     m.pool.Len(),
		Pairings:    len(m.pairings),
		Negotiation: make(map[string]int),
	}
	for _, p := range m.pairings {
		s.Negotiation[p.State.String()]++
	}
	return s
}

// Pool exposes the waiting pool for inspection.
func (m *Matchmaker) Pool() *WaitingPool {
	return &m.pool
}
