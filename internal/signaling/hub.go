package signaling

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
)

// DefaultSendQueue is the outbound buffer per client. A client that lets it
// fill up is evicted.
const DefaultSendQueue = 256

type inbound struct {
	client   *Client
	envelope protocol.Envelope
}

// HubStats is what /stats reports.
type HubStats struct {
	Online int `json:"online"`
	Stats
}

// Hub is the central brain of the relay. A single goroutine running Run
// owns the client table and the Matchmaker, so every pool and pairing
// mutation is serialized.
type Hub struct {
	clients map[ClientID]*Client
	matches *Matchmaker
	relay   *Relay

	sendQueue int

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	stats      chan chan HubStats
	done       chan struct{}
}

// HubOptions tunes a Hub.
type HubOptions struct {
	Policy    MatchPolicy
	SendQueue int
}

// NewHub creates a new Hub instance.
func NewHub(opts HubOptions) *Hub {
	if opts.SendQueue <= 0 {
		opts.SendQueue = DefaultSendQueue
	}
	matches := NewMatchmaker(opts.Policy)
	return &Hub{
		clients:    make(map[ClientID]*Client),
		matches:    matches,
		relay:      NewRelay(matches),
		sendQueue:  opts.SendQueue,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		stats:      make(chan chan HubStats),
		done:       make(chan struct{}),
	}
}

// Register hands a new client to the hub.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister tells the hub a client's transport closed.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Dispatch queues an envelope received from c. It reports false once the
// hub has stopped.
func (h *Hub) Dispatch(c *Client, env protocol.Envelope) bool {
	select {
	case h.inbound <- inbound{client: c, envelope: env}:
		return true
	case <-h.done:
		return false
	}
}

// Stats asks the hub loop for a snapshot.
func (h *Hub) Stats(ctx context.Context) (HubStats, error) {
	reply := make(chan HubStats, 1)
	select {
	case h.stats <- reply:
	case <-h.done:
		return HubStats{}, chat.ErrClosed
	case <-ctx.Done():
		return HubStats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return HubStats{}, ctx.Err()
	}
}

// Run processes registrations, departures and envelopes until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, c := range h.clients {
			close(c.send)
		}
		h.clients = nil
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c.ID] = c
			slog.Info("client registered", "client", c.ID, "addr", c.conn.RemoteAddr(), "online", len(h.clients))

		case c := <-h.unregister:
			h.drop(c.ID)

		case in := <-h.inbound:
			if _, ok := h.clients[in.client.ID]; !ok {
				continue
			}
			h.handle(in.client, in.envelope)

		case reply := <-h.stats:
			reply <- HubStats{Online: len(h.clients), Stats: h.matches.Stats()}
		}
	}
}

// drop removes a client, releasing its pairing and requeueing the peer.
func (h *Hub) drop(id ClientID) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(c.send)
	slog.Info("client unregistered", "client", id, "online", len(h.clients))

	h.deliver(h.matches.Remove(id)...)
}

func (h *Hub) handle(c *Client, env protocol.Envelope) {
	slog.Debug("envelope received", "client", c.ID, "channel", env.Channel)

	switch env.Channel {
	case protocol.ChannelMatch:
		req, err := env.MatchRequest()
		if err != nil {
			slog.Warn("dropping match request", "client", c.ID, "err", err)
			return
		}
		h.deliver(h.matches.Submit(c.ID, req)...)

	case protocol.ChannelDisconnect:
		h.deliver(h.matches.Release(c.ID)...)

	case protocol.ChannelPeopleOnline:
		h.deliver(Notice{To: c.ID, Envelope: protocol.PeopleOnline(len(h.clients))})

	case protocol.ChannelDescription, protocol.ChannelICECandidate,
		protocol.ChannelMessage, protocol.ChannelTyping:
		notice, err := h.relay.Forward(c.ID, env)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, chat.ErrNoActivePairing) {
				level = slog.LevelDebug
			}
			slog.Log(context.Background(), level, "envelope not relayed", "client", c.ID, "channel", env.Channel, "err", err)
			return
		}
		h.deliver(notice)

	default:
		slog.Warn("unknown channel", "client", c.ID, "channel", env.Channel)
	}
}

// deliver queues notices without blocking the loop. A client whose queue is
// full is dropped, which in turn releases its pairing.
func (h *Hub) deliver(notices ...Notice) {
	var slow []ClientID
	for _, n := range notices {
		c, ok := h.clients[n.To]
		if !ok {
			continue
		}
		select {
		case c.send <- n.Envelope:
		default:
			slog.Warn("send queue full, evicting client", "client", c.ID)
			slow = append(slow, c.ID)
		}
	}
	for _, id := range slow {
		h.drop(id)
	}
}
