package negotiator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Default demo-mode delays, taken from the browser client.
const (
	DefaultDemoDelayMin = 2 * time.Second
	DefaultDemoDelayMax = 5 * time.Second
	DefaultSkipDelay    = 1 * time.Second
)

// Options wires a Negotiator to its collaborators.
type Options struct {
	Dial    Dialer
	Media   MediaProvider
	Peers   PeerFactory
	Display Display

	Constraints Constraints

	// DemoDelayMin..DemoDelayMax bounds the wait before a simulated match
	// when the relay is unreachable. SkipDelay is the base wait after
	// skipping a simulated peer; up to half of it again is added at random.
	DemoDelayMin time.Duration
	DemoDelayMax time.Duration
	SkipDelay    time.Duration
}

// Runtime-only events; Next never sees them.
type (
	channelOpened struct {
		gen     uint64
		channel Channel
	}
	channelFailed struct {
		gen uint64
		err error
	}
	channelEnvelope struct {
		gen      uint64
		envelope protocol.Envelope
	}
	channelClosed struct {
		gen uint64
		err error
	}
	mediaToggle struct {
		audio, video *bool
	}
)

func (channelOpened) event()   {}
func (channelFailed) event()   {}
func (channelEnvelope) event() {}
func (channelClosed) event()   {}
func (mediaToggle) event()     {}

// Negotiator runs the state machine for one UI session. All state changes
// happen on the goroutine executing Run; the public methods only enqueue
// events.
type Negotiator struct {
	opts Options

	events  chan Event
	backlog []Event
	quit    chan struct{}
	ctx     context.Context

	state State
	mu    sync.Mutex
	snap  State

	channel    Channel
	channelGen uint64
	dialing    bool

	peer      Peer
	peerEpoch uint64
	stream    Stream
	demoTimer *time.Timer
}

// New creates a Negotiator in the Idle phase.
func New(opts Options) *Negotiator {
	if opts.DemoDelayMin <= 0 {
		opts.DemoDelayMin = DefaultDemoDelayMin
	}
	if opts.DemoDelayMax < opts.DemoDelayMin {
		opts.DemoDelayMax = opts.DemoDelayMin
	}
	if opts.SkipDelay <= 0 {
		opts.SkipDelay = DefaultSkipDelay
	}
	if !opts.Constraints.Audio && !opts.Constraints.Video {
		opts.Constraints = Constraints{Audio: true, Video: true}
	}
	return &Negotiator{
		opts:   opts,
		events: make(chan Event, 64),
		quit:   make(chan struct{}),
	}
}

// Start begins looking for a stranger.
func (n *Negotiator) Start(interests []string, handle string) {
	n.post(Start{Interests: interests, Handle: handle})
}

// Skip leaves the current stranger and looks for another.
func (n *Negotiator) Skip() { n.post(Skip{}) }

// Stop returns to Idle and closes the relay connection.
func (n *Negotiator) Stop() { n.post(Stop{}) }

// SendChat sends a chat line to the current stranger.
func (n *Negotiator) SendChat(text string) { n.post(SendChat{Text: text}) }

// SetTyping reports whether the user is typing. The update is advisory and
// is dropped when the event queue is full.
func (n *Negotiator) SetTyping(typing bool) { n.tryPost(SetTyping{Typing: typing}) }

// SetMuted enables or disables the local audio track.
func (n *Negotiator) SetMuted(muted bool) {
	enabled := !muted
	n.post(mediaToggle{audio: &enabled})
}

// SetVideoOff enables or disables the local video track.
func (n *Negotiator) SetVideoOff(off bool) {
	enabled := !off
	n.post(mediaToggle{video: &enabled})
}

// State returns the state after the most recent step.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snap
}

func (n *Negotiator) post(ev Event) {
	select {
	case n.events <- ev:
	case <-n.quit:
	}
}

func (n *Negotiator) tryPost(ev Event) {
	select {
	case n.events <- ev:
	default:
		slog.Debug("event queue full, dropping", "event", ev)
	}
}

// Run processes events until ctx is cancelled.
func (n *Negotiator) Run(ctx context.Context) error {
	n.ctx = ctx
	defer n.shutdown()

	for {
		for len(n.backlog) > 0 {
			ev := n.backlog[0]
			n.backlog = n.backlog[1:]
			n.step(ev)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-n.events:
			n.step(ev)
		}
	}
}

func (n *Negotiator) shutdown() {
	close(n.quit)
	if n.demoTimer != nil {
		n.demoTimer.Stop()
	}
	n.closePeer()
	n.closeChannel()
	if n.stream != nil {
		n.stream.Close()
		n.stream = nil
	}
}

// step applies one event.
func (n *Negotiator) step(ev Event) {
	switch ev := ev.(type) {
	case channelOpened:
		n.dialing = false
		if ev.gen != n.channelGen {
			ev.channel.Close()
			return
		}
		n.channel = ev.channel
		go n.readChannel(ev.gen, ev.channel)
		n.apply(TransportOpened{})
	case channelFailed:
		n.dialing = false
		if ev.gen == n.channelGen {
			n.apply(TransportFailed{Err: ev.err})
		}
	case channelEnvelope:
		if ev.gen == n.channelGen && n.channel != nil {
			n.apply(Received{Envelope: ev.envelope})
		}
	case channelClosed:
		if ev.gen == n.channelGen && n.channel != nil {
			n.channel = nil
			n.channelGen++
			slog.Info("relay connection closed", "err", ev.err)
			n.apply(TransportClosed{Err: ev.err})
		}
	case mediaToggle:
		if n.stream == nil {
			return
		}
		if ev.audio != nil {
			n.stream.SetAudioEnabled(*ev.audio)
		}
		if ev.video != nil {
			n.stream.SetVideoEnabled(*ev.video)
		}
	default:
		n.apply(ev)
	}
}

func (n *Negotiator) apply(ev Event) {
	from := n.state.Phase
	next, cmds := Next(n.state, ev)
	n.state = next

	n.mu.Lock()
	n.snap = next
	n.mu.Unlock()

	if from != next.Phase {
		slog.Debug("negotiator transition", "from", from, "to", next.Phase, "epoch", next.Session.Epoch)
	}
	for _, cmd := range cmds {
		n.exec(cmd)
	}
}

func (n *Negotiator) exec(cmd Command) {
	d := n.opts.Display

	switch cmd := cmd.(type) {
	case AcquireMedia:
		stream, err := n.opts.Media.Acquire(n.ctx, n.opts.Constraints)
		if err != nil {
			slog.Warn("media acquisition failed", "err", err)
			n.backlog = append(n.backlog, MediaFailed{Err: err})
			return
		}
		n.stream = stream
		n.backlog = append(n.backlog, MediaAcquired{})

	case OpenTransport:
		if n.dialing || n.channel != nil {
			return
		}
		n.dialing = true
		n.channelGen++
		go n.dial(n.channelGen)

	case CloseTransport:
		n.closeChannel()

	case Send:
		if n.channel == nil {
			slog.Debug("no relay connection, envelope dropped", "channel", cmd.Envelope.Channel)
			return
		}
		if err := n.channel.Send(cmd.Envelope); err != nil {
			slog.Debug("send failed", "channel", cmd.Envelope.Channel, "err", err)
		}

	case PreparePeer:
		n.closePeer()
		peer, err := n.opts.Peers.NewPeer(n.stream, n.hooks(cmd.Epoch))
		if err != nil {
			slog.Error("create peer connection", "err", err)
			return
		}
		n.peer, n.peerEpoch = peer, cmd.Epoch

	case ClosePeer:
		if n.peerEpoch == cmd.Epoch {
			n.closePeer()
		}

	case CreateOffer:
		n.negotiate(cmd.Epoch, "create offer", func(p Peer) (Event, error) {
			desc, err := p.CreateOffer()
			return LocalDescriptionReady{Epoch: cmd.Epoch, Description: desc}, err
		})

	case CreateAnswer:
		n.negotiate(cmd.Epoch, "create answer", func(p Peer) (Event, error) {
			desc, err := p.CreateAnswer()
			return LocalDescriptionReady{Epoch: cmd.Epoch, Description: desc}, err
		})

	case SetRemoteDescription:
		n.negotiate(cmd.Epoch, "set remote description", func(p Peer) (Event, error) {
			return RemoteDescriptionApplied{Epoch: cmd.Epoch}, p.SetRemoteDescription(cmd.Description)
		})

	case AddCandidates:
		if n.peer == nil || n.peerEpoch != cmd.Epoch {
			return
		}
		for _, c := range cmd.Candidates {
			if err := n.peer.AddICECandidate(c); err != nil {
				slog.Warn("add ice candidate", "err", err)
			}
		}

	case ShowStatus:
		d.Status(cmd.Text)
	case ShowCommonInterests:
		d.CommonInterests(cmd.Text)
	case ShowChat:
		d.Chat(cmd.From, cmd.Text)
	case ShowTyping:
		d.Typing(cmd.Typing)
	case ShowPeerHandle:
		d.PeerHandle(cmd.Handle)
	case ShowOnline:
		d.Online(cmd.Count)
	case ShowError:
		d.Error(cmd.Err)

	case ScheduleRearm:
		n.backlog = append(n.backlog, Rearm{})

	case ScheduleSimulatedMatch:
		if n.demoTimer != nil {
			n.demoTimer.Stop()
		}
		epoch := cmd.Epoch
		n.demoTimer = time.AfterFunc(n.demoDelay(cmd.AfterSkip), func() {
			n.post(SimulatedMatch{Epoch: epoch})
		})

	case Drop:
		slog.Debug("input dropped", "what", cmd.What, "reason", cmd.Reason)
	}
}

// negotiate runs one negotiation step against the current peer and queues
// its result for the next step.
func (n *Negotiator) negotiate(epoch uint64, op string, fn func(Peer) (Event, error)) {
	if n.peer == nil || n.peerEpoch != epoch {
		n.backlog = append(n.backlog, NegotiationFailed{Epoch: epoch, Err: chat.NewError(op, chat.ErrPeerLost)})
		return
	}
	ev, err := fn(n.peer)
	if err != nil {
		slog.Warn("negotiation step failed", "op", op, "err", err)
		n.backlog = append(n.backlog, NegotiationFailed{Epoch: epoch, Err: chat.NewError(op, err)})
		return
	}
	n.backlog = append(n.backlog, ev)
}

func (n *Negotiator) hooks(epoch uint64) PeerHooks {
	return PeerHooks{
		OnCandidate: func(c webrtc.ICECandidateInit) {
			n.post(LocalCandidate{Epoch: epoch, Candidate: c})
		},
		OnStateChange: func(s ConnState) {
			n.post(ConnectivityChanged{Epoch: epoch, State: s})
		},
	}
}

func (n *Negotiator) demoDelay(afterSkip bool) time.Duration {
	if afterSkip {
		return n.opts.SkipDelay + rand.N(n.opts.SkipDelay/2+1)
	}
	spread := n.opts.DemoDelayMax - n.opts.DemoDelayMin
	return n.opts.DemoDelayMin + rand.N(spread+1)
}

func (n *Negotiator) dial(gen uint64) {
	ch, err := n.opts.Dial(n.ctx)
	if err != nil {
		n.post(channelFailed{gen: gen, err: err})
		return
	}
	n.post(channelOpened{gen: gen, channel: ch})
}

func (n *Negotiator) readChannel(gen uint64, ch Channel) {
	for env := range ch.Incoming() {
		n.post(channelEnvelope{gen: gen, envelope: env})
	}
	n.post(channelClosed{gen: gen, err: ch.Err()})
}

func (n *Negotiator) closePeer() {
	if n.peer == nil {
		return
	}
	if err := n.peer.Close(); err != nil {
		slog.Debug("close peer", "err", err)
	}
	n.peer = nil
}

func (n *Negotiator) closeChannel() {
	if n.channel == nil {
		return
	}
	ch := n.channel
	n.channel = nil
	n.channelGen++
	go ch.Close()
}
