package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/dns"
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// DefaultKeepAlive is how often a peopleOnline envelope is sent.
	DefaultKeepAlive = 30 * time.Second

	handshakeTimeout = 10 * time.Second
)

// Options configures Connect.
type Options struct {
	URL string

	// KeepAlive is the peopleOnline interval; zero means DefaultKeepAlive.
	KeepAlive time.Duration

	// Codec is JSON when nil.
	Codec protocol.Codec
}

// ConnectionError reports that the relay could not be reached. It wraps
// chat.ErrTransportUnavailable; callers degrade to offline pairing.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{chat.ErrTransportUnavailable, e.Err}
}

// Channel is a client's persistent connection to the relay. Once it closes
// it stays closed; reconnecting means calling Connect again.
type Channel struct {
	conn     *websocket.Conn
	codec    protocol.Codec
	incoming chan protocol.Envelope
	outgoing chan protocol.Envelope

	// stop is closed by Close; done is closed once the connection is gone.
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once

	mu     sync.Mutex
	reason error
}

// Connect dials the relay. It never panics on an unreachable relay; the
// returned error is a *ConnectionError.
func Connect(ctx context.Context, opts Options) (*Channel, error) {
	if opts.Codec == nil {
		opts.Codec = protocol.JSON
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		NetDialContext:   dns.DialContext,
	}

	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, &ConnectionError{URL: opts.URL, Err: err}
	}

	c := &Channel{
		conn:     conn,
		codec:    opts.Codec,
		incoming: make(chan protocol.Envelope, 32),
		outgoing: make(chan protocol.Envelope, 32),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump(opts.KeepAlive)

	slog.Info("connected to relay", "url", opts.URL, "codec", opts.Codec.Name())
	return c, nil
}

// readPump decodes envelopes until the connection fails. Malformed frames
// are logged and skipped.
func (c *Channel) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.terminate(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := protocol.CodecFor(kind == websocket.BinaryMessage).Unmarshal(frame)
		if err != nil {
			slog.Warn("dropping envelope from relay", "err", err)
			continue
		}

		select {
		case c.incoming <- env:
		case <-c.stop:
			c.terminate(chat.ErrClosed)
			return
		}
	}
}

// writePump writes envelopes, keepalives and pings.
func (c *Channel) writePump(keepAlive time.Duration) {
	ping := time.NewTicker(pingPeriod)
	alive := time.NewTicker(keepAlive)

	defer func() {
		ping.Stop()
		alive.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			if err := c.write(env); err != nil {
				c.terminate(err)
				return
			}

		case <-alive.C:
			if err := c.write(protocol.KeepAlive()); err != nil {
				c.terminate(err)
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.terminate(err)
				return
			}

		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.terminate(chat.ErrClosed)
			return

		case <-c.done:
			return
		}
	}
}

func (c *Channel) write(env protocol.Envelope) error {
	frame, err := c.codec.Marshal(env)
	if err != nil {
		slog.Error("encode envelope", "channel", env.Channel, "err", err)
		return nil
	}

	kind := websocket.TextMessage
	if c.codec == protocol.Msgpack {
		kind = websocket.BinaryMessage
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, frame)
}

// terminate records why the channel ended and releases waiters once.
func (c *Channel) terminate(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
		c.conn.Close()
	})
}

// Send queues env for the relay.
func (c *Channel) Send(env protocol.Envelope) error {
	select {
	case <-c.done:
		return chat.ErrClosed
	default:
	}

	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return chat.ErrClosed
	case <-c.stop:
		return chat.ErrClosed
	}
}

// Incoming delivers envelopes from the relay. It is closed after Done.
func (c *Channel) Incoming() <-chan protocol.Envelope {
	return c.incoming
}

// Done is closed when the channel has terminated for any reason.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the close reason once Done is closed.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Close shuts the channel down. It is safe to call more than once.
func (c *Channel) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	return nil
}
