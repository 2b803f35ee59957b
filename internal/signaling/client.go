package signaling

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs fit comfortably.
	maxMessageSize = 64 * 1024
)

// Client is the relay's end of a single websocket connection.
type Client struct {
	ID ClientID

	hub  *Hub
	conn *websocket.Conn

	// send is the buffered outbound queue drained by WritePump. Only the
	// hub writes to or closes it.
	send chan protocol.Envelope

	// binary is set once the client speaks msgpack frames; replies follow.
	binary atomic.Bool
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   NewClientID(),
		hub:  hub,
		conn: conn,
		send: make(chan protocol.Envelope, hub.sendQueue),
	}
}

func (c *Client) codec() protocol.Codec {
	return protocol.CodecFor(c.binary.Load())
}

// ReadPump pumps envelopes from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("read failed", "client", c.ID, "err", err)
			}
			return
		}
		// Any traffic proves liveness, not just pongs.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		binary := kind == websocket.BinaryMessage
		c.binary.Store(binary)

		env, err := protocol.CodecFor(binary).Unmarshal(frame)
		if err != nil {
			slog.Warn("dropping envelope", "client", c.ID, "err", err)
			continue
		}

		if !c.hub.Dispatch(c, env) {
			return
		}
	}
}

// WritePump pumps envelopes from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			codec := c.codec()
			frame, err := codec.Marshal(env)
			if err != nil {
				slog.Error("encode envelope", "client", c.ID, "channel", env.Channel, "err", err)
				continue
			}

			kind := websocket.TextMessage
			if codec == protocol.Msgpack {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, frame); err != nil {
				slog.Debug("write failed", "client", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
