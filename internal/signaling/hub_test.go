package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(HubOptions{})
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn)
		if !hub.Register(c) {
			conn.Close()
			return
		}
		go c.WritePump()
		go c.ReadPump()
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type testPeer struct {
	t     *testing.T
	conn  *websocket.Conn
	codec protocol.Codec
}

func dialPeer(t *testing.T, url string, codec protocol.Codec) *testPeer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testPeer{t: t, conn: conn, codec: codec}
}

func (p *testPeer) send(env protocol.Envelope) {
	p.t.Helper()
	frame, err := p.codec.Marshal(env)
	require.NoError(p.t, err)
	kind := websocket.TextMessage
	if p.codec == protocol.Msgpack {
		kind = websocket.BinaryMessage
	}
	require.NoError(p.t, p.conn.WriteMessage(kind, frame))
}

func (p *testPeer) recv() (protocol.Envelope, int) {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	kind, frame, err := p.conn.ReadMessage()
	require.NoError(p.t, err)
	env, err := protocol.CodecFor(kind == websocket.BinaryMessage).Unmarshal(frame)
	require.NoError(p.t, err)
	return env, kind
}

func (p *testPeer) expect(channel protocol.Channel) protocol.Envelope {
	p.t.Helper()
	env, _ := p.recv()
	require.Equal(p.t, channel, env.Channel)
	return env
}

// waitForStats polls until the hub reaches the wanted waiting/pairing counts.
func waitForStats(t *testing.T, hub *Hub, waiting, pairings int) HubStats {
	t.Helper()
	var s HubStats
	require.Eventually(t, func() bool {
		var err error
		s, err = hub.Stats(context.Background())
		return err == nil && s.Waiting == waiting && s.Pairings == pairings
	}, 3*time.Second, 10*time.Millisecond)
	return s
}

func TestHubPairsRelaysAndReleases(t *testing.T) {
	hub, url := startHub(t)
	a := dialPeer(t, url, protocol.JSON)
	b := dialPeer(t, url, protocol.JSON)

	a.send(protocol.Match(protocol.MatchRequest{Interests: []string{"music", "chess"}}))
	waitForStats(t, hub, 1, 0)
	b.send(protocol.Match(protocol.MatchRequest{Interests: []string{"chess", "travel"}}))

	assert.Equal(t, []string{"chess"}, a.expect(protocol.ChannelConnected).Interests())
	assert.Equal(t, []string{"chess"}, b.expect(protocol.ChannelConnected).Interests())
	b.expect(protocol.ChannelBegin)

	offer := protocol.Description(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	b.send(offer)
	got := a.expect(protocol.ChannelDescription)
	assert.Equal(t, string(offer.Data), string(got.Data))

	a.send(protocol.Message("hello"))
	text, err := b.expect(protocol.ChannelMessage).Text()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	a.send(protocol.Typing(true))
	typing, err := b.expect(protocol.ChannelTyping).Typing()
	require.NoError(t, err)
	assert.True(t, typing)

	a.conn.Close()
	b.expect(protocol.ChannelDisconnect)
	s := waitForStats(t, hub, 1, 0)
	assert.Equal(t, 1, s.Online)
}

func TestHubSkipRequeuesPeer(t *testing.T) {
	hub, url := startHub(t)
	a := dialPeer(t, url, protocol.JSON)
	b := dialPeer(t, url, protocol.JSON)

	a.send(protocol.Match(protocol.MatchRequest{}))
	waitForStats(t, hub, 1, 0)
	b.send(protocol.Match(protocol.MatchRequest{}))
	a.expect(protocol.ChannelConnected)
	b.expect(protocol.ChannelConnected)
	b.expect(protocol.ChannelBegin)

	b.send(protocol.Disconnect())
	a.expect(protocol.ChannelDisconnect)
	waitForStats(t, hub, 1, 0)

	// b redials and lands on a, who was put back at the head of the pool.
	b.send(protocol.Match(protocol.MatchRequest{}))
	a.expect(protocol.ChannelConnected)
	b.expect(protocol.ChannelConnected)
	waitForStats(t, hub, 0, 1)
}

func TestHubDropsUnpairedChatAndMalformedFrames(t *testing.T) {
	_, url := startHub(t)
	a := dialPeer(t, url, protocol.JSON)

	a.send(protocol.Message("anyone?"))
	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("{garbage")))
	a.send(protocol.KeepAlive())

	// The connection survives and the next thing heard is the keepalive reply.
	n, err := a.expect(protocol.ChannelPeopleOnline).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHubAnswersBinaryClientsInKind(t *testing.T) {
	_, url := startHub(t)
	a := dialPeer(t, url, protocol.Msgpack)

	a.send(protocol.KeepAlive())
	env, kind := a.recv()
	assert.Equal(t, protocol.ChannelPeopleOnline, env.Channel)
	assert.Equal(t, websocket.BinaryMessage, kind)
}

func TestDeliverEvictsSlowClient(t *testing.T) {
	hub := NewHub(HubOptions{SendQueue: 1})
	a := &Client{ID: "a", hub: hub, send: make(chan protocol.Envelope, 1)}
	b := &Client{ID: "b", hub: hub, send: make(chan protocol.Envelope, 1)}
	hub.clients[a.ID] = a
	hub.clients[b.ID] = b
	hub.matches.Submit(a.ID, protocol.MatchRequest{})
	hub.matches.Submit(b.ID, protocol.MatchRequest{})

	a.send <- protocol.Typing(true)
	hub.deliver(Notice{To: a.ID, Envelope: protocol.Message("overflow")})

	_, stillThere := hub.clients[a.ID]
	assert.False(t, stillThere)
	assert.Equal(t, protocol.ChannelDisconnect, (<-b.send).Channel)
	assert.True(t, hub.matches.Waiting(b.ID))

	<-a.send
	_, open := <-a.send
	assert.False(t, open)
}
