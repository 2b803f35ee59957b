package signaling

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(interests ...string) protocol.MatchRequest {
	return protocol.MatchRequest{Data: protocol.MediaVideo, Interests: interests}
}

func noticesFor(notices []Notice, id ClientID) []protocol.Envelope {
	var out []protocol.Envelope
	for _, n := range notices {
		if n.To == id {
			out = append(out, n.Envelope)
		}
	}
	return out
}

func channels(envs []protocol.Envelope) []protocol.Channel {
	out := make([]protocol.Channel, len(envs))
	for i, env := range envs {
		out[i] = env.Channel
	}
	return out
}

func TestSubmitEmptyPoolWaits(t *testing.T) {
	m := NewMatchmaker(nil)

	assert.Empty(t, m.Submit("a", request()))
	assert.True(t, m.Waiting("a"))
	_, paired := m.PeerOf("a")
	assert.False(t, paired)
}

func TestSubmitPairsAndNotifiesBoth(t *testing.T) {
	m := NewMatchmaker(nil)
	m.Submit("a", request("music", "chess"))

	notices := m.Submit("b", request("chess", "travel"))

	forA := noticesFor(notices, "a")
	forB := noticesFor(notices, "b")
	require.Len(t, forA, 1)
	assert.Equal(t, protocol.ChannelConnected, forA[0].Channel)
	assert.Equal(t, []string{"chess"}, forA[0].Interests())

	assert.Equal(t, []protocol.Channel{protocol.ChannelConnected, protocol.ChannelBegin}, channels(forB))
	assert.Equal(t, []string{"chess"}, forB[0].Interests())

	peer, ok := m.PeerOf("a")
	require.True(t, ok)
	assert.Equal(t, ClientID("b"), peer)
	assert.False(t, m.Waiting("a"))
	assert.False(t, m.Waiting("b"))
}

func TestSubmitExchangesHandles(t *testing.T) {
	m := NewMatchmaker(nil)
	m.Submit("a", protocol.MatchRequest{Twitter: "@alice"})
	notices := m.Submit("b", protocol.MatchRequest{})

	forB := noticesFor(notices, "b")
	assert.Equal(t, []protocol.Channel{protocol.ChannelConnected, protocol.ChannelHandle, protocol.ChannelBegin}, channels(forB))
	handle, err := forB[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "@alice", handle)

	assert.Equal(t, []protocol.Channel{protocol.ChannelConnected}, channels(noticesFor(notices, "a")))
}

// seed puts a client straight into the pool, the way requeues build up a
// line of several waiting clients.
func seed(m *Matchmaker, id ClientID, interests ...string) {
	m.members[id] = &member{interests: interests}
	m.Pool().PushBack(waiter{ID: id, Interests: interests})
}

func TestOverlapBeatsWaitingTime(t *testing.T) {
	m := NewMatchmaker(PolicyOverlap)
	seed(m, "stranger", "cooking")
	seed(m, "a", "chess")

	notices := m.Submit("b", request("chess"))

	peer, ok := m.PeerOf("b")
	require.True(t, ok)
	assert.Equal(t, ClientID("a"), peer)
	assert.True(t, m.Waiting("stranger"))
	assert.NotEmpty(t, noticesFor(notices, "a"))
	assert.Empty(t, noticesFor(notices, "stranger"))
}

func TestTiesGoToLongestWaiting(t *testing.T) {
	m := NewMatchmaker(PolicyOverlap)
	seed(m, "first", "go")
	seed(m, "second", "go")

	m.Submit("c", request("go"))

	peer, _ := m.PeerOf("c")
	assert.Equal(t, ClientID("first"), peer)
}

func TestNoInterestsIsFIFO(t *testing.T) {
	m := NewMatchmaker(nil)
	seed(m, "first")
	seed(m, "second", "x")
	seed(m, "third")

	m.Submit("c", request())

	peer, _ := m.PeerOf("c")
	assert.Equal(t, ClientID("first"), peer)
	assert.Equal(t, []ClientID{"second", "third"}, m.Pool().IDs())
}

func TestMostOverlapPolicy(t *testing.T) {
	m := NewMatchmaker(PolicyMostOverlap)
	seed(m, "one", "a")
	seed(m, "two", "a", "b")

	m.Submit("c", request("a", "b", "c"))

	peer, _ := m.PeerOf("c")
	assert.Equal(t, ClientID("two"), peer)
}

func TestFIFOPolicyIgnoresInterests(t *testing.T) {
	m := NewMatchmaker(PolicyFIFO)
	seed(m, "one", "x")
	seed(m, "two", "a")

	m.Submit("c", request("a"))

	peer, _ := m.PeerOf("c")
	assert.Equal(t, ClientID("one"), peer)
}

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{"", "overlap", "most-overlap", "fifo"} {
		_, err := ParsePolicy(name)
		assert.NoError(t, err, name)
	}
	_, err := ParsePolicy("random")
	assert.Error(t, err)
}

func TestReleaseNotifiesPeerAndRequeuesAtHead(t *testing.T) {
	m := NewMatchmaker(nil)
	m.Submit("waiting", request())
	m.Submit("a", request())
	m.Submit("b", request())
	m.Submit("c", request())
	// waiting+a are paired, b+c are paired.
	m.Submit("late", request())

	notices := m.Release("a")

	require.Len(t, notices, 1)
	assert.Equal(t, ClientID("waiting"), notices[0].To)
	assert.Equal(t, protocol.ChannelDisconnect, notices[0].Envelope.Channel)
	assert.Equal(t, []ClientID{"waiting", "late"}, m.Pool().IDs())

	_, paired := m.PeerOf("a")
	assert.False(t, paired)
	assert.False(t, m.Waiting("a"))
}

func TestReleaseWaitingClientLeavesPool(t *testing.T) {
	m := NewMatchmaker(nil)
	m.Submit("a", request())

	assert.Empty(t, m.Release("a"))
	assert.Zero(t, m.Pool().Len())
	assert.Empty(t, m.Release("unknown"))
}

func TestConcurrentDisconnectOfBothMembers(t *testing.T) {
	m := NewMatchmaker(nil)
	m.Submit("a", request())
	m.Submit("b", request())

	m.Remove("a")
	assert.True(t, m.Waiting("b"))

	assert.Empty(t, m.Remove("b"))
	assert.Zero(t, m.Pool().Len())
	assert.Zero(t, m.Stats().Pairings)
}

func TestSubmitWhilePairedIsIgnored(t *testing.T) {
	m := NewMatchmaker(nil)
	m.Submit("a", request())
	m.Submit("b", request())

	assert.Empty(t, m.Submit("a", request()))
	peer, _ := m.PeerOf("a")
	assert.Equal(t, ClientID("b"), peer)
}

func TestRequeuedPeerResubmitStaysAtHead(t *testing.T) {
	m := NewMatchmaker(nil)
	m.Submit("a", request())
	m.Submit("b", request())
	m.Release("b")

	// a's client re-requests after the disconnect notice.
	assert.Empty(t, m.Submit("a", request()))
	assert.Equal(t, []ClientID{"a"}, m.Pool().IDs())
}

func TestNegotiationStateTracking(t *testing.T) {
	m := NewMatchmaker(nil)
	r := NewRelay(m)
	m.Submit("a", request())
	m.Submit("b", request())

	desc := protocol.Envelope{Channel: protocol.ChannelDescription, Data: []byte(`{"type":"offer","sdp":"v=0"}`)}
	_, err := r.Forward("b", desc)
	require.NoError(t, err)
	_, err = r.Forward("b", desc)
	require.NoError(t, err)
	p, _ := m.PairingOf("a")
	assert.Equal(t, NegotiationOffered, p.State)

	_, err = r.Forward("a", desc)
	require.NoError(t, err)
	assert.Equal(t, NegotiationAnswered, p.State)
	assert.Equal(t, 1, m.Stats().Negotiation["answered"])
}

// No sequence of operations may leave a client in two pairings, or both
// waiting and paired.
func TestRandomOperationsKeepMembershipExclusive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tags := []string{"a", "b", "c", "d"}

	for _, policy := range []MatchPolicy{PolicyOverlap, PolicyMostOverlap, PolicyFIFO} {
		m := NewMatchmaker(policy)
		for step := 0; step < 2000; step++ {
			id := ClientID(fmt.Sprintf("c%d", rng.Intn(12)))
			switch rng.Intn(4) {
			case 0, 1:
				var interests []string
				for _, tag := range tags {
					if rng.Intn(2) == 0 {
						interests = append(interests, tag)
					}
				}
				m.Submit(id, request(interests...))
			case 2:
				m.Release(id)
			case 3:
				m.Remove(id)
			}
			assertMembershipExclusive(t, m)
		}
	}
}

func assertMembershipExclusive(t *testing.T, m *Matchmaker) {
	t.Helper()

	seen := make(map[ClientID]string)
	for _, p := range m.pairings {
		for _, id := range p.Members {
			if prev, dup := seen[id]; dup {
				t.Fatalf("client %s in pairings %s and %s", id, prev, p.ID)
			}
			seen[id] = p.ID
			require.Same(t, p, m.byClient[id])
		}
		require.NotEqual(t, p.Members[0], p.Members[1])
	}
	require.Len(t, m.byClient, len(seen))

	inPool := make(map[ClientID]bool)
	for _, id := range m.pool.IDs() {
		require.False(t, inPool[id], "client %s queued twice", id)
		inPool[id] = true
		_, paired := seen[id]
		require.False(t, paired, "client %s both waiting and paired", id)
	}
}
