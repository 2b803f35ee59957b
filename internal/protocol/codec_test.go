package protocol

import (
	"errors"
	"testing"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEnvelopes() []Envelope {
	mid := "0"
	line := uint16(0)
	return []Envelope{
		Match(MatchRequest{Interests: []string{"music", "chess"}, Twitter: "@stranger"}),
		Match(MatchRequest{}),
		Connected([]string{"chess"}),
		Connected(nil),
		Begin(),
		Description(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}),
		Candidate(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &line}),
		Message("hi &lt;there&gt;"),
		Typing(true),
		Typing(false),
		Disconnect(),
		KeepAlive(),
		PeopleOnline(42),
		Handle("@someone"),
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSON, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			for _, env := range sampleEnvelopes() {
				frame, err := codec.Marshal(env)
				require.NoError(t, err)

				got, err := codec.Unmarshal(frame)
				require.NoError(t, err)
				assert.Equal(t, env.Channel, got.Channel)
				assert.Equal(t, string(env.Data), string(got.Data))
			}
		})
	}
}

func TestJSONWireShape(t *testing.T) {
	frame, err := JSON.Marshal(Typing(true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"typing","data":true}`, string(frame))

	frame, err = JSON.Marshal(Begin())
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"begin"}`, string(frame))
}

func TestJSONNullDataIsNoPayload(t *testing.T) {
	env, err := JSON.Unmarshal([]byte(`{"channel":"peopleOnline","data":null}`))
	require.NoError(t, err)
	assert.Equal(t, ChannelPeopleOnline, env.Channel)
	assert.Nil(t, env.Data)
}

func TestUnmarshalMalformed(t *testing.T) {
	frames := [][]byte{
		[]byte(`not json`),
		[]byte(`{"data":1}`),
		[]byte(`[]`),
	}
	for _, frame := range frames {
		_, err := JSON.Unmarshal(frame)
		assert.True(t, errors.Is(err, chat.ErrMalformedEnvelope), "frame %q", frame)
	}

	_, err := Msgpack.Unmarshal([]byte{0xc1})
	assert.True(t, errors.Is(err, chat.ErrMalformedEnvelope))
}

func TestUnknownChannelStillParses(t *testing.T) {
	env, err := JSON.Unmarshal([]byte(`{"channel":"future","data":{}}`))
	require.NoError(t, err)
	assert.False(t, env.Channel.Known())
	assert.True(t, ChannelICECandidate.Known())
}

func TestPayloadAccessors(t *testing.T) {
	req, err := Match(MatchRequest{Interests: []string{"a"}}).MatchRequest()
	require.NoError(t, err)
	assert.Equal(t, MediaVideo, req.Data)
	assert.Equal(t, []string{"a"}, req.Interests)

	assert.Equal(t, []string{"x", "y"}, Connected([]string{"x", "y"}).Interests())
	assert.Nil(t, Envelope{Channel: ChannelConnected, Data: []byte(`"oops"`)}.Interests())

	text, err := Message("hello").Text()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	typing, err := Typing(true).Typing()
	require.NoError(t, err)
	assert.True(t, typing)

	n, err := PeopleOnline(7).Count()
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	desc, err := Description(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}).SessionDescription()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, desc.Type)

	_, err = Envelope{Channel: ChannelDescription, Data: []byte(`{"type":"offer"}`)}.SessionDescription()
	assert.ErrorIs(t, err, chat.ErrMalformedEnvelope)

	_, err = Message("x").Typing()
	assert.ErrorIs(t, err, chat.ErrMalformedEnvelope)
}

func TestCodecFor(t *testing.T) {
	assert.Equal(t, "msgpack", CodecFor(true).Name())
	assert.Equal(t, "json", CodecFor(false).Name())
	assert.Equal(t, "msgpack", CodecByName("msgpack").Name())
	assert.Equal(t, "json", CodecByName("anything").Name())
}
