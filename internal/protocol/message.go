package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/pion/webrtc/v4"
)

// Channel names the kind of an envelope.
type Channel string

// Channel constants.
const (
	ChannelMatch        Channel = "match"
	ChannelConnected    Channel = "connected"
	ChannelBegin        Channel = "begin"
	ChannelDescription  Channel = "description"
	ChannelICECandidate Channel = "iceCandidate"
	ChannelMessage      Channel = "message"
	ChannelTyping       Channel = "typing"
	ChannelDisconnect   Channel = "disconnect"
	ChannelPeopleOnline Channel = "peopleOnline"
	ChannelHandle       Channel = "handle"
)

var knownChannels = map[Channel]struct{}{
	ChannelMatch:        {},
	ChannelConnected:    {},
	ChannelBegin:        {},
	ChannelDescription:  {},
	ChannelICECandidate: {},
	ChannelMessage:      {},
	ChannelTyping:       {},
	ChannelDisconnect:   {},
	ChannelPeopleOnline: {},
	ChannelHandle:       {},
}

// Known reports whether c is one of the channels this package defines.
func (c Channel) Known() bool {
	_, ok := knownChannels[c]
	return ok
}

// Envelope is the wire unit exchanged between a client and the relay.
// Data holds the JSON encoding of the payload and is nil for channels
// without one.
type Envelope struct {
	Channel Channel         `json:"channel"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// MatchRequest is the payload of a match envelope.
type MatchRequest struct {
	Data      string   `json:"data"`
	Interests []string `json:"interests"`
	Twitter   string   `json:"twitter,omitempty"`
}

// MediaVideo is the only session kind clients request.
const MediaVideo = "video"

// New builds an envelope, JSON encoding payload when it is non-nil.
func New(channel Channel, payload any) (Envelope, error) {
	env := Envelope{Channel: channel}
	if payload == nil {
		return env, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", channel, err)
	}
	env.Data = data
	return env, nil
}

func mustNew(channel Channel, payload any) Envelope {
	env, err := New(channel, payload)
	if err != nil {
		// Only called with payload types that always marshal.
		panic(err)
	}
	return env
}

func Match(req MatchRequest) Envelope {
	if req.Data == "" {
		req.Data = MediaVideo
	}
	if req.Interests == nil {
		req.Interests = []string{}
	}
	return mustNew(ChannelMatch, req)
}

func Connected(shared []string) Envelope {
	if shared == nil {
		shared = []string{}
	}
	return mustNew(ChannelConnected, shared)
}

func Begin() Envelope      { return Envelope{Channel: ChannelBegin} }
func Disconnect() Envelope { return Envelope{Channel: ChannelDisconnect} }
func KeepAlive() Envelope  { return Envelope{Channel: ChannelPeopleOnline} }

func PeopleOnline(count int) Envelope { return mustNew(ChannelPeopleOnline, count) }
func Message(text string) Envelope    { return mustNew(ChannelMessage, text) }
func Typing(typing bool) Envelope     { return mustNew(ChannelTyping, typing) }
func Handle(handle string) Envelope   { return mustNew(ChannelHandle, handle) }

func Description(desc webrtc.SessionDescription) Envelope {
	return mustNew(ChannelDescription, desc)
}

func Candidate(c webrtc.ICECandidateInit) Envelope {
	return mustNew(ChannelICECandidate, c)
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return chat.WrapError("decode "+string(e.Channel), chat.ErrMalformedEnvelope, "missing payload")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return chat.WrapError("decode "+string(e.Channel), chat.ErrMalformedEnvelope, err.Error())
	}
	return nil
}

func (e Envelope) MatchRequest() (MatchRequest, error) {
	var req MatchRequest
	if len(e.Data) == 0 {
		return MatchRequest{Data: MediaVideo}, nil
	}
	err := e.Decode(&req)
	return req, err
}

// Interests returns the tag list of a connected envelope. A missing or
// non-array payload yields no tags.
func (e Envelope) Interests() []string {
	var tags []string
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &tags) != nil {
		return nil
	}
	return tags
}

func (e Envelope) SessionDescription() (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := e.Decode(&desc); err != nil {
		return desc, err
	}
	if desc.SDP == "" {
		return desc, chat.WrapError("decode description", chat.ErrMalformedEnvelope, "empty sdp")
	}
	return desc, nil
}

func (e Envelope) ICECandidate() (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	err := e.Decode(&c)
	return c, err
}

func (e Envelope) Text() (string, error) {
	var text string
	err := e.Decode(&text)
	return text, err
}

func (e Envelope) Typing() (bool, error) {
	var typing bool
	err := e.Decode(&typing)
	return typing, err
}

func (e Envelope) Count() (int, error) {
	var n int
	err := e.Decode(&n)
	return n, err
}
