package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns envelopes into frames and back.
type Codec interface {
	Name() string
	Marshal(Envelope) ([]byte, error)
	Unmarshal([]byte) (Envelope, error)
}

var (
	// JSON is the text codec browsers speak.
	JSON Codec = jsonCodec{}

	// Msgpack is the compact binary codec; data still carries the JSON
	// payload bytes so both codecs agree on payload shapes.
	Msgpack Codec = msgpackCodec{}
)

// CodecFor picks the codec matching a websocket frame kind.
func CodecFor(binary bool) Codec {
	if binary {
		return Msgpack
	}
	return JSON
}

// CodecByName resolves "json" or "msgpack"; anything else is JSON.
func CodecByName(name string) Codec {
	if name == Msgpack.Name() {
		return Msgpack
	}
	return JSON
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (jsonCodec) Unmarshal(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, chat.WrapError("parse envelope", chat.ErrMalformedEnvelope, err.Error())
	}
	return normalize(env)
}

type wireEnvelope struct {
	Channel string `msgpack:"channel"`
	Data    []byte `msgpack:"data,omitempty"`
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(env Envelope) ([]byte, error) {
	return msgpack.Marshal(wireEnvelope{Channel: string(env.Channel), Data: env.Data})
}

func (msgpackCodec) Unmarshal(frame []byte) (Envelope, error) {
	var w wireEnvelope
	if err := msgpack.Unmarshal(frame, &w); err != nil {
		return Envelope{}, chat.WrapError("parse envelope", chat.ErrMalformedEnvelope, err.Error())
	}
	if len(w.Data) > 0 && !json.Valid(w.Data) {
		return Envelope{}, chat.WrapError("parse envelope", chat.ErrMalformedEnvelope, "data is not json")
	}
	return normalize(Envelope{Channel: Channel(w.Channel), Data: w.Data})
}

var jsonNull = []byte("null")

func normalize(env Envelope) (Envelope, error) {
	if env.Channel == "" {
		return Envelope{}, chat.WrapError("parse envelope", chat.ErrMalformedEnvelope, "missing channel")
	}
	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), jsonNull) {
		env.Data = nil
	}
	return env, nil
}
