package broker

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes envelopes for brokers that store bytes.
type Codec interface {
	Encode(env Envelope) ([]byte, error)
	Decode(data []byte) (Envelope, error)
	Name() string
}

// Codec names.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to msgpack.
func GetCodec(name string) Codec {
	if name == CodecNameJSON {
		return JSONCodec{}
	}
	return MsgpackCodec{}
}

// MsgpackCodec encodes envelopes as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) { return msgpack.Marshal(env) }

func (MsgpackCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := msgpack.Unmarshal(data, &env)
	return env, err
}

func (MsgpackCodec) Name() string { return CodecNameMsgpack }

// JSONCodec encodes envelopes as JSON, which is easier to inspect with
// redis-cli.
type JSONCodec struct{}

func (JSONCodec) Encode(env Envelope) ([]byte, error) { return json.Marshal(env) }

func (JSONCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}

func (JSONCodec) Name() string { return CodecNameJSON }
