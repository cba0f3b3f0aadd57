// Package wire frames envelopes for the websocket surface: JSON in text
// frames or msgpack in binary frames.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding names accepted by New.
const (
	JSON    = "json"
	MsgPack = "msgpack"
)

// ErrUnknownEncoding is returned for an encoding name New doesn't know.
var ErrUnknownEncoding = errors.New("wire: unknown encoding")

// ErrUnsupportedFrame is returned when decoding a frame that carries no payload encoding.
var ErrUnsupportedFrame = errors.New("wire: unsupported frame type")

// Codec encodes outgoing messages in one encoding and decodes incoming
// frames by their frame type, so clients may send either.
type Codec struct {
	binary bool
}

// New returns the codec for an encoding name. An empty name means JSON.
func New(encoding string) (Codec, error) {
	switch encoding {
	case "", JSON:
		return Codec{}, nil
	case MsgPack:
		return Codec{binary: true}, nil
	default:
		return Codec{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
	}
}

// Name returns the encoding name.
func (c Codec) Name() string {
	if c.binary {
		return MsgPack
	}
	return JSON
}

// MessageType is the websocket frame type outgoing messages use.
func (c Codec) MessageType() int {
	if c.binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Encode marshals v for the wire.
func (c Codec) Encode(v any) ([]byte, error) {
	if c.binary {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Decode unmarshals a received frame into v.
func (c Codec) Decode(messageType int, data []byte, v any) error {
	switch messageType {
	case websocket.TextMessage:
		return json.Unmarshal(data, v)
	case websocket.BinaryMessage:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFrame, messageType)
	}
}
