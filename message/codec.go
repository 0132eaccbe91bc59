package message

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/opd-ai/thunderlink/crypto"
)

const (
	// MaxSize is the largest encoded message accepted (1MB plus AEAD overhead).
	MaxSize = crypto.MaxMessageSize + 64

	// MaxApplicationSize is the largest encoded application message. It is
	// the plaintext limit of crypto.Encrypt.
	MaxApplicationSize = crypto.MaxMessageSize
)

var (
	// ErrUnknownType indicates an unrecognised type tag.
	ErrUnknownType = errors.New("unknown message type")
	// ErrTruncated indicates encoded data shorter than its variant requires.
	ErrTruncated = errors.New("message truncated")
	// ErrTooLarge indicates a message above MaxSize.
	ErrTooLarge = errors.New("message too large")
	// ErrNilMessage indicates an attempt to marshal a nil message.
	ErrNilMessage = errors.New("message is nil")
)

// Marshal encodes a message as [type (1 byte)][payload (variable length)].
func Marshal(m Message) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}

	out := []byte{byte(m.Type())}
	switch v := m.(type) {
	case *HandshakeInitial:
		out = append(out, v.EphemeralPublicKey[:]...)
	case *Encrypted:
		out = append(out, v.Ciphertext...)
	case *Data:
		out = binary.BigEndian.AppendUint64(out, v.Seq)
		out = append(out, v.Body...)
	case *Ack:
		out = binary.BigEndian.AppendUint64(out, v.AckedSeq)
	case *DataAck:
		out = binary.BigEndian.AppendUint64(out, v.Seq)
		out = binary.BigEndian.AppendUint64(out, v.AckedSeq)
		out = append(out, v.Body...)
	case *Gossip:
		if len(v.Topic) > math.MaxUint16 {
			return nil, fmt.Errorf("gossip topic too long: %d bytes", len(v.Topic))
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(v.Topic)))
		out = append(out, v.Topic...)
		out = append(out, v.Body...)
	case *Ping:
		out = binary.BigEndian.AppendUint64(out, v.Nonce)
	case *Pong:
		out = binary.BigEndian.AppendUint64(out, v.Nonce)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}

	if limit := sizeLimit(m.Type()); len(out) > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(out), limit)
	}
	return out, nil
}

// Unmarshal decodes data produced by Marshal.
// The returned message does not alias data.
func Unmarshal(data []byte) (Message, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty input", ErrTruncated)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	t := Type(data[0])
	if limit := sizeLimit(t); len(data) > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), limit)
	}
	payload := data[1:]

	switch t {
	case TypeHandshakeInitial:
		if len(payload) != 32 {
			return nil, fmt.Errorf("%w: handshake key is %d bytes", ErrTruncated, len(payload))
		}
		m := &HandshakeInitial{}
		copy(m.EphemeralPublicKey[:], payload)
		return m, nil
	case TypeEncrypted:
		return &Encrypted{Ciphertext: clone(payload)}, nil
	case TypeData:
		if len(payload) < 8 {
			return nil, truncated(t)
		}
		return &Data{Seq: binary.BigEndian.Uint64(payload), Body: clone(payload[8:])}, nil
	case TypeAck:
		if len(payload) != 8 {
			return nil, truncated(t)
		}
		return &Ack{AckedSeq: binary.BigEndian.Uint64(payload)}, nil
	case TypeDataAck:
		if len(payload) < 16 {
			return nil, truncated(t)
		}
		return &DataAck{
			Seq:      binary.BigEndian.Uint64(payload),
			AckedSeq: binary.BigEndian.Uint64(payload[8:]),
			Body:     clone(payload[16:]),
		}, nil
	case TypeGossip:
		return unmarshalGossip(payload)
	case TypePing:
		if len(payload) != 8 {
			return nil, truncated(t)
		}
		return &Ping{Nonce: binary.BigEndian.Uint64(payload)}, nil
	case TypePong:
		if len(payload) != 8 {
			return nil, truncated(t)
		}
		return &Pong{Nonce: binary.BigEndian.Uint64(payload)}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, byte(t))
	}
}

func unmarshalGossip(payload []byte) (Message, error) {
	if len(payload) < 2 {
		return nil, truncated(TypeGossip)
	}
	topicLen := int(binary.BigEndian.Uint16(payload))
	if len(payload) < 2+topicLen {
		return nil, truncated(TypeGossip)
	}
	return &Gossip{
		Topic: string(payload[2 : 2+topicLen]),
		Body:  clone(payload[2+topicLen:]),
	}, nil
}

func truncated(t Type) error {
	return fmt.Errorf("%w: %s", ErrTruncated, t)
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func sizeLimit(t Type) int {
	switch t {
	case TypeHandshakeInitial, TypeEncrypted:
		return MaxSize
	default:
		return MaxApplicationSize
	}
}
