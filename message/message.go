// Package message defines the messages exchanged over a thunderlink
// connection and their wire encoding.
//
// Messages form a closed set: [Message] can only be implemented inside this
// package, so every consumer that switches on the concrete type sees the
// complete list of variants here.
//
// Two variants live on the wire directly: [HandshakeInitial] carries an
// ephemeral public key, and [Encrypted] carries an opaque ciphertext. All
// other variants are application messages that only ever cross the wire
// inside an [Encrypted] envelope.
//
// Example:
//
//	data, err := message.Marshal(&message.Data{Seq: 7, Body: []byte("update")})
//	if err != nil {
//	    return err
//	}
//	m, err := message.Unmarshal(data)
package message

import (
	"encoding/hex"
	"fmt"
)

// Type identifies a message variant on the wire.
type Type byte

const (
	// Wire-level variants handled by the encryption layer.
	TypeHandshakeInitial Type = iota + 1
	TypeEncrypted
)

const (
	// Application variants carried inside Encrypted.
	TypeData Type = iota + 16
	TypeAck
	TypeDataAck
	TypeGossip
	TypePing
	TypePong
)

// String returns a human-readable name for the message type.
func (t Type) String() string {
	switch t {
	case TypeHandshakeInitial:
		return "HandshakeInitial"
	case TypeEncrypted:
		return "Encrypted"
	case TypeData:
		return "Data"
	case TypeAck:
		return "Ack"
	case TypeDataAck:
		return "DataAck"
	case TypeGossip:
		return "Gossip"
	case TypePing:
		return "Ping"
	case TypePong:
		return "Pong"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// Message is a single protocol message.
type Message interface {
	Type() Type
	String() string

	// sealed restricts implementations to this package.
	sealed()
}

// Numbered is implemented by messages that carry a sequence number.
type Numbered interface {
	Message
	MessageNumber() uint64
}

// Acknowledging is implemented by messages that acknowledge a sequence number.
type Acknowledging interface {
	Message
	AckedMessageNumber() uint64
}

// GossipTagged is implemented by broadcast gossip messages.
type GossipTagged interface {
	Message
	IsGossip() bool
}

// HandshakeInitial announces the sender's ephemeral public key.
// Exactly one is sent in each direction per connection.
type HandshakeInitial struct {
	EphemeralPublicKey [32]byte
}

func (*HandshakeInitial) Type() Type { return TypeHandshakeInitial }
func (*HandshakeInitial) sealed()    {}

func (m *HandshakeInitial) String() string {
	return fmt.Sprintf("HandshakeInitial{key=%s}", hex.EncodeToString(m.EphemeralPublicKey[:4]))
}

// Encrypted wraps an encrypted application message.
type Encrypted struct {
	Ciphertext []byte
}

func (*Encrypted) Type() Type { return TypeEncrypted }
func (*Encrypted) sealed()    {}

func (m *Encrypted) String() string {
	return fmt.Sprintf("Encrypted{%d bytes}", len(m.Ciphertext))
}

// Data is a numbered application payload.
type Data struct {
	Seq  uint64
	Body []byte
}

func (*Data) Type() Type              { return TypeData }
func (*Data) sealed()                 {}
func (m *Data) MessageNumber() uint64 { return m.Seq }
func (m *Data) String() string        { return fmt.Sprintf("Data{seq=%d, %d bytes}", m.Seq, len(m.Body)) }

// Ack acknowledges receipt of a numbered message.
type Ack struct {
	AckedSeq uint64
}

func (*Ack) Type() Type                   { return TypeAck }
func (*Ack) sealed()                      {}
func (m *Ack) AckedMessageNumber() uint64 { return m.AckedSeq }
func (m *Ack) String() string             { return fmt.Sprintf("Ack{acked=%d}", m.AckedSeq) }

// DataAck is a numbered payload that also acknowledges an earlier message.
type DataAck struct {
	Seq      uint64
	AckedSeq uint64
	Body     []byte
}

func (*DataAck) Type() Type                   { return TypeDataAck }
func (*DataAck) sealed()                      {}
func (m *DataAck) MessageNumber() uint64      { return m.Seq }
func (m *DataAck) AckedMessageNumber() uint64 { return m.AckedSeq }

func (m *DataAck) String() string {
	return fmt.Sprintf("DataAck{seq=%d, acked=%d, %d bytes}", m.Seq, m.AckedSeq, len(m.Body))
}

// Gossip is a broadcast announcement relayed between nodes.
type Gossip struct {
	Topic string
	Body  []byte
}

func (*Gossip) Type() Type     { return TypeGossip }
func (*Gossip) sealed()        {}
func (*Gossip) IsGossip() bool { return true }
func (m *Gossip) String() string {
	return fmt.Sprintf("Gossip{topic=%s, %d bytes}", m.Topic, len(m.Body))
}

// Ping asks the peer to answer with a Pong carrying the same nonce.
type Ping struct {
	Nonce uint64
}

func (*Ping) Type() Type       { return TypePing }
func (*Ping) sealed()          {}
func (m *Ping) String() string { return fmt.Sprintf("Ping{nonce=%d}", m.Nonce) }

// Pong answers a Ping.
type Pong struct {
	Nonce uint64
}

func (*Pong) Type() Type       { return TypePong }
func (*Pong) sealed()          {}
func (m *Pong) String() string { return fmt.Sprintf("Pong{nonce=%d}", m.Nonce) }

// Sequence returns the sequence number of m. ok is false if m carries none.
func Sequence(m Message) (seq uint64, ok bool) {
	if n, ok := m.(Numbered); ok {
		return n.MessageNumber(), true
	}
	return 0, false
}

// AckedSequence returns the acknowledged sequence number of m. ok is false
// if m acknowledges nothing.
func AckedSequence(m Message) (acked uint64, ok bool) {
	if a, ok := m.(Acknowledging); ok {
		return a.AckedMessageNumber(), true
	}
	return 0, false
}

// IsGossip reports whether m is gossip traffic.
func IsGossip(m Message) bool {
	g, ok := m.(GossipTagged)
	return ok && g.IsGossip()
}

// IsWire reports whether m is one of the variants owned by the encryption layer.
func IsWire(m Message) bool {
	switch m.(type) {
	case *HandshakeInitial, *Encrypted:
		return true
	default:
		return false
	}
}

// IsApplication reports whether m is carried inside an Encrypted envelope.
func IsApplication(m Message) bool {
	return m != nil && !IsWire(m)
}
