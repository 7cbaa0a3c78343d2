package packet

import "fmt"

// ID identifies a packet type on the wire.
//
// By convention client-origin packets use 10000-19999 and server-origin
// packets use 20000-29999. The direction is not checked at runtime.
type ID uint16

// Flags is the second header field.
type Flags uint8

const (
	// FlagEncrypted marks a payload sealed with the session crypto box.
	FlagEncrypted Flags = 1 << 0
)

// Direction records which side sends a packet.
type Direction uint8

const (
	ClientToServer Direction = iota
	ServerToClient
)

// String returns a short name for the direction.
func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client->server"
	case ServerToClient:
		return "server->client"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Meta holds the static properties of a packet type.
type Meta struct {
	ID        ID
	Name      string
	Direction Direction
	// Encrypted payloads are sealed with the session box.
	Encrypted bool
	// Bookkeeping packets are consumed by the connection itself (handshake,
	// login, keepalive) rather than by the game.
	Bookkeeping bool
}

// Flags returns the header flags implied by m.
func (m Meta) Flags() Flags {
	if m.Encrypted {
		return FlagEncrypted
	}
	return 0
}

// Packet is a typed protocol message.
//
// Encode appends the payload fields in declaration order. Decode consumes
// exactly those fields from a buffer positioned just past the header.
type Packet interface {
	Meta() Meta
	Encode(buf *Buffer)
	Decode(buf *Buffer) error
}

// Header is the fixed prefix of every frame.
type Header struct {
	ID    ID
	Flags Flags
}

// Encrypted reports whether the payload that follows is sealed.
func (h Header) Encrypted() bool {
	return h.Flags&FlagEncrypted != 0
}

// ParseHeader reads the header at the start of frame.
func ParseHeader(frame []byte) (Header, error) {
	buf := NewBuffer(frame)
	id, err := buf.ReadU16()
	if err != nil {
		return Header{}, err
	}
	flags, err := buf.ReadU8()
	if err != nil {
		return Header{}, err
	}
	return Header{ID: ID(id), Flags: Flags(flags)}, nil
}
