package packet

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPacket indicates a payload that ran out of bytes, carried
	// trailing bytes, or held an invalid discriminant.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrUnknownPacket indicates a packet ID with no registered decoder.
	ErrUnknownPacket = errors.New("unknown packet")

	// ErrDuplicatePacket indicates two packet types claimed the same ID.
	ErrDuplicatePacket = errors.New("duplicate packet id")
)

// UnknownPacketError reports the ID of an unregistered packet.
type UnknownPacketError struct {
	ID ID
}

func (e *UnknownPacketError) Error() string {
	return fmt.Sprintf("unknown packet %d", e.ID)
}

func (e *UnknownPacketError) Unwrap() error {
	return ErrUnknownPacket
}

// malformed wraps ErrMalformedPacket with context.
func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPacket, fmt.Sprintf(format, args...))
}
