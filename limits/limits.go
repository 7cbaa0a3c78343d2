// Package limits provides centralized frame size limits for the game
// connection. This ensures consistent validation across the codec and the
// transports.
package limits

import (
	"errors"
	"fmt"
)

const (
	// HeaderSize is the common packet header: u16 packet ID + u8 flags.
	HeaderSize = 3

	// EncryptionOverhead is the nonce (24) plus Poly1305 tag (16) that the
	// crypto box prepends to every encrypted payload.
	EncryptionOverhead = 40

	// MaxDatagramSize is the largest UDP payload over IPv4.
	MaxDatagramSize = 65507

	// MaxPlaintextPayload is the largest encodable payload that still fits a
	// single encrypted datagram.
	MaxPlaintextPayload = MaxDatagramSize - HeaderSize - EncryptionOverhead

	// MaxStreamFrame bounds a single length-prefixed frame on a stream
	// transport. This prevents memory exhaustion from a hostile length prefix.
	MaxStreamFrame = 1024 * 1024
)

var (
	// ErrFrameEmpty indicates an empty frame was provided.
	ErrFrameEmpty = errors.New("empty frame")

	// ErrFrameTooLarge indicates a frame exceeds the allowed size.
	ErrFrameTooLarge = errors.New("frame too large")
)

// ValidateFrameSize validates a frame against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateFrameSize(frame []byte, maxSize int) error {
	if len(frame) == 0 {
		return ErrFrameEmpty
	}
	if len(frame) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFrameTooLarge, len(frame), maxSize)
	}
	return nil
}

// ValidateDatagram validates a frame against MaxDatagramSize.
func ValidateDatagram(frame []byte) error {
	return ValidateFrameSize(frame, MaxDatagramSize)
}

// ValidateStreamFrame validates a frame against MaxStreamFrame.
func ValidateStreamFrame(frame []byte) error {
	return ValidateFrameSize(frame, MaxStreamFrame)
}

// ValidatePayload checks that an encoded payload fits a datagram once the
// header and, if encrypted, the box overhead are added.
func ValidatePayload(payload []byte, encrypted bool) error {
	limit := MaxDatagramSize - HeaderSize
	if encrypted {
		limit = MaxPlaintextPayload
	}
	if len(payload) > limit {
		return fmt.Errorf("%w: payload size %d exceeds limit %d", ErrFrameTooLarge, len(payload), limit)
	}
	return nil
}
