package packet

import (
	"fmt"

	"github.com/opd-ai/gamenet/limits"
)

// Sealer encrypts a payload into a self-describing frame.
type Sealer interface {
	Encrypt(plaintext []byte) ([]byte, error)
}

// Opener reverses Sealer.
type Opener interface {
	Decrypt(frame []byte) ([]byte, error)
}

// Marshal encodes p as header followed by payload. The payload is sealed
// with s when p is an encrypted packet; s may be nil otherwise.
func Marshal(p Packet, s Sealer) ([]byte, error) {
	meta := p.Meta()

	payload := &Buffer{}
	p.Encode(payload)
	if err := limits.ValidatePayload(payload.Bytes(), meta.Encrypted); err != nil {
		return nil, fmt.Errorf("packet %d: %w", meta.ID, err)
	}

	out := &Buffer{data: make([]byte, 0, limits.HeaderSize+payload.Len()+limits.EncryptionOverhead)}
	out.WriteU16(uint16(meta.ID))
	out.WriteU8(uint8(meta.Flags()))

	if !meta.Encrypted {
		out.WriteBytes(payload.Bytes())
		return out.Bytes(), nil
	}

	if s == nil {
		return nil, fmt.Errorf("packet %d: encrypted packet without a sealer", meta.ID)
	}
	sealed, err := s.Encrypt(payload.Bytes())
	if err != nil {
		return nil, fmt.Errorf("packet %d: %w", meta.ID, err)
	}
	out.WriteBytes(sealed)
	return out.Bytes(), nil
}

// Unmarshal decodes a full frame.
//
// An unregistered ID yields *UnknownPacketError. A wire encryption flag that
// disagrees with the registered type is ErrMalformedPacket, so a plaintext
// frame can never stand in for an encrypted packet. Errors from o are
// returned unchanged.
func Unmarshal(frame []byte, o Opener, r *Registry) (Packet, error) {
	hdr, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}

	p, ok := r.New(hdr.ID)
	if !ok {
		return nil, &UnknownPacketError{ID: hdr.ID}
	}

	meta := p.Meta()
	if hdr.Encrypted() != meta.Encrypted {
		return nil, malformed("packet %d: encrypted flag %t, want %t", hdr.ID, hdr.Encrypted(), meta.Encrypted)
	}

	payload := frame[limits.HeaderSize:]
	if meta.Encrypted {
		if o == nil {
			return nil, fmt.Errorf("packet %d: encrypted packet without an opener", hdr.ID)
		}
		if payload, err = o.Decrypt(payload); err != nil {
			return nil, err
		}
	}

	buf := NewBuffer(payload)
	if err := p.Decode(buf); err != nil {
		return nil, fmt.Errorf("packet %d: %w", hdr.ID, err)
	}
	if buf.Remaining() != 0 {
		return nil, malformed("packet %d: %d trailing bytes", hdr.ID, buf.Remaining())
	}
	return p, nil
}
