// Package packet defines the binary wire contract for game packets.
//
// Every frame starts with a three byte header followed by the payload:
//
//	[u16 packet ID][u8 flags][payload]
//
// Flag bit 0 marks an encrypted payload, in which case the payload is a
// crypto box frame (nonce ∥ MAC ∥ ciphertext) wrapping the encoded fields.
// All multi-byte integers are big-endian; strings carry a u16 length prefix.
//
// Packet types implement [Packet] and are looked up by ID through a
// [Registry]. [DefaultRegistry] knows every connection-level packet; game
// packets are added with [Registry.Register]:
//
//	reg := packet.DefaultRegistry()
//	reg.MustRegister(func() packet.Packet { return &PlayerDataPacket{} })
//
//	frame, err := packet.Marshal(p, box)
//	decoded, err := packet.Unmarshal(frame, box, reg)
//
// Unmarshal reports unregistered IDs with [UnknownPacketError] so callers can
// drop packets from newer servers instead of failing.
package packet
