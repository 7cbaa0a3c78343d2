// Package limits provides centralized frame size constants and validation
// functions for the game connection.
//
// # Size Hierarchy
//
//   - HeaderSize (3 bytes): packet ID (u16) and flags (u8).
//   - EncryptionOverhead (40 bytes): nonce and MAC prepended by the crypto box.
//   - MaxDatagramSize (65507 bytes): the largest frame the UDP transport sends.
//   - MaxPlaintextPayload: what remains for an encrypted payload.
//   - MaxStreamFrame (1MB): the cap on a length-prefixed TCP frame.
//
// Example:
//
//	if err := limits.ValidatePayload(payload, true); err != nil {
//	    return err // errors.Is(err, limits.ErrFrameTooLarge)
//	}
package limits
