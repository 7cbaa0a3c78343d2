// Package crypto implements the authenticated public-key channel used by the
// game connection.
//
// The channel is a NaCl crypto_box (Curve25519, XSalsa20, Poly1305) provided
// by golang.org/x/crypto/nacl/box. Each side owns a [Box]: a local key pair
// generated at construction plus the peer's public key, installed once the
// handshake completes.
//
// # Frames
//
// Every call to [Box.Encrypt] draws a fresh random nonce and produces a
// self-describing frame:
//
//	nonce (24) ∥ MAC (16) ∥ ciphertext (len(plaintext))
//
// so len(frame) == len(plaintext) + PrefixSize. [Box.Decrypt] rejects frames
// shorter than PrefixSize and frames whose MAC does not verify with
// [ErrAuthenticationFailure]; no output is produced in either case.
//
// Example:
//
//	local, _ := crypto.NewBox()
//	remote, _ := crypto.NewBox()
//
//	lpk, rpk := local.PublicKey(), remote.PublicKey()
//	_ = local.SetPeerKey(rpk[:])
//	_ = remote.SetPeerKey(lpk[:])
//
//	frame, _ := local.Encrypt([]byte("ping"))
//	plaintext, _ := remote.Decrypt(frame)
//
// # Thread Safety
//
// Box methods may be called concurrently. Encryption and decryption share a
// read lock; SetPeerKey, ClearPeerKey and Reset take the write lock.
package crypto
