package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/box"

	"github.com/opd-ai/gamenet/internal/logging"
)

const (
	// MACSize is the Poly1305 tag length added by box.Seal.
	MACSize = box.Overhead

	// PrefixSize is the fixed overhead of a frame: nonce followed by MAC.
	PrefixSize = NonceSize + MACSize
)

// Box is an authenticated public-key channel to a single peer.
//
// Frames produced by Encrypt have the layout nonce ∥ MAC ∥ ciphertext and are
// always exactly PrefixSize bytes longer than the plaintext. A Box is safe for
// concurrent use: encrypt/decrypt share a read lock, key changes take the
// write lock.
type Box struct {
	mu      sync.RWMutex
	rand    io.Reader
	keys    *KeyPair
	peer    [KeySize]byte
	shared  [KeySize]byte
	hasPeer bool
}

// NewBox creates a Box with a fresh key pair drawn from crypto/rand.
func NewBox() (*Box, error) {
	return NewBoxWithRand(rand.Reader)
}

// NewBoxWithRand creates a Box that takes keys and nonces from r.
func NewBoxWithRand(r io.Reader) (*Box, error) {
	keys, err := GenerateKeyPair(r)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewBoxWithRand",
			"package":  "crypto",
			"error":    err.Error(),
		}).Error("Key pair generation failed")
		return nil, err
	}

	return &Box{rand: r, keys: keys}, nil
}

// PublicKey returns the local public key.
func (b *Box) PublicKey() [KeySize]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.keys.Public
}

// HasPeerKey reports whether SetPeerKey has been called since the last reset.
func (b *Box) HasPeerKey() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hasPeer
}

// SetPeerKey stores the remote public key, replacing any previous one.
func (b *Box) SetPeerKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: peer key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	copy(b.peer[:], key)
	box.Precompute(&b.shared, &b.peer, &b.keys.Private)
	b.hasPeer = true

	logrus.WithFields(logrus.Fields{
		"function": "SetPeerKey",
		"package":  "crypto",
	}).WithFields(logging.SecureFieldHash(key, "peer_key")).Debug("Peer key set")

	return nil
}

// ClearPeerKey forgets the peer key and the derived shared key.
func (b *Box) ClearPeerKey() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearPeerLocked()
}

func (b *Box) clearPeerLocked() {
	ZeroBytes(b.shared[:])
	ZeroBytes(b.peer[:])
	b.hasPeer = false
}

// Reset generates a new key pair, wipes the old private key and clears the
// peer key. On failure the Box keeps its previous keys but the peer is
// cleared either way.
func (b *Box) Reset() error {
	keys, err := GenerateKeyPair(b.rand)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.clearPeerLocked()
	if err != nil {
		return err
	}

	_ = WipeKeyPair(b.keys)
	b.keys = keys
	return nil
}

// Encrypt seals plaintext for the peer and returns a new frame.
func (b *Box) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext)+PrefixSize)
	n, err := b.EncryptInto(out, plaintext)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// EncryptInto seals src into dst and returns the frame length. dst must hold
// at least len(src)+PrefixSize bytes and must not overlap src.
func (b *Box) EncryptInto(dst, src []byte) (int, error) {
	size := len(src) + PrefixSize
	if len(dst) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(dst))
	}

	nonce, err := GenerateNonce(b.rand)
	if err != nil {
		return 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasPeer {
		return 0, ErrNoPeerKey
	}

	copy(dst[:NonceSize], nonce[:])
	box.SealAfterPrecomputation(dst[NonceSize:NonceSize], src, (*[NonceSize]byte)(&nonce), &b.shared)
	return size, nil
}

// EncryptInPlace seals the first n bytes of buf and writes the frame back
// into buf. buf must have room for n+PrefixSize bytes.
func (b *Box) EncryptInPlace(buf []byte, n int) (int, error) {
	if n < 0 || n > len(buf) {
		return 0, fmt.Errorf("%w: plaintext length %d out of range", ErrBufferTooSmall, n)
	}
	if len(buf) < n+PrefixSize {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, n+PrefixSize, len(buf))
	}

	// nacl rejects overlapping input and output, so the frame is built aside.
	frame, err := b.Encrypt(buf[:n])
	if err != nil {
		return 0, err
	}
	return copy(buf, frame), nil
}

// Decrypt opens a frame produced by the peer and returns the plaintext.
func (b *Box) Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < PrefixSize {
		return nil, ErrAuthenticationFailure
	}

	out := make([]byte, len(frame)-PrefixSize)
	n, err := b.DecryptInto(out, frame)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// DecryptInto opens frame into dst and returns the plaintext length. dst is
// left untouched when authentication fails. dst must not overlap frame.
func (b *Box) DecryptInto(dst, frame []byte) (int, error) {
	if len(frame) < PrefixSize {
		return 0, ErrAuthenticationFailure
	}

	size := len(frame) - PrefixSize
	if len(dst) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(dst))
	}

	var nonce [NonceSize]byte
	copy(nonce[:], frame[:NonceSize])

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasPeer {
		return 0, ErrNoPeerKey
	}

	// Open verifies the tag before it writes any output.
	if _, ok := box.OpenAfterPrecomputation(dst[:0], frame[NonceSize:], &nonce, &b.shared); !ok {
		return 0, ErrAuthenticationFailure
	}
	return size, nil
}

// DecryptInPlace opens the frame held in buf and moves the plaintext to the
// start of buf. buf is unchanged on failure.
func (b *Box) DecryptInPlace(buf []byte) (int, error) {
	plaintext, err := b.Decrypt(buf)
	if err != nil {
		return 0, err
	}
	return copy(buf, plaintext), nil
}
