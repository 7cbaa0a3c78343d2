package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of a Curve25519 public or private key.
const KeySize = 32

// KeyPair represents a NaCl crypto_box key pair.
type KeyPair struct {
	Public  [KeySize]byte
	Private [KeySize]byte
}

// GenerateKeyPair creates a new random key pair from rand.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoInit, err)
	}

	return &KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}, nil
}
