package crypto

import (
	"fmt"
	"io"
)

// NonceSize is the length of a crypto_box nonce.
const NonceSize = 24

// Nonce is a 24-byte value used once per encryption.
type Nonce [NonceSize]byte

// GenerateNonce reads a fresh nonce from rand.
func GenerateNonce(rand io.Reader) (Nonce, error) {
	var nonce Nonce
	if _, err := io.ReadFull(rand, nonce[:]); err != nil {
		return Nonce{}, fmt.Errorf("%w: nonce: %v", ErrCryptoInit, err)
	}
	return nonce, nil
}
