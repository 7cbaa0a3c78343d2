package crypto

import "errors"

var (
	// ErrCryptoInit indicates the key pair or nonce source could not be
	// initialized. Nothing can be encrypted without it.
	ErrCryptoInit = errors.New("crypto initialization failed")

	// ErrAuthenticationFailure indicates a frame failed the MAC check or was
	// too short to carry one.
	ErrAuthenticationFailure = errors.New("message authentication failed")

	// ErrNoPeerKey indicates encrypt/decrypt was called before SetPeerKey.
	ErrNoPeerKey = errors.New("peer public key not set")

	// ErrInvalidKey indicates a malformed public or private key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrBufferTooSmall indicates an output buffer lacks room for the frame prefix.
	ErrBufferTooSmall = errors.New("buffer too small")
)
