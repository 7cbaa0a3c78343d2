package crypto

import (
	"errors"
	"runtime"
)

// SecureWipe overwrites data with zeros. It returns an error if data is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	for i := range data {
		data[i] = 0
	}

	// Keep the slice reachable until the stores above are done.
	runtime.KeepAlive(data)
	return nil
}

// ZeroBytes wipes data and ignores the nil case.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// WipeKeyPair erases the private key in kp.
func WipeKeyPair(kp *KeyPair) error {
	if kp == nil {
		return errors.New("cannot wipe nil KeyPair")
	}
	return SecureWipe(kp.Private[:])
}
