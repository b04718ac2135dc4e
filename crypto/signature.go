package crypto

import (
	"crypto/ed25519"
	"errors"
)

// SignatureLength is the size of a transaction or generator signature.
const SignatureLength = ed25519.SignatureSize

// ErrBadSignature is returned when a signature does not verify.
var ErrBadSignature = errors.New("signature verification failed")

// Sign signs data with the private key.
func Sign(priv PrivateKey, data []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv), data)
}

// Verify checks sig against data using the public key.
func Verify(pub PublicKey, data, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("malformed public key")
	}
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(pub), data, sig) {
		return ErrBadSignature
	}
	return nil
}
