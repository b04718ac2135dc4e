package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // address format is fixed by the chain
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Digest returns the raw SHA-256 bytes of data.
func Digest(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// DoubleDigest returns SHA-256(SHA-256(data)).
func DoubleDigest(data []byte) []byte {
	return Digest(Digest(data))
}

// hash160 returns RIPEMD-160(SHA-256(data)).
func hash160(data []byte) []byte {
	r := ripemd160.New()
	r.Write(Digest(data))
	return r.Sum(nil)
}
