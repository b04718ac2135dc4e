package crypto

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	// AddressVersion prefixes addresses derived from account public keys ('Q').
	AddressVersion byte = 58
	// ATAddressVersion prefixes addresses of automated transactions ('A').
	ATAddressVersion byte = 23

	addressLength  = 25
	checksumLength = 4
)

// ToAddress derives the base58 address for an account public key.
func ToAddress(publicKey []byte) string {
	return encodeAddress(AddressVersion, publicKey)
}

// ToATAddress derives the address of an AT from the signature of the
// transaction that deployed it.
func ToATAddress(signature []byte) string {
	return encodeAddress(ATAddressVersion, signature)
}

func encodeAddress(version byte, input []byte) string {
	raw := make([]byte, 0, addressLength)
	raw = append(raw, version)
	raw = append(raw, hash160(input)...)
	raw = append(raw, DoubleDigest(raw)[:checksumLength]...)
	return base58.Encode(raw)
}

// IsValidAddress reports whether address decodes to a well-formed account or
// AT address with a correct checksum.
func IsValidAddress(address string) bool {
	raw := base58.Decode(address)
	if len(raw) != addressLength {
		return false
	}
	if raw[0] != AddressVersion && raw[0] != ATAddressVersion {
		return false
	}
	body := raw[:addressLength-checksumLength]
	return bytes.Equal(DoubleDigest(body)[:checksumLength], raw[addressLength-checksumLength:])
}

// IsATAddress reports whether address carries the AT version byte.
func IsATAddress(address string) bool {
	raw := base58.Decode(address)
	return len(raw) == addressLength && raw[0] == ATAddressVersion
}
