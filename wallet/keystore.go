package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tolelom/qorachain/crypto"
	"golang.org/x/crypto/pbkdf2"
)

// ErrWrongPassword is returned when a keystore cannot be decrypted.
var ErrWrongPassword = errors.New("wrong password or corrupted keystore")

const (
	kdfIterations = 210_000
	saltSize      = 16
)

// keystoreFile is the on-disk form. Only the 32-byte seed is encrypted; the
// address is kept in clear so operators can tell keystores apart.
type keystoreFile struct {
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// SaveKey encrypts the seed of priv with password and writes it to path.
func SaveKey(path, password string, priv crypto.PrivateKey) error {
	if len(priv) < crypto.SeedSize {
		return fmt.Errorf("private key too short: %d bytes", len(priv))
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	address := priv.Public().Address()
	cipherText := gcm.Seal(nil, nonce, priv[:crypto.SeedSize], []byte(address))

	data, err := json.MarshalIndent(keystoreFile{
		Address:    address,
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKey decrypts the keystore at path using password. The stored address is
// authenticated alongside the seed, so a tampered address fails to decrypt.
func LoadKey(path, password string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore %s: %w", path, err)
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore salt: %w", err)
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("keystore nonce: %w", err)
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, fmt.Errorf("keystore cipher text: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrWrongPassword
	}
	seed, err := gcm.Open(nil, nonce, cipherText, []byte(ks.Address))
	if err != nil {
		return nil, ErrWrongPassword
	}
	priv, err := crypto.KeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if priv.Public().Address() != ks.Address {
		return nil, fmt.Errorf("keystore %s: seed does not match address %s", path, ks.Address)
	}
	return priv, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
