package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GCMCipher is the production Cipher: AES-256-GCM with a random nonce,
// wire form base64(nonce || sealed).
type GCMCipher struct{}

var _ Cipher = GCMCipher{}

func (GCMCipher) Encrypt(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (GCMCipher) Decrypt(ciphertext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("opening ciphertext: %w", err)
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// StaticKeyStore serves one key for every project, the single-tenant
// deployment mode.
type StaticKeyStore struct {
	key []byte
}

var _ KeyStore = StaticKeyStore{}

// NewStaticKeyStore builds a key store from a base64-encoded 256-bit key.
func NewStaticKeyStore(encoded string) (StaticKeyStore, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return StaticKeyStore{}, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != KeySize {
		return StaticKeyStore{}, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return StaticKeyStore{key: key}, nil
}

func (s StaticKeyStore) Key(string) ([]byte, bool) {
	if len(s.key) != KeySize {
		return nil, false
	}
	return s.key, true
}

// NoKeys is a KeyStore with no keys at all, for runs against unencrypted
// records.
type NoKeys struct{}

func (NoKeys) Key(string) ([]byte, bool) { return nil, false }
