// Package fieldcrypt handles field-level encryption of recorded data: given
// an object and a set of dotted field paths it decrypts (or encrypts) only
// those paths, tolerating per-field decryption failure so that records from
// before encryption was introduced still load.
//
// The cipher itself is a black box behind the Cipher interface; the
// expected contract is AES-GCM with a 32-byte key and base64(iv||ct||tag)
// framing, but nothing in this package depends on that beyond KeySize.
package fieldcrypt

import "fmt"

// KeySize is the required cipher key length in bytes.
const KeySize = 32

// Cipher is the field-level cipher contract. Encrypt returns the transport
// form of the plaintext; Decrypt reverses it. Both fail with an error on a
// malformed key or ciphertext.
type Cipher interface {
	Encrypt(plaintext string, key []byte) (string, error)
	Decrypt(ciphertext string, key []byte) (string, error)
}

// KeyStore resolves the project-scoped encryption key. The second return is
// false when the project has no key configured.
type KeyStore interface {
	Key(projectID string) ([]byte, bool)
}

// Warning records a non-fatal degradation: a field that could not be
// decrypted and was left untouched. Callers proceed with best-effort data;
// tests assert on the warning instead of a silent catch.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("field %q left as-is: %v", w.Path, w.Err)
}
