// Package cryptoutil encrypts stored connection credentials at rest.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Ciphertext prefixes. The version marker leaves room for key or
// algorithm rotation without a data migration.
const (
	credentialCipherPrefixV1 = "v1:"
	noopPrefix               = "noop:"
)

// Encryptor defines an interface for encrypting/decrypting credentials.
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// AESGCMEncryptor implements Encryptor using AES-256-GCM.
type AESGCMEncryptor struct {
	key []byte // 32 bytes
}

// NewAESGCMEncryptor constructs a new AESGCMEncryptor. Key must be 32 bytes (AES-256).
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	return &AESGCMEncryptor{key: append([]byte(nil), key...)}, nil
}

// KeyFromString decodes a credential key from its configured form: 64 hex
// characters or a raw 32-byte string.
func KeyFromString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 64 {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	if len(s) == 32 {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("credential key must be 32 raw bytes or 64 hex chars, got %d chars", len(s))
}

// FromKeyString builds an Encryptor from the configured key string. An empty
// key yields the NoopEncryptor for development setups.
func FromKeyString(s string) (Encryptor, error) {
	if strings.TrimSpace(s) == "" {
		return NoopEncryptor{}, nil
	}
	key, err := KeyFromString(s)
	if err != nil {
		return nil, err
	}
	return NewAESGCMEncryptor(key)
}

func (e *AESGCMEncryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under a fresh random nonce and returns a
// versioned base64 string of nonce||ciphertext.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte) (string, error) {
	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return credentialCipherPrefixV1 + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a versioned base64 string created by Encrypt. Noop-encrypted
// values from before a key was configured still decode.
func (e *AESGCMEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	if strings.HasPrefix(ciphertext, noopPrefix) {
		return NoopEncryptor{}.Decrypt(ciphertext)
	}
	b64, ok := strings.CutPrefix(ciphertext, credentialCipherPrefixV1)
	if !ok {
		prefix := ciphertext
		if len(prefix) > 10 {
			prefix = prefix[:10]
		}
		return nil, fmt.Errorf("unknown ciphertext version (prefix: %s)", prefix)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

// NoopEncryptor stores plaintext with a prefix marker. Used in development
// and tests when no credential key is configured.
type NoopEncryptor struct{}

func (NoopEncryptor) Encrypt(plaintext []byte) (string, error) {
	return noopPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (NoopEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	b64, ok := strings.CutPrefix(ciphertext, noopPrefix)
	if !ok {
		return nil, errors.New("invalid noop ciphertext")
	}
	return base64.StdEncoding.DecodeString(b64)
}
