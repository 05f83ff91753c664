package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// storageSalt is fixed: the derived key only protects values at rest on the
// device itself, keyed by the per-install DEVICE_SECRET.
var storageSalt = []byte("artclient.credential.v1")

const pbkdf2Iterations = 64_000

// Encryptor provides symmetric encryption for credentials at rest.
// The AES-256-GCM key is derived from an arbitrary-length device secret
// with PBKDF2-SHA256.
type Encryptor struct {
	aead cipher.AEAD
}

func NewEncryptor(secret []byte) (*Encryptor, error) {
	if len(secret) == 0 {
		return nil, errors.New("device secret must not be empty")
	}
	key := pbkdf2.Key(secret, storageSalt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: aead}, nil
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", errors.New("malformed ciphertext")
	}
	if len(raw) < e.aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce := raw[:e.aead.NonceSize()]
	ciphertext := raw[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("failed to decrypt stored credential")
	}
	return string(plain), nil
}
