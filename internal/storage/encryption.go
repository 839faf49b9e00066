package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength   = 32
	nonceLength = 12
	saltLength  = 32
	iterations  = 100000

	envelopeVersion = 1
)

var ErrBadPassphrase = errors.New("invalid passphrase or corrupted data")

// Envelope is the on-disk form of an encrypted snapshot.
type Envelope struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts data with a key derived from passphrase and a fresh salt.
func Seal(data []byte, passphrase string) (*Envelope, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	aesGCM, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return &Envelope{
		Version:    envelopeVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aesGCM.Seal(nil, nonce, data, nil),
	}, nil
}

// Unseal decrypts an envelope. A wrong passphrase and tampered data are
// indistinguishable and both return ErrBadPassphrase.
func Unseal(env *Envelope, passphrase string) ([]byte, error) {
	if env == nil {
		return nil, errors.New("encrypted data is nil")
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}

	aesGCM, err := newGCM(passphrase, env.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}
