// Package crypto seals snapshot payloads. The archiver depends only on
// Encryptor; the implementations here are adapters.
package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	MethodAge     = "age-x25519"
	MethodXChaCha = "xchacha20poly1305"
)

var ErrCiphertext = errors.New("ciphertext could not be opened")

// Result is the sealed payload plus the method that produced it.
type Result struct {
	Ciphertext []byte
	Method     string
}

// Encryptor seals data; id is bound into the ciphertext where the method
// supports associated data.
type Encryptor interface {
	Encrypt(data []byte, id string) (Result, error)
}

// Age encrypts to one or more X25519 recipients.
type Age struct {
	recipients []age.Recipient
}

func NewAge(recipientKeys []string) (*Age, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("age: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("age: parse recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return &Age{recipients: recipients}, nil
}

func (a *Age) Encrypt(data []byte, _ string) (Result, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, a.recipients...)
	if err != nil {
		return Result{}, fmt.Errorf("age: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return Result{}, fmt.Errorf("age: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("age: close: %w", err)
	}
	return Result{Ciphertext: buf.Bytes(), Method: MethodAge}, nil
}

// OpenAge decrypts an age payload with an AGE-SECRET-KEY identity.
func OpenAge(ciphertext []byte, identity string) ([]byte, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("age: parse identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return io.ReadAll(r)
}

// XChaCha uses a shared 32-byte key. The nonce is prepended to the
// ciphertext and the id is authenticated as associated data.
type XChaCha struct {
	key []byte
}

func NewXChaCha(key []byte) (*XChaCha, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("xchacha: key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &XChaCha{key: append([]byte(nil), key...)}, nil
}

// NewXChaChaFromBase64 accepts the key as standard base64.
func NewXChaChaFromBase64(encoded string) (*XChaCha, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("xchacha: decode key: %w", err)
	}
	return NewXChaCha(key)
}

func (x *XChaCha) Encrypt(data []byte, id string) (Result, error) {
	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return Result{}, fmt.Errorf("xchacha: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return Result{}, fmt.Errorf("xchacha: nonce: %w", err)
	}
	return Result{Ciphertext: aead.Seal(nonce, nonce, data, []byte(id)), Method: MethodXChaCha}, nil
}

func (x *XChaCha) Open(ciphertext []byte, id string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return nil, fmt.Errorf("xchacha: %w", err)
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrCiphertext
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(id))
	if err != nil {
		return nil, ErrCiphertext
	}
	return plain, nil
}

// FromConfig builds the configured encryptor; mode "none" or "" yields nil.
func FromConfig(mode string, ageRecipients []string, xchachaKey string) (Encryptor, error) {
	switch mode {
	case "", "none":
		return nil, nil
	case "age":
		enc, err := NewAge(ageRecipients)
		if err != nil {
			return nil, err
		}
		return enc, nil
	case "xchacha":
		enc, err := NewXChaChaFromBase64(xchachaKey)
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown encryption mode %q", mode)
	}
}
