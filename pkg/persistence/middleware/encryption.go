package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/questgraph/pkg/ports"
)

// envelopeMagic prefixes every encrypted record.
var envelopeMagic = []byte("QGENC1")

// ErrNotEncrypted is returned when a record read through the encryption
// middleware carries no envelope.
var ErrNotEncrypted = errors.New("record is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a record,
	// so keys can be rotated without rewriting stored instances first.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.InstanceStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals records with AES-256-GCM.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i, len(k))
		}
	}
	return func(next ports.InstanceStore) ports.InstanceStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, instanceID string, data []byte) error {
	sealed, err := encrypt(data, m.config.ActiveKey, []byte(instanceID))
	if err != nil {
		return fmt.Errorf("failed to encrypt instance: %w", err)
	}
	envelope := make([]byte, 0, len(envelopeMagic)+len(sealed))
	envelope = append(envelope, envelopeMagic...)
	envelope = append(envelope, sealed...)
	return m.next.Save(ctx, instanceID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, instanceID string) ([]byte, error) {
	envelope, err := m.next.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(envelope, envelopeMagic) {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrNotEncrypted)
	}

	plain, err := decryptWithRotation(envelope[len(envelopeMagic):], []byte(instanceID), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt instance %s: %w", instanceID, err)
	}
	return plain, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, instanceID string) error {
	return m.next.Delete(ctx, instanceID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// The instance id is bound as additional data, so a record copied under
// another id does not open.
func encrypt(plaintext, key, ad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, ad), nil
}

func decryptWithRotation(ciphertext, ad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey, ad); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, ad); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key, ad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, ad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
