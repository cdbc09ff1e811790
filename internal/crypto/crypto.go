package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// EncryptedPrefix is the prefix used to identify encrypted values
const EncryptedPrefix = "ENC:"

// keySize is the AES-256 key length.
const keySize = 32

// KeyManager handles encryption and decryption of API keys
type KeyManager struct {
	key []byte
}

// NewKeyManager creates a KeyManager from a raw 32-byte key.
func NewKeyManager(key []byte) (*KeyManager, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	k := make([]byte, keySize)
	copy(k, key)
	return &KeyManager{key: k}, nil
}

// NewKeyManagerFromSecret derives the key from a user supplied passphrase.
func NewKeyManagerFromSecret(secret string) (*KeyManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	hash := sha256.Sum256([]byte("maestro-key-v1:" + secret))
	return NewKeyManager(hash[:])
}

// Encrypt encrypts the plaintext API key
func (km *KeyManager) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := km.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts the encrypted API key. Values without the prefix are
// returned unchanged so plaintext records written before encryption was
// enabled keep working.
func (km *KeyManager) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !strings.HasPrefix(ciphertext, EncryptedPrefix) {
		return ciphertext, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	gcm, err := km.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(decoded) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertextBytes := decoded[:nonceSize], decoded[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

func (km *KeyManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(km.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// LoadOrCreateKeyFile returns the key stored at path, generating and writing a
// random one (mode 0600) the first time.
func LoadOrCreateKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != keySize {
			return nil, fmt.Errorf("key file %s is corrupted: expected %d bytes, got %d", path, keySize, len(data))
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	// O_EXCL so two processes racing on first start don't overwrite each other's key
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return LoadOrCreateKeyFile(path)
		}
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(key); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	return key, nil
}
