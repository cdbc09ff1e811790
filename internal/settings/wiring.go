package settings

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"maestro/config"
	"maestro/config/storage"
	"maestro/internal/crypto"
	"maestro/internal/utils"
)

// OpenStore builds the configured key-value store. Redis stores must be
// closed by the caller.
func (s *Settings) OpenStore() (storage.Store, error) {
	switch s.Store.Backend {
	case BackendMemory:
		return storage.NewMemoryStore(), nil
	case BackendRedis:
		log.WithFields(log.Fields{
			"component": "settings",
			"url":       utils.RedactURL(s.Store.RedisURL),
			"namespace": s.Store.Namespace,
		}).Debug("opening redis store")
		return storage.NewRedisStore(s.Store.RedisURL, s.Store.Namespace)
	default:
		var opts []storage.FileOption
		if s.Store.Backups > 0 {
			opts = append(opts, storage.WithBackups(storage.NewBackupManager(s.Store.Backups), config.ConfigsKey))
		}
		opts = append(opts, storage.WithFileLogger(log.WithField("component", "file-store")))
		return storage.NewFileStore(s.Store.Path, opts...)
	}
}

// Cipher returns the apiKey cipher, or nil when encryption is off. A secret
// takes precedence over the key file.
func (s *Settings) Cipher() (*crypto.KeyManager, error) {
	if !s.Security.EncryptKeys {
		return nil, nil
	}
	if s.Security.Secret != "" {
		return crypto.NewKeyManagerFromSecret(s.Security.Secret)
	}
	key, err := crypto.LoadOrCreateKeyFile(s.Security.KeyFile)
	if err != nil {
		return nil, err
	}
	return crypto.NewKeyManager(key)
}

// RegistryOptions wires the fallback key, cipher and logger into a registry.
func (s *Settings) RegistryOptions() ([]config.Option, error) {
	opts := []config.Option{
		config.WithFallbackKey(s.Defaults.GoogleAPIKey),
		config.WithLogger(log.WithField("component", "registry")),
	}
	km, err := s.Cipher()
	if err != nil {
		return nil, err
	}
	if km != nil {
		opts = append(opts, config.WithCipher(km))
	}
	return opts, nil
}

// User is an API identity configured through server.tokens.
type User struct {
	Token    string
	Name     string
	Email    string
	ImageURL string
}

// ParseTokens parses entries of the form token:name:email[:imageURL].
func ParseTokens(entries []string) (map[string]User, error) {
	users := make(map[string]User, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("server.tokens[%d]: want token:name:email[:imageURL]", i)
		}
		u := User{Token: parts[0], Name: parts[1], Email: parts[2]}
		if len(parts) == 4 {
			u.ImageURL = parts[3]
		}
		if _, dup := users[u.Token]; dup {
			return nil, fmt.Errorf("server.tokens[%d]: duplicate token", i)
		}
		users[u.Token] = u
	}
	return users, nil
}
