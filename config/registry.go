// Package config owns the model registry: the persisted list of provider
// configs and the round-robin selection over the usable ones.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"maestro/config/models"
	"maestro/config/storage"
	"maestro/config/validation"
	"maestro/internal/providers"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store keys.
const (
	ConfigsKey = "model-configs"
	CursorKey  = "last-model-index"
)

// DefaultConfigID is the id of the entry returned when nothing is stored.
const DefaultConfigID = "default-google"

// KeyCipher encrypts API keys before they reach the store.
type KeyCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Registry holds the model configs and hands out active ones in turn.
// All methods are safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	store       storage.Store
	fallbackKey string
	cipher      KeyCipher
	validator   *validation.Validator
	log         *logrus.Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithFallbackKey sets the API key of the default google entry.
func WithFallbackKey(key string) Option {
	return func(r *Registry) { r.fallbackKey = key }
}

// WithCipher stores API keys encrypted.
func WithCipher(c KeyCipher) Option {
	return func(r *Registry) { r.cipher = c }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a Registry over store.
func NewRegistry(store storage.Store, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		validator: validation.NewValidator(),
		log:       logrus.WithField("component", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultConfigs is the list used when nothing valid is stored. It is never
// written back by LoadConfigs.
func (r *Registry) DefaultConfigs() []models.ModelConfig {
	return []models.ModelConfig{{
		ID:       DefaultConfigID,
		Provider: providers.Google,
		ModelID:  providers.MustGet(providers.Google).DefaultModel(),
		APIKey:   r.fallbackKey,
		Label:    "Default Google Gemini",
	}}
}

// LoadConfigs returns the stored list, or the default list when nothing is
// stored or the stored value is unusable. Corrupt values are deleted; values
// that only fail to decrypt are left in the store.
func (r *Registry) LoadConfigs() []models.ModelConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

func (r *Registry) loadLocked() []models.ModelConfig {
	configs, err := r.readLocked()
	if err != nil {
		return r.DefaultConfigs()
	}
	return configs
}

// readLocked is loadLocked that also reports why the defaults were used.
// Only ErrUndecryptable is returned; every other problem yields the defaults.
func (r *Registry) readLocked() ([]models.ModelConfig, error) {
	raw, ok, err := r.store.Get(ConfigsKey)
	if err != nil {
		r.log.WithError(err).Error("failed to read model configs, using defaults")
		return r.DefaultConfigs(), nil
	}
	if !ok {
		return r.DefaultConfigs(), nil
	}

	configs, err := r.decode(raw)
	switch {
	case errors.Is(err, ErrUndecryptable):
		r.log.WithError(err).Error("keeping stored model configs, check security.secret or the key file")
		return nil, err
	case err != nil:
		r.log.WithError(err).Warn("discarding stored model configs")
		if derr := r.store.Delete(ConfigsKey); derr != nil {
			r.log.WithError(derr).Error("failed to delete corrupt model configs")
		}
		return r.DefaultConfigs(), nil
	}
	return configs, nil
}

func (r *Registry) decode(raw string) ([]models.ModelConfig, error) {
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsArray() {
		return nil, fmt.Errorf("%w: not a JSON array", ErrCorruptPersistedState)
	}

	configs := []models.ModelConfig{}
	if err := json.UnmarshalFromString(raw, &configs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPersistedState, err)
	}

	if r.cipher != nil {
		for i := range configs {
			key, err := r.cipher.Decrypt(configs[i].APIKey)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: %v", ErrUndecryptable, i, err)
			}
			configs[i].APIKey = key
		}
	}

	if errs := r.validator.ValidateList(configs); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPersistedState, &ValidationError{Fields: errs})
	}
	return configs, nil
}

// SaveConfigs replaces the whole stored list. Nothing is written unless every
// entry is valid; validation failures are returned as *ValidationError.
func (r *Registry) SaveConfigs(configs []models.ModelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(configs)
}

func (r *Registry) saveLocked(configs []models.ModelConfig) error {
	if errs := r.validator.ValidateList(configs); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	stored := make([]models.ModelConfig, len(configs))
	copy(stored, configs)
	if r.cipher != nil {
		for i := range stored {
			key, err := r.cipher.Encrypt(stored[i].APIKey)
			if err != nil {
				return fmt.Errorf("failed to encrypt API key of %s: %w", stored[i].ID, err)
			}
			stored[i].APIKey = key
		}
	}

	data, err := json.MarshalToString(stored)
	if err != nil {
		return fmt.Errorf("failed to serialize model configs: %w", err)
	}
	if err := r.store.Set(ConfigsKey, data); err != nil {
		return fmt.Errorf("failed to save model configs: %w", err)
	}
	return nil
}

// ActiveConfigs filters all down to the usable entries, keeping their order.
func ActiveConfigs(all []models.ModelConfig) []models.ModelConfig {
	active := make([]models.ModelConfig, 0, len(all))
	for _, c := range all {
		if c.IsActive() {
			active = append(active, c)
		}
	}
	return active
}

// Active returns the usable subset of the stored list.
func (r *Registry) Active() []models.ModelConfig {
	return ActiveConfigs(r.LoadConfigs())
}

// SelectNext advances the rotation cursor and returns the active config it
// lands on. It returns false, and leaves the cursor alone, when no config is
// active. The cursor is an index into the active subset, so editing the list
// can shift which config comes next.
func (r *Registry) SelectNext() (models.ModelConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := ActiveConfigs(r.loadLocked())
	n := len(active)
	if n == 0 {
		return models.ModelConfig{}, false
	}

	next := r.advanceCursor(n)
	selected := active[next]
	r.log.WithFields(logrus.Fields{
		"label":    selected.Label,
		"provider": selected.Provider,
		"index":    next,
	}).Debug("selected model")
	return selected, true
}

// Next is SelectNext for callers that want an error.
func (r *Registry) Next() (models.ModelConfig, error) {
	c, ok := r.SelectNext()
	if !ok {
		return models.ModelConfig{}, ErrNoActiveModel
	}
	return c, nil
}

func (r *Registry) advanceCursor(n int) int {
	step := func(cur string, ok bool) string {
		return strconv.Itoa(nextIndex(r.parseCursor(cur, ok), n))
	}

	if u, ok := r.store.(storage.Updater); ok {
		var next string
		err := u.Update(CursorKey, func(cur string, ok bool) (string, error) {
			next = step(cur, ok)
			return next, nil
		})
		if err == nil {
			idx, _ := strconv.Atoi(next)
			return idx
		}
		r.log.WithError(err).Warn("failed to update rotation cursor")
		if next != "" {
			idx, _ := strconv.Atoi(next)
			return idx
		}
	}

	cur, ok, err := r.store.Get(CursorKey)
	if err != nil {
		r.log.WithError(err).Warn("failed to read rotation cursor")
		ok = false
	}
	next := step(cur, ok)
	if err := r.store.Set(CursorKey, next); err != nil {
		r.log.WithError(err).Warn("failed to persist rotation cursor")
	}
	idx, _ := strconv.Atoi(next)
	return idx
}

// Cursor returns the persisted rotation cursor, -1 when none is stored.
func (r *Registry) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok, err := r.store.Get(CursorKey)
	if err != nil {
		r.log.WithError(err).Warn("failed to read rotation cursor")
		return -1
	}
	return r.parseCursor(cur, ok)
}

func (r *Registry) parseCursor(cur string, ok bool) int {
	if !ok {
		return -1
	}
	c, err := strconv.Atoi(cur)
	if err != nil || c < -1 {
		r.log.WithField("value", cur).Warn("ignoring invalid rotation cursor")
		return -1
	}
	return c
}

// nextIndex is (cursor+1) mod n, kept non-negative for out-of-range cursors.
func nextIndex(cursor, n int) int {
	return ((cursor+1)%n + n) % n
}

// Find returns the config with the given id.
func (r *Registry) Find(id string) (models.ModelConfig, bool) {
	for _, c := range r.LoadConfigs() {
		if c.ID == id {
			return c, true
		}
	}
	return models.ModelConfig{}, false
}

// Edit loads the list, lets fn rewrite it and saves the result, all under the
// registry lock. An error from fn aborts without writing, and so does a stored
// list that cannot be decrypted.
func (r *Registry) Edit(fn func(configs []models.ModelConfig) ([]models.ModelConfig, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.readLocked()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return r.saveLocked(next)
}
