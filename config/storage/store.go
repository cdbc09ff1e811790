// Package storage holds the key-value stores the model registry and the
// workspace persist into.
package storage

import (
	"fmt"
	"regexp"
)

// Store is a string key-value store. A missing key is reported with ok=false,
// not an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// UpdateFunc computes the new value of a key from its current value.
// Returning an error aborts the update and leaves the key untouched.
type UpdateFunc func(current string, ok bool) (string, error)

// Updater is implemented by stores that can run a read-modify-write of a
// single key atomically, across processes where the backend allows it.
type Updater interface {
	Update(key string, fn UpdateFunc) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateKey rejects keys that cannot be used as a top-level JSON path or a
// namespaced Redis key.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid store key %q: only letters, digits, '-' and '_' are allowed", key)
	}
	return nil
}
