package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Store is a read-only key lookup over a loaded viper instance
type Store struct {
	v *viper.Viper
}

// NewStore wraps v. The instance should come from LoadWithViper.
func NewStore(v *viper.Viper) *Store {
	return &Store{v: v}
}

// String returns the trimmed value under key. Unset and blank values report false.
func (s *Store) String(key string) (string, bool) {
	if s == nil || s.v == nil {
		return "", false
	}
	value := strings.TrimSpace(s.v.GetString(key))
	return value, value != ""
}

// MapStore is an in-memory key lookup, mostly for tests and embedding
type MapStore map[string]string

// String returns the trimmed value under key. Unset and blank values report false.
func (m MapStore) String(key string) (string, bool) {
	value := strings.TrimSpace(m[key])
	return value, value != ""
}
