package config

import (
	"sync"
)

// Store holds the live configuration and hands out consistent snapshots.
// Reload swaps the whole Config, so readers never observe a half-applied
// file.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps cfg in a Store. A nil cfg is replaced with defaults.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg}
}

// Snapshot returns the current Config. Callers must treat it as read-only.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in a new Config. Nil configs are ignored.
func (s *Store) Replace(cfg *Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// APIKeys returns the current inbound key list.
func (s *Store) APIKeys() []string {
	return s.Snapshot().APIKeys
}

// PushSecret returns the current extension push secret.
func (s *Store) PushSecret() string {
	return s.Snapshot().PushSecret
}
