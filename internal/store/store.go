// Package store persists the rig's JSON documents (mode state, scenes, band
// presets, rehearsal offsets) under fixed keys.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Document keys.
const (
	KeyState       = "state"
	KeyScenes      = "scenes"
	KeyBandPresets = "band_presets"
	KeyRehearsal   = "rehearsal"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store loads and saves whole documents.
type Store interface {
	// Load decodes the document under key into dst. found is false when
	// nothing was saved yet; dst is then left untouched.
	Load(ctx context.Context, key string, dst any) (found bool, err error)
	// Save replaces the document under key.
	Save(ctx context.Context, key string, doc any) error
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: map[string][]byte{}}
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	body, ok := m.docs[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return true, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	m.mu.Lock()
	m.docs[key] = body
	m.mu.Unlock()
	return nil
}
