package state

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"lightrig/internal/logger"
	"lightrig/internal/store"
)

const saveTimeout = 2 * time.Second

// Holder guards the state. Every read-modify-write goes through Update, which
// commits under the lock and persists the committed copy after releasing it.
type Holder struct {
	mu        sync.Mutex
	st        State
	version   uint64 // bumped on every commit
	store     store.Store
	log       *logger.Log
	listeners []func(State)

	saveMu sync.Mutex
	saved  uint64 // version of the last document written
}

// NewHolder returns a holder with the default state.
func NewHolder(log logger.Logger, s store.Store) *Holder {
	return &Holder{
		st:    Default(),
		store: s,
		log:   log.Module("state"),
	}
}

// Load merges the persisted document over the defaults. Keys missing from the
// document keep their default values.
func (h *Holder) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Default()
	found, err := h.store.Load(ctx, store.KeyState, &st)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	if !found {
		h.log.Info("no saved state, using defaults")
		return nil
	}
	if !st.Mode.Valid() {
		st.Mode = ModeAI
	}
	h.st = st
	return nil
}

// Snapshot returns a copy of the current state.
func (h *Holder) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.st.Clone()
}

// OnChange registers fn to receive every state committed by Update. fn runs
// outside the lock and must not block.
func (h *Holder) OnChange(fn func(State)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Update applies fn to a copy of the state. If fn returns an error the state
// is left unchanged. Otherwise the copy becomes the state and is persisted
// before Update returns; persistence failures are logged, the in-memory state
// stays authoritative.
func (h *Holder) Update(fn func(*State) error) (State, error) {
	h.mu.Lock()
	next := h.st.Clone()
	if err := fn(&next); err != nil {
		h.mu.Unlock()
		return h.Snapshot(), err
	}
	h.st = next
	h.version++
	version := h.version
	out := h.st.Clone()
	listeners := h.listeners
	h.mu.Unlock()

	h.persist(version, out)
	for _, l := range listeners {
		l(out.Clone())
	}
	return out, nil
}

// UpdateIfChanged is Update that skips persisting and notifying when fn left
// the state untouched. Used by the engine tick, which runs every few ms.
func (h *Holder) UpdateIfChanged(fn func(*State)) State {
	h.mu.Lock()
	next := h.st.Clone()
	fn(&next)
	if reflect.DeepEqual(next, h.st) {
		h.mu.Unlock()
		return next
	}
	h.st = next
	h.version++
	version := h.version
	out := h.st.Clone()
	listeners := h.listeners
	h.mu.Unlock()

	h.persist(version, out)
	for _, l := range listeners {
		l(out.Clone())
	}
	return out
}

// persist writes st unless a later commit already reached the store.
func (h *Holder) persist(version uint64, st State) {
	h.saveMu.Lock()
	defer h.saveMu.Unlock()
	if version <= h.saved {
		return
	}
	h.saved = version
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := h.store.Save(ctx, store.KeyState, st); err != nil {
		h.log.Warnf("state not persisted: %v", err)
	}
}
