// Package dmx holds the single 512-slot output frame of the rig.
package dmx

import "sync"

// UniverseSize is the number of slots in one DMX universe.
const UniverseSize = 512

// Frame wraps the 512 byte array for convenience.
type Frame [UniverseSize]byte

// ChannelValue is one pending write: a 0-indexed buffer slot and an unclamped value.
type ChannelValue struct {
	Index int // Index - slot in the frame (0-511).
	Value int // Value - clamped to 0-255 when applied.
}

// Index converts a fixture start address and a 1-indexed channel offset into
// a 0-indexed frame slot.
func Index(start, offset int) int {
	return start + offset - 2
}

// InRange reports whether idx addresses a slot of the frame.
func InRange(idx int) bool {
	return idx >= 0 && idx < UniverseSize
}

// Clamp limits v to the DMX value range.
func Clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// Universe is the last-written state of the output frame.
//
// All methods are safe for concurrent use. Apply writes a whole batch under one
// lock, so a reader never observes half of a batch.
type Universe struct {
	mu    sync.RWMutex
	frame Frame
}

// NewUniverse returns an all-zero universe.
func NewUniverse() *Universe {
	return &Universe{}
}

// Apply writes every value of the batch and returns a copy of the resulting
// frame. Out-of-range slots are dropped.
func (u *Universe) Apply(values []ChannelValue) Frame {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, v := range values {
		if !InRange(v.Index) {
			continue
		}
		u.frame[v.Index] = Clamp(v.Value)
	}
	return u.frame
}

// Get returns the value at idx. ok is false for out-of-range slots.
func (u *Universe) Get(idx int) (value byte, ok bool) {
	if !InRange(idx) {
		return 0, false
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.frame[idx], true
}

// Snapshot returns a copy of the whole frame.
func (u *Universe) Snapshot() Frame {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.frame
}
