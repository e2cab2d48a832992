// Package momentary applies transient actions and reverts them after a hold
// on an independent timer, so the caller never waits out the hold.
package momentary

import (
	"sync"
	"time"

	"lightrig/internal/logger"
)

// Scheduler tracks one pending revert per action id.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*entry
	log     *logger.Log
}

type entry struct {
	timer  *time.Timer
	revert func()
}

// New returns an idle scheduler.
func New(log logger.Logger) *Scheduler {
	return &Scheduler{
		pending: map[string]*entry{},
		log:     log.Module("momentary"),
	}
}

// Trigger runs apply now and revert after hold. Triggering an id that is
// still holding restarts its hold; the earlier revert is dropped. The hold
// starts once apply has returned.
func (s *Scheduler) Trigger(id string, hold time.Duration, apply, revert func()) {
	s.mu.Lock()
	if old, ok := s.pending[id]; ok {
		old.stop()
	}
	e := &entry{revert: revert}
	s.pending[id] = e
	s.mu.Unlock()

	apply()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] != e {
		// superseded or cancelled while applying
		return
	}
	e.timer = time.AfterFunc(hold, func() { s.fire(id, e) })
	s.log.Debugf("%s held for %s", id, hold)
}

func (e *entry) stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

func (s *Scheduler) fire(id string, e *entry) {
	s.mu.Lock()
	if s.pending[id] != e {
		// restarted or cancelled after the timer fired
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("%s revert panicked: %v", id, r)
		}
	}()
	e.revert()
}

// Cancel drops the pending revert of id without running it.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[id]
	if !ok {
		return false
	}
	e.stop()
	delete(s.pending, id)
	return true
}

// Pending reports whether id is holding.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// Stop cancels every pending revert.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.pending {
		e.stop()
		delete(s.pending, id)
	}
}
