package storage

import (
	"sync"
	"time"
)

// AlertStore records when each kind of alert last fired so repeated alerts
// can be held back during a cooldown.
type AlertStore interface {
	LastAlert(kind string) (time.Time, bool)
	MarkAlert(kind string, at time.Time)
}

// MemoryStorage keeps alert timestamps in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	alerts map[string]time.Time
}

// NewMemoryStorage returns an empty store: no alert kind has fired yet.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		alerts: make(map[string]time.Time),
	}
}

// LastAlert reports when kind last fired.
func (s *MemoryStorage) LastAlert(kind string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.alerts[kind]
	return at, ok
}

// MarkAlert stores at as the latest firing of kind.
func (s *MemoryStorage) MarkAlert(kind string, at time.Time) {
	s.mu.Lock()
	s.alerts[kind] = at
	s.mu.Unlock()
}

// InCooldown reports whether kind fired less than cooldown before now.
func InCooldown(store AlertStore, kind string, cooldown time.Duration, now time.Time) bool {
	last, ok := store.LastAlert(kind)
	if !ok {
		return false
	}
	return now.Sub(last) < cooldown
}
