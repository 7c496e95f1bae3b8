// Package cache keeps the status of recent runs in memory so HTTP callers
// can fetch a report after the run that produced it has finished.
package cache

import (
	"sync"
	"time"

	"github.com/use-agent/sortcheck/models"
)

// entry holds a run status with the time it was last written.
type entry struct {
	status    models.RunStatus
	updatedAt time.Time
}

// Store is an in-memory run status store. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Store holding at most maxEntries runs, each retrievable for
// ttl after its last update. A background goroutine evicts expired entries
// until Close is called.
func New(maxEntries int, ttl time.Duration) *Store {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Store{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go s.cleanupLoop()
	return s
}

// Get returns a copy of the run status for id.
func (s *Store) Get(id string) (models.RunStatus, bool) {
	s.mu.RLock()
	e, ok := s.store[id]
	if !ok {
		s.mu.RUnlock()
		return models.RunStatus{}, false
	}
	status, updatedAt := e.status, e.updatedAt
	s.mu.RUnlock()

	if s.now().Sub(updatedAt) > s.ttl {
		return models.RunStatus{}, false
	}
	return status, true
}

// Put stores status under status.ID. At capacity, the entry with the
// oldest update is evicted first, preferring finished runs over running ones.
func (s *Store) Put(status models.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.store[status.ID]; !exists && len(s.store) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.store[status.ID] = &entry{status: status, updatedAt: s.now()}
}

// Update applies fn to the stored status for id. It reports false if id is
// unknown.
func (s *Store) Update(id string, fn func(*models.RunStatus)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.store[id]
	if !ok {
		return false
	}
	fn(&e.status)
	e.updatedAt = s.now()
	return true
}

// Len returns the number of stored runs, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

// Close stops the cleanup goroutine.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) evictOldestLocked() {
	var victim string
	var victimAt time.Time
	victimRunning := true

	for id, e := range s.store {
		running := e.status.Status == models.RunStatusRunning
		switch {
		case victim == "":
		case victimRunning && !running:
		case running == victimRunning && e.updatedAt.Before(victimAt):
		default:
			continue
		}
		victim, victimAt, victimRunning = id, e.updatedAt, running
	}
	if victim != "" {
		delete(s.store, victim)
	}
}

// cleanupLoop evicts expired entries every ttl/4, at least once a minute.
func (s *Store) cleanupLoop() {
	interval := s.ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	for k, e := range s.store {
		if e.updatedAt.Before(cutoff) {
			delete(s.store, k)
		}
	}
	s.mu.Unlock()
}
