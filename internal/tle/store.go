package tle

import (
	"sync/atomic"
	"time"
)

// Store holds the active dataset. Readers never block; a dataset is replaced
// whole.
type Store struct {
	dataset atomic.Pointer[Dataset]
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Age returns how old the current dataset is at now, or -1 if none is loaded.
func (s *Store) Age(now time.Time) time.Duration {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return now.Sub(ds.FetchedAt)
}
