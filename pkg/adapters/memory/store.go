// Package memory provides an in-memory telemetry sink.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/cadence/pkg/telemetry"
)

// DefaultCapacity is the number of records kept when NewStore is given a non-positive capacity.
const DefaultCapacity = 4096

// Store implements telemetry.Sink with a bounded ring. The oldest record is overwritten when full.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	buf   []telemetry.Record
	start int
	n     int
}

// NewStore creates a store holding at most capacity records.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{buf: make([]telemetry.Record, capacity)}
}

// Append stores a copy of rec.
func (s *Store) Append(ctx context.Context, rec telemetry.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Pairs = slices.Clone(rec.Pairs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n < len(s.buf) {
		s.buf[(s.start+s.n)%len(s.buf)] = rec
		s.n++
		return nil
	}
	s.buf[s.start] = rec
	s.start = (s.start + 1) % len(s.buf)
	return nil
}

// Records returns the stored records, oldest first.
func (s *Store) Records() []telemetry.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]telemetry.Record, s.n)
	for i := range s.n {
		out[i] = s.buf[(s.start+i)%len(s.buf)]
	}
	return out
}

// Last returns up to n most recent records, oldest first.
func (s *Store) Last(n int) []telemetry.Record {
	all := s.Records()
	if n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}
