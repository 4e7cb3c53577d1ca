package hardware

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/cadence/pkg/domain"
)

// ErrInjected is the cause reported by reads failed through FailReads.
var ErrInjected = errors.New("injected read failure")

// Write is one Set call observed by a Simulated instrument.
type Write struct {
	Param string
	Value string
}

// Simulated is an in-memory instrument. The initial value table defines its parameters.
type Simulated struct {
	name string

	mu       sync.Mutex
	values   map[string]string
	failures map[string]int
	writes   []Write
	onSet    []func(param, value string)
}

// NewSimulated creates a simulated instrument holding a copy of values.
func NewSimulated(name string, values map[string]string) *Simulated {
	return &Simulated{
		name:     name,
		values:   maps.Clone(values),
		failures: make(map[string]int),
	}
}

func (s *Simulated) Name() string { return s.name }

func (s *Simulated) Params() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.values))
}

func (s *Simulated) Get(ctx context.Context, param string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.failures[param]; ok && n != 0 {
		if n > 0 {
			s.failures[param] = n - 1
		}
		return "", &domain.HardwareReadError{Instrument: s.name, Param: param, Err: ErrInjected}
	}
	v, ok := s.values[param]
	if !ok {
		return "", &domain.HardwareReadError{Instrument: s.name, Param: param, Err: ErrUnknownParam}
	}
	return v, nil
}

func (s *Simulated) Set(ctx context.Context, param string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.values[param]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s.%s: %w", s.name, param, ErrUnknownParam)
	}
	s.values[param] = value
	s.writes = append(s.writes, Write{Param: param, Value: value})
	hooks := slices.Clone(s.onSet)
	s.mu.Unlock()

	for _, h := range hooks {
		h(param, value)
	}
	return nil
}

// SetValue changes a value without recording a write, as the device itself would.
func (s *Simulated) SetValue(param, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[param] = value
}

// FailReads makes the next n reads of param fail. A negative n fails every read until reset with 0.
func (s *Simulated) FailReads(param string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[param] = n
}

// Writes returns every Set observed so far, in order.
func (s *Simulated) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.writes)
}

// OnSet registers a callback run after every successful Set.
func (s *Simulated) OnSet(fn func(param, value string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSet = append(s.onSet, fn)
}
