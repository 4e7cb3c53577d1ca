// Package telemetry records instrument readings once per scheduler suspension point
// and publishes the latest values to the operator surfaces.
package telemetry

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Snapshot is the latest value of every channel.
type Snapshot struct {
	Time      time.Time          `json:"time"`
	Procedure string             `json:"procedure"`
	Values    map[string]float64 `json:"-"`
	Labels    map[string]string  `json:"labels,omitempty"`
}

// Float returns the value of a numeric channel, NaN when unknown.
func (s Snapshot) Float(channel string) float64 {
	if v, ok := s.Values[channel]; ok {
		return v
	}
	return math.NaN()
}

// Label returns the value of a text channel.
func (s Snapshot) Label(channel string) string {
	return s.Labels[channel]
}

// MarshalJSON encodes NaN readings as null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	values := make(map[string]*float64, len(s.Values))
	for k, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			values[k] = nil
			continue
		}
		values[k] = &v
	}
	return json.Marshal(struct {
		alias
		Values map[string]*float64 `json:"values"`
	}{alias(s), values})
}

// Source exposes the latest snapshot.
type Source interface {
	Latest() Snapshot
}

// Collaborator is the telemetry hook driven by the scheduler.
type Collaborator interface {
	Source
	Record(ctx context.Context, procedure string) error
}

// Pair is one channel reading. Text channels set IsText and carry Text, which may be empty;
// numeric channels carry Value.
type Pair struct {
	Channel string  `json:"channel"`
	Value   float64 `json:"value"`
	Text    string  `json:"text,omitempty"`
	IsText  bool    `json:"is_text,omitempty"`
}

func (p Pair) String() string {
	if p.IsText {
		return p.Text
	}
	return strconv.FormatFloat(p.Value, 'g', -1, 64)
}

// Record is one sample of every channel.
type Record struct {
	// Elapsed is the monotonic time since the logger started.
	Elapsed   time.Duration
	Time      time.Time
	Procedure string
	Pairs     []Pair
}

// Sink persists telemetry records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Append(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Nop is a collaborator that records nothing.
type Nop struct{}

func (Nop) Latest() Snapshot                     { return Snapshot{} }
func (Nop) Record(context.Context, string) error { return nil }
