// Package redis persists telemetry records in Redis.
//
// Every record is appended to a capped stream; the latest value of each channel
// is kept in a hash so a restarted station can show the last known readings.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/cadence/pkg/telemetry"
)

// ErrNoTelemetry is returned by LoadLatest when nothing has been recorded yet.
var ErrNoTelemetry = errors.New("no telemetry recorded")

const (
	defaultPrefix = "cadence:telemetry:"
	defaultMaxLen = 100_000

	fieldTime      = "@time"
	fieldProcedure = "@procedure"
	valuePrefix    = "v:"
	textPrefix     = "t:"
)

// Store implements telemetry.Sink using Redis.
type Store struct {
	client *backend.Client
	prefix string
	maxLen int64
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithMaxLen caps the stream length. Older records are trimmed on append.
func WithMaxLen(n int64) Option {
	return func(s *Store) {
		s.maxLen = n
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
		maxLen: defaultMaxLen,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) streamKey() string {
	return s.prefix + "stream"
}

func (s *Store) latestKey() string {
	return s.prefix + "latest"
}

type wirePair struct {
	Channel string `json:"channel"`
	Value   string `json:"value,omitempty"`
	Text    string `json:"text,omitempty"`
	IsText  bool   `json:"is_text,omitempty"`
}

// Append adds rec to the stream and updates the latest hash in one pipeline.
func (s *Store) Append(ctx context.Context, rec telemetry.Record) error {
	pairs := make([]wirePair, len(rec.Pairs))
	latest := map[string]any{
		fieldTime:      rec.Time.Format(time.RFC3339Nano),
		fieldProcedure: rec.Procedure,
	}
	for i, p := range rec.Pairs {
		if p.IsText {
			pairs[i] = wirePair{Channel: p.Channel, Text: p.Text, IsText: true}
			latest[textPrefix+p.Channel] = p.Text
			continue
		}
		v := strconv.FormatFloat(p.Value, 'g', -1, 64)
		pairs[i] = wirePair{Channel: p.Channel, Value: v}
		latest[valuePrefix+p.Channel] = v
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.XAdd(ctx, &backend.XAddArgs{
		Stream: s.streamKey(),
		MaxLen: s.maxLen,
		Values: []any{
			"elapsed", int64(rec.Elapsed),
			"time", rec.Time.Format(time.RFC3339Nano),
			"procedure", rec.Procedure,
			"pairs", string(data),
		},
	})
	pipe.HSet(ctx, s.latestKey(), latest)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// Range returns up to count most recent records, oldest first.
func (s *Store) Range(ctx context.Context, count int64) ([]telemetry.Record, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.streamKey(), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	slices.Reverse(msgs)

	out := make([]telemetry.Record, 0, len(msgs))
	for _, m := range msgs {
		rec, err := decodeRecord(m.Values)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", m.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadLatest rebuilds the last known snapshot.
func (s *Store) LoadLatest(ctx context.Context) (telemetry.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.latestKey()).Result()
	if err != nil {
		return telemetry.Snapshot{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(fields) == 0 {
		return telemetry.Snapshot{}, ErrNoTelemetry
	}

	snap := telemetry.Snapshot{
		Procedure: fields[fieldProcedure],
		Values:    make(map[string]float64),
		Labels:    make(map[string]string),
	}
	if ts := fields[fieldTime]; ts != "" {
		if snap.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return telemetry.Snapshot{}, fmt.Errorf("invalid time %q: %w", ts, err)
		}
	}
	for k, v := range fields {
		switch {
		case strings.HasPrefix(k, valuePrefix):
			snap.Values[strings.TrimPrefix(k, valuePrefix)] = parseValue(v)
		case strings.HasPrefix(k, textPrefix):
			snap.Labels[strings.TrimPrefix(k, textPrefix)] = v
		}
	}
	return snap, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decodeRecord(values map[string]any) (telemetry.Record, error) {
	str := func(k string) string {
		v, _ := values[k].(string)
		return v
	}

	var rec telemetry.Record
	rec.Procedure = str("procedure")
	elapsed, err := strconv.ParseInt(str("elapsed"), 10, 64)
	if err != nil {
		return rec, fmt.Errorf("invalid elapsed: %w", err)
	}
	rec.Elapsed = time.Duration(elapsed)
	if rec.Time, err = time.Parse(time.RFC3339Nano, str("time")); err != nil {
		return rec, fmt.Errorf("invalid time: %w", err)
	}

	var pairs []wirePair
	if err := json.Unmarshal([]byte(str("pairs")), &pairs); err != nil {
		return rec, fmt.Errorf("failed to unmarshal pairs: %w", err)
	}
	rec.Pairs = make([]telemetry.Pair, len(pairs))
	for i, p := range pairs {
		rec.Pairs[i] = telemetry.Pair{Channel: p.Channel, Text: p.Text, IsText: p.IsText}
		if !p.IsText {
			rec.Pairs[i].Value = parseValue(p.Value)
		}
	}
	return rec, nil
}

func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
