package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cadence/pkg/telemetry"
)

func rec(i int) telemetry.Record {
	return telemetry.Record{
		Elapsed:   time.Duration(i) * time.Second,
		Procedure: "full_cycle",
		Pairs:     []telemetry.Pair{{Channel: "faa_temperature", Value: float64(i)}},
	}
}

func TestStore_RingOverwritesOldest(t *testing.T) {
	s := NewStore(3)
	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, s.Append(ctx, rec(i)))
	}

	got := s.Records()
	require.Len(t, got, 3)
	assert.Equal(t, 2*time.Second, got[0].Elapsed)
	assert.Equal(t, 4*time.Second, got[2].Elapsed)
	assert.Equal(t, 3, s.Len())

	last := s.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, 3*time.Second, last[0].Elapsed)
	assert.Len(t, s.Last(10), 3)
}

func TestStore_CopiesPairs(t *testing.T) {
	s := NewStore(0)
	r := rec(1)
	require.NoError(t, s.Append(context.Background(), r))
	r.Pairs[0].Value = 99

	assert.Equal(t, 1.0, s.Records()[0].Pairs[0].Value)
}

func TestStore_CancelledContext(t *testing.T) {
	s := NewStore(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Append(ctx, rec(1)), context.Canceled)
	assert.Zero(t, s.Len())
}

func TestStore_IsSink(t *testing.T) {
	var _ telemetry.Sink = NewStore(1)
}
