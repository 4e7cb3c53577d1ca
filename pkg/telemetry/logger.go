package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aretw0/cadence/internal/logging"
)

// Reader reads instrument parameters by "instrument.param" address.
type Reader interface {
	Get(ctx context.Context, addr string) (string, error)
}

// Channel is one recorded instrument parameter.
type Channel struct {
	// Name is the recorded channel name. Empty derives it from Addr ("cryocon.chA_temperature" -> "cryocon_chA_temperature").
	Name string `mapstructure:"name" yaml:"name"`
	Addr string `mapstructure:"addr" yaml:"addr"`
	// Text marks non-numeric channels such as relay or heat-switch positions.
	Text bool `mapstructure:"text" yaml:"text"`
}

func (c Channel) key() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.ReplaceAll(c.Addr, ".", "_")
}

// DefaultChannels is the channel table of the 2pac ADR station.
func DefaultChannels() []Channel {
	return []Channel{
		{Addr: "cryocon.chA_temperature"},
		{Addr: "cryocon.chB_temperature"},
		{Addr: "cryocon.chC_temperature"},
		{Addr: "cryocon.chD_temperature"},
		{Addr: "labjack.kepco_current"},
		{Addr: "labjack.kepco_voltage"},
		{Addr: "ls370.heater_out"},
		{Addr: "labjack.relay", Text: true},
		{Addr: "labjack.heatswitch_adr", Text: true},
		{Addr: "labjack.heatswitch_charcoal", Text: true},
		{Addr: "labjack.heatswitch_pot", Text: true},
		{Addr: "labjack.he3_pressure"},
		{Name: "faa_temperature", Addr: "ls370.ch04_temperature"},
	}
}

// Logger is the Collaborator that samples every channel through a Reader.
type Logger struct {
	reader   Reader
	channels []Channel
	retries  int
	sinks    []Sink
	clock    func() time.Time
	logger   *slog.Logger

	start  time.Time
	latest atomic.Pointer[Snapshot]
}

// Option configures a Logger.
type Option func(*Logger)

// WithSink adds a sink receiving every record.
func WithSink(s Sink) Option {
	return func(l *Logger) {
		l.sinks = append(l.sinks, s)
	}
}

// WithRetries sets the number of read attempts per channel. Default is 1.
func WithRetries(n int) Option {
	return func(l *Logger) {
		l.retries = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(l *Logger) {
		l.clock = clock
	}
}

// NewLogger creates a telemetry logger over channels.
func NewLogger(reader Reader, channels []Channel, opts ...Option) *Logger {
	l := &Logger{
		reader:   reader,
		channels: channels,
		retries:  1,
		clock:    time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.start = l.clock()
	l.latest.Store(&Snapshot{})
	return l
}

// Record samples every channel, publishes the snapshot and appends the record to every sink.
// Read failures become NaN; only sink failures are returned.
func (l *Logger) Record(ctx context.Context, procedure string) error {
	now := l.clock()
	rec := Record{
		Elapsed:   now.Sub(l.start),
		Time:      now,
		Procedure: procedure,
		Pairs:     make([]Pair, 0, len(l.channels)),
	}
	snap := &Snapshot{
		Time:      now,
		Procedure: procedure,
		Values:    make(map[string]float64, len(l.channels)),
		Labels:    make(map[string]string),
	}

	for _, ch := range l.channels {
		name := ch.key()
		if ch.Text {
			text := RetryValue(l.retries, func() (string, error) {
				return l.reader.Get(ctx, ch.Addr)
			}, "NaN")
			rec.Pairs = append(rec.Pairs, Pair{Channel: name, Text: text, IsText: true})
			snap.Labels[name] = text
			continue
		}
		v := Retry(l.retries, func() (float64, error) {
			raw, err := l.reader.Get(ctx, ch.Addr)
			if err != nil {
				return 0, err
			}
			return strconv.ParseFloat(strings.TrimSpace(raw), 64)
		})
		rec.Pairs = append(rec.Pairs, Pair{Channel: name, Value: v})
		snap.Values[name] = v
	}
	l.latest.Store(snap)

	var errs []error
	for _, s := range l.sinks {
		if err := s.Append(ctx, rec); err != nil {
			l.logger.Warn("telemetry sink failed", "procedure", procedure, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Latest returns the most recent snapshot.
func (l *Logger) Latest() Snapshot {
	return *l.latest.Load()
}

// Channels returns the recorded channel names in order.
func (l *Logger) Channels() []string {
	names := make([]string, len(l.channels))
	for i, ch := range l.channels {
		names[i] = ch.key()
	}
	return names
}
