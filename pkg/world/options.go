package world

import (
	"log/slog"
	"time"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/telemetry"
)

// Option configures a World.
type Option func(*World)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// WithHooks sets the lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(w *World) {
		w.hooks = hooks
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(w *World) {
		w.clock = clock
	}
}

// WithTimer replaces the wait timer constructor.
func WithTimer(newTimer TimerConstructor) Option {
	return func(w *World) {
		w.newTimer = newTimer
	}
}

// WithFakeClock drives both the clock and the wait timers from c.
func WithFakeClock(c *FakeClock) Option {
	return func(w *World) {
		w.clock = c.Now
		w.newTimer = c.NewTimer
	}
}

// WithSamplePeriod records telemetry every d while waiting. Zero disables sampling during waits.
func WithSamplePeriod(d time.Duration) Option {
	return func(w *World) {
		w.samplePeriod = d
	}
}

// WithTelemetry sets the telemetry collaborator recorded at every suspension point.
// It also becomes the telemetry source of procedure runs.
func WithTelemetry(t telemetry.Collaborator) Option {
	return func(w *World) {
		w.telemetry = t
		w.env.Telemetry = t
	}
}

// WithEnv sets the scheduler context passed to every run.
func WithEnv(env procedure.Env) Option {
	return func(w *World) {
		if env.Telemetry == nil {
			env.Telemetry = w.env.Telemetry
		}
		w.env = env
	}
}
