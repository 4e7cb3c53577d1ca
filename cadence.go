package cadence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/adapters/yaml"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/registry"
	"github.com/aretw0/cadence/pkg/telemetry"
	"github.com/aretw0/cadence/pkg/world"
	"github.com/aretw0/cadence/procedures"
)

// Engine is the high-level entry point for the Cadence library.
// It wires the station, the telemetry logger, the procedure registry and the scheduler.
type Engine struct {
	registry  *registry.Registry
	world     *world.World
	telemetry *telemetry.Logger
	station   *hardware.Station

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	sinks        []telemetry.Sink
	channels     []telemetry.Channel
	retries      int
	samplePeriod time.Duration
	testMode     bool
	dirs         []string
	extra        []*procedure.State
	yamlOpts     []yaml.Option
	worldOpts    []world.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithStation sets the instrument handles. Default is the simulated 2pac station.
func WithStation(st *hardware.Station) Option {
	return func(e *Engine) {
		e.station = st
	}
}

// WithSink adds a telemetry sink.
func WithSink(s telemetry.Sink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, s)
	}
}

// WithChannels replaces the recorded telemetry channels.
func WithChannels(channels []telemetry.Channel) Option {
	return func(e *Engine) {
		e.channels = channels
	}
}

// WithRetries sets the read attempts for telemetry and procedure reads.
func WithRetries(n int) Option {
	return func(e *Engine) {
		e.retries = n
	}
}

// WithSamplePeriod records telemetry periodically during waits.
func WithSamplePeriod(d time.Duration) Option {
	return func(e *Engine) {
		e.samplePeriod = d
	}
}

// WithTestMode shortens the built-in procedures.
func WithTestMode(on bool) Option {
	return func(e *Engine) {
		e.testMode = on
	}
}

// WithProceduresDir loads YAML and Starlark procedures from dir.
func WithProceduresDir(dir string) Option {
	return func(e *Engine) {
		e.dirs = append(e.dirs, dir)
	}
}

// WithProcedures registers additional compiled procedures.
func WithProcedures(states ...*procedure.State) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, states...)
	}
}

// WithAction exposes a host action to YAML procedures under name.
func WithAction(name string, fn yaml.Action) Option {
	return func(e *Engine) {
		e.yamlOpts = append(e.yamlOpts, yaml.WithAction(name, fn))
	}
}

// WithWorldOptions passes options through to the scheduler, e.g. a fake clock in tests.
func WithWorldOptions(opts ...world.Option) Option {
	return func(e *Engine) {
		e.worldOpts = append(e.worldOpts, opts...)
	}
}

// New builds an Engine with the built-in procedures registered.
// Exits that name no registered procedure are logged, not rejected.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{retries: 1}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.station == nil {
		e.station = hardware.SimulatedStation()
	}
	if len(e.channels) == 0 {
		e.channels = telemetry.DefaultChannels()
	}

	e.registry = registry.NewRegistry()
	if err := procedures.Register(e.registry, procedures.Config{TestMode: e.testMode}); err != nil {
		return nil, fmt.Errorf("failed to register built-in procedures: %w", err)
	}
	for _, dir := range e.dirs {
		states, err := LoadDir(dir, e.yamlOpts...)
		if err != nil {
			return nil, err
		}
		if err := e.registry.AddAll(states...); err != nil {
			return nil, err
		}
		e.logger.Info("procedures loaded", "dir", dir, "count", len(states))
	}
	if err := e.registry.AddAll(e.extra...); err != nil {
		return nil, err
	}
	if err := e.registry.Validate(); err != nil {
		e.logger.Warn("procedures declare unknown successors", "err", err)
	}

	telOpts := []telemetry.Option{
		telemetry.WithRetries(e.retries),
		telemetry.WithLogger(e.logger),
	}
	for _, s := range e.sinks {
		telOpts = append(telOpts, telemetry.WithSink(s))
	}
	e.telemetry = telemetry.NewLogger(e.station, e.channels, telOpts...)

	worldOpts := []world.Option{
		world.WithLogger(e.logger),
		world.WithHooks(e.hooks),
		world.WithTelemetry(e.telemetry),
		world.WithEnv(procedure.Env{Station: e.station, Logger: e.logger, Retries: e.retries}),
		world.WithSamplePeriod(e.samplePeriod),
	}
	e.world = world.New(e.registry, append(worldOpts, e.worldOpts...)...)
	return e, nil
}

// Registry returns the procedure registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// World returns the scheduler.
func (e *Engine) World() *world.World { return e.world }

// Telemetry returns the telemetry logger.
func (e *Engine) Telemetry() *telemetry.Logger { return e.telemetry }

// Station returns the instrument handles.
func (e *Engine) Station() *hardware.Station { return e.station }

// Run starts initial (when not empty) and drives the scheduler until ctx is cancelled
// or the scheduler halts.
func (e *Engine) Run(ctx context.Context, initial string) error {
	if initial != "" {
		if err := e.world.StartByName(initial); err != nil {
			return err
		}
	}
	defer e.world.Close()
	return e.world.Run(ctx)
}

// Close releases the instruments.
func (e *Engine) Close() error {
	return e.station.Close()
}
