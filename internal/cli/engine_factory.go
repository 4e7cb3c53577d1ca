package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/config"
	"github.com/aretw0/cadence/internal/metrics"
	"github.com/aretw0/cadence/pkg/adapters/memory"
	"github.com/aretw0/cadence/pkg/adapters/redis"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/telemetry"
)

// stack is an engine together with the collaborators the CLI owns.
type stack struct {
	engine  *cadence.Engine
	metrics *metrics.Metrics
	records *memory.Store
	redis   *redis.Store
}

// createEngine initializes a Cadence engine with standard CLI conventions.
func createEngine(cfg config.Config, logger *slog.Logger, debug bool) (*stack, error) {
	st, err := buildStation(cfg)
	if err != nil {
		return nil, err
	}

	s := &stack{
		metrics: metrics.New(),
		records: memory.NewStore(cfg.Telemetry.Buffer),
	}

	// 1. Hooks
	hooks := s.metrics.Hooks()
	if debug {
		hooks = domain.ChainHooks(hooks, createDebugHooks(logger))
	}

	// 2. Telemetry sinks
	engineOpts := []cadence.Option{
		cadence.WithLogger(logger),
		cadence.WithLifecycleHooks(hooks),
		cadence.WithStation(st),
		cadence.WithSink(s.records),
		cadence.WithChannels(cfg.Channels()),
		cadence.WithRetries(cfg.Telemetry.Retries),
		cadence.WithSamplePeriod(cfg.Telemetry.SamplePeriod),
		cadence.WithTestMode(cfg.TestMode),
	}
	if cfg.Redis.Addr != "" {
		s.redis = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))
		engineOpts = append(engineOpts, cadence.WithSink(s.redis))
	}
	if cfg.ProceduresDir != "" {
		engineOpts = append(engineOpts, cadence.WithProceduresDir(cfg.ProceduresDir))
	}

	// 3. Initialize
	s.engine, err = cadence.New(engineOpts...)
	if err != nil {
		_ = st.Close()
		s.closeRedis()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}

	if err := s.metrics.Register(metrics.NewTelemetryCollector(s.engine.Telemetry())); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the instruments and the telemetry store.
func (s *stack) Close() error {
	err := s.engine.Close()
	s.closeRedis()
	return err
}

func (s *stack) closeRedis() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// operatorTelemetry returns the source served to operators: the latest Redis hash when a
// store is configured, otherwise the in-process snapshot.
func (s *stack) operatorTelemetry() telemetry.Source {
	if s.redis == nil {
		return s.engine.Telemetry()
	}
	return latestSource{store: s.redis, fallback: s.engine.Telemetry()}
}

type latestSource struct {
	store    *redis.Store
	fallback telemetry.Source
}

func (l latestSource) Latest() telemetry.Snapshot {
	snap, err := l.store.LoadLatest(context.Background())
	if err != nil {
		return l.fallback.Latest()
	}
	return snap
}

// buildStation opens the configured instruments, or the simulated station.
// A station without a labjack gets the simulated one.
func buildStation(cfg config.Config) (*hardware.Station, error) {
	if cfg.Station.Simulate {
		return hardware.SimulatedStation(), nil
	}

	st, err := hardware.NewStation()
	if err != nil {
		return nil, err
	}
	for _, spec := range cfg.Station.Instruments {
		inst, err := hardware.OpenDevice(spec)
		if err == nil {
			err = st.Add(inst)
		}
		if err != nil {
			return nil, errors.Join(err, st.Close())
		}
	}
	if _, ok := st.Instrument("labjack"); !ok {
		lj, _ := hardware.SimulatedStation().Instrument("labjack")
		if err := st.Add(lj); err != nil {
			return nil, errors.Join(err, st.Close())
		}
	}
	return st, nil
}
