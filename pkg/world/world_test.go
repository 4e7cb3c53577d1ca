package world_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/dsl"
	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/registry"
	"github.com/aretw0/cadence/pkg/telemetry"
	"github.com/aretw0/cadence/pkg/world"
)

type (
	// recorder collects hook events. Hooks run on the ticking goroutine.
	recorder struct {
		mu          sync.Mutex
		steps       []domain.Progress
		stepTimes   []time.Time
		transitions []domain.TransitionEvent
		errors      []domain.ErrorEvent
		idle        chan struct{}
	}

	countingTelemetry struct {
		mu      sync.Mutex
		records []string
	}

	// stuckTimer never fires.
	stuckTimer struct {
		ch chan time.Time
	}
)

var epoch = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func newRecorder() *recorder {
	return &recorder{idle: make(chan struct{}, 16)}
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStep: func(_ context.Context, e *domain.StepEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.steps = append(r.steps, e.Progress)
			r.stepTimes = append(r.stepTimes, e.Timestamp)
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			r.mu.Lock()
			r.transitions = append(r.transitions, *e)
			r.mu.Unlock()
			if e.To == "" {
				r.idle <- struct{}{}
			}
		},
		OnError: func(_ context.Context, e *domain.ErrorEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, *e)
		},
	}
}

func (r *recorder) positions(procedure string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, p := range r.steps {
		if p.Procedure == procedure {
			out = append(out, p.Position)
		}
	}
	return out
}

func (c *countingTelemetry) Record(_ context.Context, procedure string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, procedure)
	return nil
}

func (c *countingTelemetry) Latest() telemetry.Snapshot { return telemetry.Snapshot{} }

func (t *stuckTimer) Channel() <-chan time.Time { return t.ch }
func (t *stuckTimer) Stop() bool                { return true }

func newWorld(t *testing.T, opts []world.Option, states ...*procedure.State) (*world.World, *recorder, *world.FakeClock) {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, reg.AddAll(states...))
	rec := newRecorder()
	clock := world.NewFakeClock(epoch)
	base := []world.Option{world.WithFakeClock(clock), world.WithHooks(rec.hooks())}
	return world.New(reg, append(base, opts...)...), rec, clock
}

func mustBuild(t *testing.T, b *dsl.Builder) *procedure.State {
	t.Helper()
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func tickUntilIdle(t *testing.T, w *world.World) {
	t.Helper()
	for i := 0; ; i++ {
		require.Less(t, i, 1000, "scheduler never went idle")
		err := w.Tick(context.Background())
		if errors.Is(err, world.ErrIdle) {
			return
		}
	}
}

func TestWorld_RunsStepsInSourceOrder(t *testing.T) {
	var log []string
	do := func(name string) func(*procedure.Proc) error {
		return func(*procedure.Proc) error {
			log = append(log, name)
			return nil
		}
	}
	s := mustBuild(t, dsl.New("ramp").
		Do("a", do("a")).
		Repeat(3, func(b *dsl.Builder) { b.Do("b", do("b")).Do("c", do("c")) }).
		Do("d", do("d")))
	w, rec, _ := newWorld(t, nil, s)

	w.Start(s)
	tickUntilIdle(t, w)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, rec.positions("ramp"))
	assert.Equal(t, []string{"a", "b", "c", "b", "c", "b", "c", "d"}, log)
	assert.Equal(t, domain.StatusIdle, w.Status())
	assert.ErrorIs(t, w.Tick(context.Background()), world.ErrIdle)
}

func TestWorld_WaitDirectivesAreHonored(t *testing.T) {
	valves := mustBuild(t, dsl.New("valves").
		Do("open_valve", func(*procedure.Proc) error { return nil }).
		Wait(5*time.Second).
		Do("close_valve", func(*procedure.Proc) error { return nil }).
		Then("after"))
	after := mustBuild(t, dsl.New("after").Checkpoint())
	w, rec, clock := newWorld(t, nil, valves, after)

	w.Start(valves)
	ctx := context.Background()
	for range 3 {
		require.NoError(t, w.Tick(ctx))
	}
	require.Len(t, rec.stepTimes, 3)
	assert.Equal(t, epoch, rec.stepTimes[0])
	assert.Equal(t, epoch, rec.stepTimes[1])
	assert.GreaterOrEqual(t, rec.stepTimes[2].Sub(rec.stepTimes[1]), 5*time.Second)
	assert.Equal(t, epoch.Add(5*time.Second), clock.Now())

	// The run is over: the next tick transitions without pulling a step.
	require.NoError(t, w.Tick(ctx))
	assert.Equal(t, "after", w.CurrentProgress().Procedure)
	assert.Equal(t, -1, w.CurrentProgress().Position)
	require.NoError(t, w.Tick(ctx))
	assert.Equal(t, []int{0}, rec.positions("after"))

	last := rec.transitions[len(rec.transitions)-1]
	assert.Equal(t, "valves", last.From)
	assert.Equal(t, "after", last.To)
	assert.Equal(t, domain.ReasonSuccessor, last.Reason)
}

func TestWorld_WaitHoldsForFullDurationOnWallClock(t *testing.T) {
	const wait = 90 * time.Millisecond
	s := mustBuild(t, dsl.New("settle").
		Checkpoint().
		Wait(wait).
		Checkpoint())
	reg := registry.NewRegistry()
	require.NoError(t, reg.Add(s))
	rec := newRecorder()
	samples := &countingTelemetry{}
	w := world.New(reg,
		world.WithHooks(rec.hooks()),
		world.WithTelemetry(samples),
		world.WithSamplePeriod(20*time.Millisecond),
	)

	w.Start(s)
	ctx := context.Background()
	require.NoError(t, w.Tick(ctx))
	require.NoError(t, w.Tick(ctx))
	started := time.Now()
	require.NoError(t, w.Tick(ctx))

	assert.GreaterOrEqual(t, time.Since(started), wait-5*time.Millisecond)
	require.Len(t, rec.stepTimes, 3)
	assert.GreaterOrEqual(t, rec.stepTimes[2].Sub(rec.stepTimes[1]), wait)
	samples.mu.Lock()
	defer samples.mu.Unlock()
	assert.Greater(t, len(samples.records), 3)
}

func TestWorld_SwitchTakesEffectAtNextSuspensionPoint(t *testing.T) {
	var s1Steps []int
	s1 := mustBuild(t, dsl.New("s1").Repeat(10, func(b *dsl.Builder) {
		b.Do("step", func(p *procedure.Proc) error {
			s1Steps = append(s1Steps, p.Position()+1)
			return nil
		})
	}).Then("never"))
	s2 := mustBuild(t, dsl.New("s2").Checkpoint().Checkpoint())
	w, rec, clock := newWorld(t, nil, s1, s2)
	ctx := context.Background()

	w.Start(s1)
	for range 4 {
		require.NoError(t, w.Tick(ctx))
	}
	clock.Advance(time.Minute)
	assert.Equal(t, time.Minute, w.ElapsedInState())

	w.RequestSwitch(s2)
	require.NoError(t, w.Tick(ctx))

	assert.Equal(t, []int{0, 1, 2, 3}, rec.positions("s1"))
	assert.Equal(t, []int{0}, rec.positions("s2"))
	assert.Equal(t, []int{0, 1, 2, 3}, s1Steps)
	assert.Zero(t, w.ElapsedInState())

	tickUntilIdle(t, w)
	assert.Equal(t, []int{0, 1, 2, 3}, s1Steps)
	switched := rec.transitions[1]
	assert.Equal(t, domain.ReasonSwitch, switched.Reason)
	assert.Equal(t, "s1", switched.From)
}

func TestWorld_WhileLoopExitsWhenThresholdCrossed(t *testing.T) {
	st := hardware.SimulatedStation()
	inst, _ := st.Instrument("cryocon")
	cryocon := inst.(*hardware.Simulated)
	cryocon.SetValue("chB_temperature", "9")

	cooling := mustBuild(t, dsl.New("cooling").
		While("chB > 5", dsl.Above("cryocon.chB_temperature", 5), func(b *dsl.Builder) {
			b.Wait(time.Second)
		}).
		Then("ramp_down"))
	rampDown := mustBuild(t, dsl.New("ramp_down").Checkpoint())
	w, rec, _ := newWorld(t, []world.Option{world.WithEnv(procedure.Env{Station: st})}, cooling, rampDown)
	ctx := context.Background()

	w.Start(cooling)
	for range 6 {
		require.NoError(t, w.Tick(ctx))
	}
	assert.Empty(t, rec.positions("ramp_down"))

	cryocon.SetValue("chB_temperature", "4.9")
	require.NoError(t, w.Tick(ctx)) // condition evaluates false
	require.NoError(t, w.Tick(ctx)) // run ends, successor starts
	require.NoError(t, w.Tick(ctx))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, rec.positions("cooling"))
	assert.Equal(t, []int{0}, rec.positions("ramp_down"))
}

func TestWorld_UnknownSuccessorGoesIdle(t *testing.T) {
	s := mustBuild(t, dsl.New("lost").Checkpoint().Then("nowhere"))
	w, rec, _ := newWorld(t, nil, s)
	ctx := context.Background()

	w.Start(s)
	require.NoError(t, w.Tick(ctx))
	err := w.Tick(ctx)

	var unknown *domain.UnknownSuccessorError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nowhere", unknown.Name)
	assert.Equal(t, domain.StatusIdle, w.Status())
	assert.Contains(t, w.CurrentProgress().LastError, "nowhere")
	require.Len(t, rec.errors, 1)
	assert.False(t, rec.errors[0].Fatal)
	assert.ErrorIs(t, w.Tick(ctx), world.ErrIdle)
}

func TestWorld_ProcedureErrorGoesIdle(t *testing.T) {
	boom := errors.New("relay stuck")
	s := mustBuild(t, dsl.New("broken").
		Checkpoint().
		Do("relay", func(*procedure.Proc) error { return boom }).
		Then("never"))
	w, rec, _ := newWorld(t, nil, s)
	ctx := context.Background()

	w.Start(s)
	require.NoError(t, w.Tick(ctx))
	assert.ErrorIs(t, w.Tick(ctx), boom)
	assert.Equal(t, domain.StatusIdle, w.Status())
	assert.Contains(t, w.CurrentProgress().LastError, "relay stuck")
	require.Len(t, rec.errors, 1)
	assert.Equal(t, "broken", rec.errors[0].Procedure)
}

func TestWorld_CycleWithoutSuspensionPointsGoesIdle(t *testing.T) {
	body := func(next string) procedure.Body {
		return func(*procedure.Proc) (string, error) { return next, nil }
	}
	ping, err := procedure.Func("ping", body("pong"))
	require.NoError(t, err)
	pong, err := procedure.Func("pong", body("ping"))
	require.NoError(t, err)
	w, rec, _ := newWorld(t, nil, ping, pong)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.StartByName("ping"))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-rec.idle:
	case <-ctx.Done():
		t.Fatal("scheduler kept cycling")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.transitions, 2)
	assert.Equal(t, "ping", rec.transitions[1].From)
	require.Len(t, rec.errors, 1)
	var compileErr *domain.CompileError
	require.ErrorAs(t, rec.errors[0].Err, &compileErr)
	assert.Equal(t, "ping", compileErr.Procedure)
	assert.Equal(t, domain.StatusIdle, w.Status())
	assert.Contains(t, w.CurrentProgress().LastError, "suspension point")
}

func TestWorld_BackwardsClockIsFatal(t *testing.T) {
	s := mustBuild(t, dsl.New("s").Checkpoint().Checkpoint())
	w, rec, clock := newWorld(t, nil, s)
	ctx := context.Background()

	w.Start(s)
	require.NoError(t, w.Tick(ctx))
	clock.Set(epoch.Add(-time.Hour))

	err := w.Tick(ctx)
	var fatal *domain.SchedulerFatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, domain.StatusHalted, w.Status())
	assert.ErrorAs(t, w.Tick(ctx), &fatal)
	assert.ErrorAs(t, w.Run(ctx), &fatal)
	require.Len(t, rec.errors, 1)
	assert.True(t, rec.errors[0].Fatal)
	assert.Equal(t, domain.StatusHalted, w.CurrentProgress().Status)
}

func TestWorld_SwitchInterruptsWait(t *testing.T) {
	ran := false
	long := mustBuild(t, dsl.New("long").
		Wait(time.Hour).
		Do("late", func(*procedure.Proc) error { ran = true; return nil }))
	short := mustBuild(t, dsl.New("short").Checkpoint())

	reg := registry.NewRegistry()
	require.NoError(t, reg.AddAll(long, short))
	rec := newRecorder()
	clock := world.NewFakeClock(epoch)
	w := world.New(reg,
		world.WithClock(clock.Now),
		world.WithTimer(func(time.Duration) world.Timer { return &stuckTimer{ch: make(chan time.Time)} }),
		world.WithHooks(rec.hooks()),
	)
	ctx := context.Background()

	w.Start(long)
	require.NoError(t, w.Tick(ctx))
	assert.Equal(t, domain.StatusWaiting, w.Status())
	assert.Equal(t, time.Hour, w.CurrentProgress().WaitRemaining)

	done := make(chan error, 1)
	go func() { done <- w.Tick(ctx) }()
	require.NoError(t, w.SwitchByName("short"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait was not interrupted")
	}
	assert.False(t, ran)
	assert.Equal(t, []int{0}, rec.positions("short"))
}

func TestWorld_TickReturnsOnCancelDuringWait(t *testing.T) {
	s := mustBuild(t, dsl.New("long").Wait(time.Hour).Checkpoint())
	reg := registry.NewRegistry()
	require.NoError(t, reg.Add(s))
	w := world.New(reg,
		world.WithTimer(func(time.Duration) world.Timer { return &stuckTimer{ch: make(chan time.Time)} }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(s)
	require.NoError(t, w.Tick(ctx))
	cancel()
	assert.ErrorIs(t, w.Tick(ctx), context.Canceled)
}

func TestWorld_RequestStop(t *testing.T) {
	s := mustBuild(t, dsl.New("forever").Forever(func(b *dsl.Builder) { b.Wait(time.Second) }))
	w, rec, _ := newWorld(t, nil, s)
	ctx := context.Background()

	w.Start(s)
	for range 5 {
		require.NoError(t, w.Tick(ctx))
	}
	w.RequestStop()
	assert.ErrorIs(t, w.Tick(ctx), world.ErrIdle)
	assert.Equal(t, domain.StatusIdle, w.Status())
	assert.Empty(t, w.CurrentProgress().Procedure)

	last := rec.transitions[len(rec.transitions)-1]
	assert.Equal(t, "forever", last.From)
	assert.Equal(t, domain.ReasonIdle, last.Reason)
}

func TestWorld_SamplesTelemetryWhileWaiting(t *testing.T) {
	s := mustBuild(t, dsl.New("soak").Wait(time.Minute).Checkpoint())
	tel := &countingTelemetry{}
	w, _, _ := newWorld(t, []world.Option{
		world.WithTelemetry(tel),
		world.WithSamplePeriod(10 * time.Second),
	}, s)

	w.Start(s)
	tickUntilIdle(t, w)

	// 2 suspension points plus 5 samples inside the 60s wait.
	assert.Len(t, tel.records, 7)
	for _, name := range tel.records {
		assert.Equal(t, "soak", name)
	}
}

func TestWorld_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := mustBuild(t, dsl.New("chatty").Repeat(20, func(b *dsl.Builder) { b.Checkpoint() }))
	w, _, _ := newWorld(t, nil, s)

	ch, unsubscribe := w.Subscribe(1)
	w.Start(s)
	tickUntilIdle(t, w)

	first := <-ch
	assert.Equal(t, "chatty", first.Procedure)
	assert.Equal(t, -1, first.Position)

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	unsubscribe()
}

func TestWorld_RunBlocksWhileIdle(t *testing.T) {
	s := mustBuild(t, dsl.New("brief").Checkpoint().Wait(time.Second).Checkpoint())
	w, rec, _ := newWorld(t, nil, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for range 2 {
		require.NoError(t, w.StartByName("brief"))
		select {
		case <-rec.idle:
		case <-time.After(time.Second):
			t.Fatal("procedure did not finish")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, rec.positions("brief"))
	assert.ErrorIs(t, w.StartByName("missing"), domain.ErrUnknownProcedure)
}
