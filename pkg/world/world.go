package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/registry"
	"github.com/aretw0/cadence/pkg/telemetry"
)

// ErrIdle is returned by Tick when no procedure is active.
var ErrIdle = errors.New("scheduler idle")

// request is a pending start, switch or stop. A nil state means idle.
type request struct {
	state  *procedure.State
	reason domain.TransitionReason
}

// World drives one procedure at a time, one suspension point per Tick.
//
// Tick and Run must be called from a single goroutine. Start, RequestSwitch, RequestStop,
// CurrentProgress, ElapsedInState and Subscribe are safe from any goroutine.
type World struct {
	registry     *registry.Registry
	env          procedure.Env
	telemetry    telemetry.Collaborator
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	clock        Clock
	newTimer     TimerConstructor
	samplePeriod time.Duration
	status       *fsm.FSM

	// Owned by the driving goroutine.
	cursor   *procedure.Cursor
	deadline time.Time
	lastNow  time.Time
	fatal    error

	wake chan struct{}

	mu         sync.Mutex
	pending    *request
	progress   domain.Progress
	stateStart time.Time
	runStart   time.Time
	waitUntil  time.Time
	subs       map[int]chan domain.Progress
	nextSub    int
}

// New creates a World resolving successors through reg.
func New(reg *registry.Registry, opts ...Option) *World {
	w := &World{
		registry:  reg,
		telemetry: telemetry.Nop{},
		logger:    logging.NewNop(),
		clock:     time.Now,
		newTimer:  NewTimer,
		status:    newStatusMachine(),
		wake:      make(chan struct{}, 1),
		subs:      make(map[int]chan domain.Progress),
		progress:  domain.Progress{Position: -1, Line: -1, Status: domain.StatusIdle},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.env.Logger == nil {
		w.env.Logger = w.logger
	}
	return w
}

// Start begins a run of state at the next Tick.
func (w *World) Start(state *procedure.State) {
	w.request(&request{state: state, reason: domain.ReasonStart})
}

// RequestSwitch replaces the active procedure at its next suspension point.
// A pending wait is cut short. The request overrides the successor of the current run.
func (w *World) RequestSwitch(state *procedure.State) {
	w.request(&request{state: state, reason: domain.ReasonSwitch})
}

// RequestStop abandons the active procedure at its next suspension point and goes idle.
func (w *World) RequestStop() {
	w.request(&request{reason: domain.ReasonIdle})
}

// StartByName looks up name in the registry and starts it.
func (w *World) StartByName(name string) error {
	s, err := w.registry.Get(name)
	if err != nil {
		return err
	}
	w.Start(s)
	return nil
}

// SwitchByName looks up name in the registry and requests a switch to it.
func (w *World) SwitchByName(name string) error {
	s, err := w.registry.Get(name)
	if err != nil {
		return err
	}
	w.RequestSwitch(s)
	return nil
}

// request records r and wakes the driving goroutine. The wake token is only ever
// queued together with a pending request, so applyPending can drain it.
func (w *World) request(r *request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = r
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *World) hasPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil
}

// Tick advances the active cursor by one suspension point.
//
// When the previous step was a wait directive, Tick first blocks until its deadline, a new
// request or ctx cancellation. A tick that ends a run performs the transition without pulling
// a step of the successor. Tick returns ErrIdle when no procedure is active, and a
// *domain.SchedulerFatalError once the clock is observed going backwards.
func (w *World) Tick(ctx context.Context) error {
	if w.fatal != nil {
		return w.fatal
	}
	if _, err := w.now(); err != nil {
		return w.halt(ctx, err)
	}

	if !w.deadline.IsZero() {
		if err := w.sleep(ctx); err != nil {
			return err
		}
	}
	w.applyPending(ctx)

	if w.cursor == nil {
		return ErrIdle
	}

	mark, ok := w.cursor.Next()
	if !ok {
		return w.finish(ctx)
	}
	if err := w.step(ctx, mark); err != nil {
		return err
	}
	w.applyPending(ctx)
	return nil
}

// Run ticks until ctx is cancelled or the scheduler halts. While idle it blocks until a request arrives.
// Procedure failures and unknown successors are reported through hooks and progress, not returned.
func (w *World) Run(ctx context.Context) error {
	w.logger.Info("scheduler started")
	defer w.logger.Info("scheduler stopped")

	for {
		err := w.Tick(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var fatal *domain.SchedulerFatalError
		switch {
		case err == nil:
		case errors.Is(err, ErrIdle):
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.wake:
			}
		case errors.As(err, &fatal):
			return err
		}
	}
}

// Close stops the active cursor. Call it after Run has returned.
func (w *World) Close() {
	if w.cursor != nil {
		w.cursor.Stop()
		w.cursor = nil
	}
}

func (w *World) now() (time.Time, error) {
	now := w.clock()
	if !w.lastNow.IsZero() && now.Before(w.lastNow) {
		return now, &domain.SchedulerFatalError{
			Reason: fmt.Sprintf("clock moved backwards from %s to %s", w.lastNow.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano)),
		}
	}
	w.lastNow = now
	return now, nil
}

// sleep blocks until the wait deadline. Telemetry is sampled every sample period meanwhile.
func (w *World) sleep(ctx context.Context) error {
	for {
		now, err := w.now()
		if err != nil {
			return w.halt(ctx, err)
		}
		remaining := w.deadline.Sub(now)
		if remaining <= 0 || w.hasPending() {
			w.endWait(ctx)
			return nil
		}
		chunk := remaining
		if w.samplePeriod > 0 && chunk > w.samplePeriod {
			chunk = w.samplePeriod
		}

		timer := w.newTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-w.wake:
			timer.Stop()
			if w.hasPending() {
				w.logger.Debug("wait interrupted by request", "remaining", remaining)
				w.endWait(ctx)
				return nil
			}
			continue
		case <-timer.Channel():
		}

		if chunk < remaining {
			w.sample(ctx)
		}
	}
}

func (w *World) endWait(ctx context.Context) {
	w.deadline = time.Time{}
	w.mu.Lock()
	w.waitUntil = time.Time{}
	w.mu.Unlock()
	w.fire(ctx, eventResume)
}

// sample records telemetry during a wait and republishes progress with the remaining wait.
func (w *World) sample(ctx context.Context) {
	name := w.activeName()
	if err := w.telemetry.Record(ctx, name); err != nil {
		w.logger.Warn("telemetry record failed", "procedure", name, "error", err)
	}
	w.mu.Lock()
	p := w.progress
	w.mu.Unlock()
	p.Timestamp = w.lastNow
	w.publish(p)
}

func (w *World) step(ctx context.Context, mark procedure.Mark) error {
	now, err := w.now()
	if err != nil {
		return w.halt(ctx, err)
	}
	state := w.cursor.State()

	w.mu.Lock()
	if w.runStart.IsZero() {
		w.runStart = now
	}
	if mark.IsWait() {
		w.deadline = now.Add(mark.Wait)
	}
	w.waitUntil = w.deadline
	p := domain.Progress{
		Procedure:   state.Name(),
		RunID:       w.cursor.ID(),
		Position:    mark.Position,
		Line:        mark.Line,
		Status:      domain.StatusRunning,
		Highlighted: state.Highlight(mark.Line),
		LastError:   w.progress.LastError,
		Timestamp:   now,
	}
	w.mu.Unlock()

	if mark.IsWait() {
		w.fire(ctx, eventWait)
		p.Status = domain.StatusWaiting
	}
	w.publish(p)

	if err := w.telemetry.Record(ctx, state.Name()); err != nil {
		w.logger.Warn("telemetry record failed", "procedure", state.Name(), "error", err)
	}

	w.logger.Debug("step",
		"procedure", state.Name(),
		"position", mark.Position,
		"line", mark.Line,
		"wait", mark.Wait,
	)
	base := domain.EventBase{Timestamp: now, RunID: w.cursor.ID()}
	if w.hooks.OnStep != nil {
		base.Type = domain.EventStep
		w.hooks.OnStep(ctx, &domain.StepEvent{EventBase: base, Progress: w.CurrentProgress()})
	}
	if mark.IsWait() && w.hooks.OnWait != nil {
		base.Type = domain.EventWait
		w.hooks.OnWait(ctx, &domain.WaitEvent{
			EventBase: base,
			Procedure: state.Name(),
			Duration:  mark.Wait,
			Deadline:  w.deadline,
		})
	}
	return nil
}

// finish handles the end of a run: a pending request wins, then the produced successor.
func (w *World) finish(ctx context.Context) error {
	cur := w.cursor
	from := cur.State().Name()
	next, runErr := cur.Result()

	if runErr != nil {
		w.logger.Error("procedure failed", "procedure", from, "run_id", cur.ID(), "error", runErr)
		w.report(ctx, from, runErr, false)
	}
	if w.applyPending(ctx) {
		return runErr
	}
	if runErr != nil || next == "" {
		w.goIdle(ctx, from, domain.ReasonIdle)
		return runErr
	}

	state, err := w.registry.Resolve(from, next)
	if err != nil {
		w.logger.Error("unknown successor", "procedure", from, "successor", next)
		w.report(ctx, from, err, false)
		w.goIdle(ctx, from, domain.ReasonIdle)
		return err
	}
	if !slices.Contains(cur.State().Exits(), next) {
		w.logger.Warn("successor not declared as exit", "procedure", from, "successor", next)
	}
	w.begin(ctx, state, domain.ReasonSuccessor)
	return nil
}

func (w *World) applyPending(ctx context.Context) bool {
	w.mu.Lock()
	req := w.pending
	w.pending = nil
	select {
	case <-w.wake:
	default:
	}
	w.mu.Unlock()

	if req == nil {
		return false
	}
	if req.state == nil {
		w.goIdle(ctx, w.activeName(), req.reason)
		return true
	}
	w.begin(ctx, req.state, req.reason)
	return true
}

func (w *World) begin(ctx context.Context, state *procedure.State, reason domain.TransitionReason) {
	from := w.activeName()
	if w.cursor != nil {
		w.cursor.Stop()
	}
	w.cursor = state.Start(ctx, w.env)
	w.deadline = time.Time{}

	if w.Status() == domain.StatusIdle {
		w.fire(ctx, eventStart)
	} else {
		w.fire(ctx, eventSwitch)
	}

	now := w.lastNow
	w.mu.Lock()
	w.stateStart = now
	w.waitUntil = time.Time{}
	p := domain.Progress{
		Procedure:   state.Name(),
		RunID:       w.cursor.ID(),
		Position:    -1,
		Line:        -1,
		Status:      domain.StatusRunning,
		Highlighted: state.Highlight(-1),
		LastError:   w.progress.LastError,
		Timestamp:   now,
	}
	w.mu.Unlock()
	w.publish(p)

	w.logger.Info("procedure started", "procedure", state.Name(), "from", from, "reason", reason, "run_id", w.cursor.ID())
	w.transition(ctx, from, state.Name(), reason)
}

func (w *World) goIdle(ctx context.Context, from string, reason domain.TransitionReason) {
	if w.cursor != nil {
		w.cursor.Stop()
		w.cursor = nil
	}
	w.deadline = time.Time{}
	w.fire(ctx, eventFinish)

	w.mu.Lock()
	w.waitUntil = time.Time{}
	p := domain.Progress{
		Position:  -1,
		Line:      -1,
		Status:    domain.StatusIdle,
		LastError: w.progress.LastError,
		Timestamp: w.lastNow,
	}
	w.mu.Unlock()
	w.publish(p)

	if from != "" {
		w.logger.Info("procedure ended", "procedure", from, "reason", reason)
		w.transition(ctx, from, "", reason)
	}
}

func (w *World) transition(ctx context.Context, from, to string, reason domain.TransitionReason) {
	if w.hooks.OnTransition == nil {
		return
	}
	w.hooks.OnTransition(ctx, &domain.TransitionEvent{
		EventBase: domain.EventBase{Timestamp: w.lastNow, Type: domain.EventTransition},
		From:      from,
		To:        to,
		Reason:    reason,
	})
}

// report records err as the last error and emits it to the hooks.
func (w *World) report(ctx context.Context, procedure string, err error, fatal bool) {
	w.mu.Lock()
	w.progress.LastError = err.Error()
	w.mu.Unlock()

	if w.hooks.OnError == nil {
		return
	}
	w.hooks.OnError(ctx, &domain.ErrorEvent{
		EventBase: domain.EventBase{Timestamp: w.lastNow, Type: domain.EventError},
		Procedure: procedure,
		Err:       err,
		Message:   err.Error(),
		Fatal:     fatal,
	})
}

func (w *World) halt(ctx context.Context, err error) error {
	w.fatal = err
	name := w.activeName()
	w.logger.Error("scheduler halted", "procedure", name, "error", err)
	w.fire(ctx, eventHalt)
	w.report(ctx, name, err, true)

	w.mu.Lock()
	p := w.progress
	w.mu.Unlock()
	p.Status = domain.StatusHalted
	w.publish(p)
	return err
}

func (w *World) activeName() string {
	if w.cursor == nil {
		return ""
	}
	return w.cursor.State().Name()
}
