package procedure

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/telemetry"
)

// ErrNoStation is returned by hardware helpers when the Env carries no station.
var ErrNoStation = errors.New("no hardware station")

// Env is the scheduler context passed into every run.
type Env struct {
	Station   *hardware.Station
	Telemetry telemetry.Source
	Logger    *slog.Logger
	// Retries is the number of attempts of Get and Text. Zero means one attempt.
	Retries int
}

// Proc is the handle a running body uses to reach hardware and to suspend.
type Proc struct {
	ctx    context.Context
	env    Env
	state  *State
	cursor *Cursor
	yield  func(Mark) bool
}

func (p *Proc) Context() context.Context { return p.ctx }

func (p *Proc) Station() *hardware.Station { return p.env.Station }

// Name returns the name of the running procedure.
func (p *Proc) Name() string { return p.state.name }

// Position returns the last reached step position.
func (p *Proc) Position() int { return p.cursor.Position() }

// Logger returns the Env logger tagged with the procedure and run.
func (p *Proc) Logger() *slog.Logger {
	l := p.env.Logger
	if l == nil {
		l = logging.NewNop()
	}
	return l.With("procedure", p.state.name, "run_id", p.cursor.id)
}

// Latest returns the latest telemetry snapshot.
func (p *Proc) Latest() telemetry.Snapshot {
	if p.env.Telemetry == nil {
		return telemetry.Snapshot{}
	}
	return p.env.Telemetry.Latest()
}

// Suspend yields a suspension point at line with an optional wait directive.
// It does not return if the cursor is stopped while suspended.
func (p *Proc) Suspend(line int, wait time.Duration) {
	if wait < 0 {
		wait = 0
	}
	if !p.yield(p.cursor.reach(line, wait)) {
		panic(abortRun{})
	}
}

// Checkpoint suspends without side effects.
func (p *Proc) Checkpoint() {
	p.Suspend(p.callerLine(), 0)
}

// Wait suspends with a wait directive. The scheduler resumes the body no earlier than d later.
func (p *Proc) Wait(d time.Duration) {
	p.Suspend(p.callerLine(), d)
}

// Set writes an instrument parameter, then suspends.
// A failed write ends the run with the error.
func (p *Proc) Set(addr string, value any) {
	line := p.callerLine()
	if err := p.TrySet(addr, value); err != nil {
		p.Fail(err)
	}
	p.Suspend(line, 0)
}

// TrySet writes an instrument parameter without suspending.
func (p *Proc) TrySet(addr string, value any) error {
	if p.env.Station == nil {
		return ErrNoStation
	}
	return p.env.Station.Set(p.ctx, addr, value)
}

// Get reads a numeric parameter with bounded retry. Exhausted reads return NaN.
func (p *Proc) Get(addr string) float64 {
	return telemetry.Retry(p.retries(), func() (float64, error) {
		if p.env.Station == nil {
			return 0, ErrNoStation
		}
		return p.env.Station.GetFloat(p.ctx, addr)
	})
}

// Text reads a text parameter with bounded retry. Exhausted reads return "NaN".
func (p *Proc) Text(addr string) string {
	return telemetry.RetryValue(p.retries(), func() (string, error) {
		if p.env.Station == nil {
			return "", ErrNoStation
		}
		return p.env.Station.Get(p.ctx, addr)
	}, "NaN")
}

// Fail ends the run with err.
func (p *Proc) Fail(err error) {
	panic(failRun{err: err})
}

func (p *Proc) retries() int {
	if p.env.Retries <= 0 {
		return 1
	}
	return p.env.Retries
}

// callerLine finds the 0-based line of the innermost frame inside the body's source file.
func (p *Proc) callerLine() int {
	file := p.state.file
	if file == "" {
		return -1
	}
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.File == file || strings.HasSuffix(f.File, "/"+file) {
			return f.Line - 1
		}
		if !more {
			return -1
		}
	}
}
