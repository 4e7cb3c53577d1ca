package procedure

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/cadence/pkg/domain"
)

// Mark is a reached suspension point.
type Mark struct {
	Position int
	// Line is the 0-based source line of the step, -1 when unknown.
	Line int
	// Wait is positive when the step is a wait directive.
	Wait time.Duration
}

// IsWait reports whether the mark is a wait directive.
func (m Mark) IsWait() bool { return m.Wait > 0 }

type (
	// abortRun unwinds a body whose cursor was stopped.
	abortRun struct{}
	// failRun unwinds a body with an error raised by a Proc helper.
	failRun struct{ err error }
)

// Cursor is one live run of a State. It is not safe for concurrent use.
type Cursor struct {
	id    string
	state *State

	next func() (Mark, bool)
	stop func()

	position int
	last     Mark
	result   string
	err      error
	done     bool
	stopped  bool
}

func newCursor(ctx context.Context, s *State, env Env) *Cursor {
	c := &Cursor{
		id:    uuid.NewString(),
		state: s,
		last:  Mark{Position: -1, Line: -1},
	}
	p := &Proc{ctx: ctx, env: env, state: s, cursor: c}
	seq := func(yield func(Mark) bool) {
		p.yield = yield
		defer func() {
			switch r := recover().(type) {
			case nil, abortRun:
			case failRun:
				c.err = r.err
			default:
				c.err = fmt.Errorf("procedure %s panicked: %v", s.name, r)
			}
		}()
		c.result, c.err = s.run(p)
	}
	c.next, c.stop = iter.Pull(seq)
	return c
}

// ID returns the run identifier.
func (c *Cursor) ID() string { return c.id }

// State returns the procedure being run.
func (c *Cursor) State() *State { return c.state }

// Next resumes the body until its next suspension point.
// It returns false once the body has returned; Result then holds the outcome.
// A body that returns without reaching any suspension point fails with a *domain.CompileError.
func (c *Cursor) Next() (Mark, bool) {
	if c.done {
		return Mark{}, false
	}
	m, ok := c.next()
	if !ok {
		c.done = true
		c.stop()
		if c.position == 0 && c.err == nil {
			c.err = &domain.CompileError{Procedure: c.state.name, Reason: "run ended without reaching a suspension point"}
			c.result = ""
		}
		return Mark{}, false
	}
	return m, true
}

// Position returns the last reached step position, -1 before the first.
func (c *Cursor) Position() int { return c.last.Position }

// Last returns the last reached mark.
func (c *Cursor) Last() Mark { return c.last }

// Done reports whether the run is over, either finished or stopped.
func (c *Cursor) Done() bool { return c.done }

// Result returns the successor name and the error that ended the run.
// A stopped run reports no successor and no error.
func (c *Cursor) Result() (string, error) {
	if c.stopped {
		return "", nil
	}
	return c.result, c.err
}

// Stop abandons the run at its current suspension point. No further side effects happen.
func (c *Cursor) Stop() {
	if c.done {
		return
	}
	c.done = true
	c.stopped = true
	c.stop()
}

func (c *Cursor) reach(line int, wait time.Duration) Mark {
	c.last = Mark{Position: c.position, Line: line, Wait: wait}
	c.position++
	return c.last
}
