package dsl

import (
	"fmt"
	"time"

	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/procedure"
)

// Builder manages the step tree construction.
type Builder struct {
	def   procedure.Definition
	steps []procedure.Step
}

// New creates a new procedure builder.
func New(name string) *Builder {
	return &Builder{def: procedure.Definition{Name: name}}
}

// Do appends an action running fn.
func (b *Builder) Do(name string, fn func(p *procedure.Proc) error) *Builder {
	b.steps = append(b.steps, procedure.Action{Name: name, Do: fn})
	return b
}

// Set appends an action writing value to an "instrument.param" address.
func (b *Builder) Set(addr string, value any) *Builder {
	name := fmt.Sprintf("%s = %s", addr, hardware.FormatValue(value))
	return b.Do(name, func(p *procedure.Proc) error {
		return p.TrySet(addr, value)
	})
}

// Log appends an action writing msg to the procedure logger.
func (b *Builder) Log(msg string) *Builder {
	return b.Do("log "+msg, func(p *procedure.Proc) error {
		p.Logger().Info(msg)
		return nil
	})
}

// Wait appends a wait directive.
func (b *Builder) Wait(d time.Duration) *Builder {
	b.steps = append(b.steps, procedure.Wait{Duration: d})
	return b
}

// Checkpoint appends a suspension point without side effects.
func (b *Builder) Checkpoint() *Builder {
	b.steps = append(b.steps, procedure.Checkpoint{})
	return b
}

// Repeat appends a bounded loop whose body is built by body.
func (b *Builder) Repeat(n int, body func(b *Builder)) *Builder {
	b.steps = append(b.steps, procedure.Repeat{Count: n, Body: nested(body)})
	return b
}

// While appends a loop evaluating cond before every iteration.
func (b *Builder) While(label string, cond procedure.Condition, body func(b *Builder)) *Builder {
	b.steps = append(b.steps, procedure.While{Label: label, Cond: cond, Body: nested(body)})
	return b
}

// Forever appends a loop without condition. Leave it with Break or Goto.
func (b *Builder) Forever(body func(b *Builder)) *Builder {
	return b.While("", nil, body)
}

// If appends a branch.
func (b *Builder) If(label string, cond procedure.Condition, then func(b *Builder)) *Builder {
	return b.IfElse(label, cond, then, nil)
}

// IfElse appends a branch with an alternative.
func (b *Builder) IfElse(label string, cond procedure.Condition, then, otherwise func(b *Builder)) *Builder {
	b.steps = append(b.steps, procedure.If{Label: label, Cond: cond, Then: nested(then), Else: nested(otherwise)})
	return b
}

// Break leaves the innermost loop.
func (b *Builder) Break() *Builder {
	b.steps = append(b.steps, procedure.Break{})
	return b
}

// Goto ends the run with target as successor.
func (b *Builder) Goto(target string) *Builder {
	b.steps = append(b.steps, procedure.Goto{Target: target})
	return b
}

// Then sets the successor entered when the steps complete.
func (b *Builder) Then(next string) *Builder {
	b.def.Next = next
	return b
}

// Exits declares additional successor names.
func (b *Builder) Exits(names ...string) *Builder {
	b.def.Exits = append(b.def.Exits, names...)
	return b
}

// Definition returns the authored definition.
func (b *Builder) Definition() procedure.Definition {
	def := b.def
	def.Steps = append([]procedure.Step(nil), b.steps...)
	return def
}

// Build compiles the definition into a State.
func (b *Builder) Build() (*procedure.State, error) {
	state, err := procedure.Compile(b.Definition())
	if err != nil {
		return nil, fmt.Errorf("failed to build procedure %s: %w", b.def.Name, err)
	}
	return state, nil
}

func nested(body func(b *Builder)) []procedure.Step {
	if body == nil {
		return nil
	}
	child := &Builder{}
	body(child)
	return child.steps
}
