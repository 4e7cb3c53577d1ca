package procedure

import (
	"context"
	"errors"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/hardware"
)

func record(log *[]string, name string) Action {
	return Action{Name: name, Do: func(*Proc) error {
		*log = append(*log, name)
		return nil
	}}
}

func drain(t *testing.T, c *Cursor) []Mark {
	t.Helper()
	var marks []Mark
	for m, ok := c.Next(); ok; m, ok = c.Next() {
		marks = append(marks, m)
		require.Less(t, len(marks), 10_000, "runaway procedure")
	}
	return marks
}

func TestCompile_LinearizesLoopsInSourceOrder(t *testing.T) {
	var log []string
	state, err := Compile(Definition{
		Name: "ramp",
		Steps: []Step{
			record(&log, "a"),
			Repeat{Count: 3, Body: []Step{record(&log, "b"), record(&log, "c")}},
			record(&log, "d"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, state.StepCount())

	marks := drain(t, state.Start(context.Background(), Env{}))
	require.Len(t, marks, 8)
	for i, m := range marks {
		assert.Equal(t, i, m.Position)
		assert.False(t, m.IsWait())
	}
	assert.Equal(t, []string{"a", "b", "c", "b", "c", "b", "c", "d"}, log)

	next, err := state.Start(context.Background(), Env{}).Result()
	assert.NoError(t, err)
	assert.Empty(t, next)
}

func TestCompile_Deterministic(t *testing.T) {
	def := Definition{
		Name:  "cycle",
		Next:  "wait_forever",
		Exits: []string{"warmup_300K"},
		Steps: []Step{
			Wait{Duration: time.Second},
			If{Label: "too hot", Cond: func(*Proc) (bool, error) { return true, nil }, Then: []Step{Goto{Target: "warmup_300K"}}},
			Checkpoint{},
		},
	}
	a, err := Compile(def)
	require.NoError(t, err)
	b, err := Compile(def)
	require.NoError(t, err)

	assert.Equal(t, a.Exits(), b.Exits())
	assert.Equal(t, a.StepCount(), b.StepCount())
	assert.Equal(t, []string{"wait_forever", "warmup_300K"}, a.Exits())
	assert.Equal(t, a.Source(), b.Source())
}

func TestCursor_RestartReexecutesFromZero(t *testing.T) {
	var log []string
	state, err := Compile(Definition{Name: "twice", Steps: []Step{record(&log, "x"), record(&log, "y")}})
	require.NoError(t, err)

	first := drain(t, state.Start(context.Background(), Env{}))
	second := drain(t, state.Start(context.Background(), Env{}))
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"x", "y", "x", "y"}, log)
}

func TestCursor_IsLazy(t *testing.T) {
	var log []string
	state, err := Compile(Definition{Name: "lazy", Steps: []Step{record(&log, "x")}})
	require.NoError(t, err)

	c := state.Start(context.Background(), Env{})
	assert.Empty(t, log)
	assert.Equal(t, -1, c.Position())
	c.Stop()
	assert.Empty(t, log)
}

func TestCursor_StopAbortsAtSuspensionPoint(t *testing.T) {
	var log []string
	state, err := Compile(Definition{
		Name:  "valves",
		Next:  "after",
		Steps: []Step{record(&log, "open"), Wait{Duration: time.Hour}, record(&log, "close")},
	})
	require.NoError(t, err)

	c := state.Start(context.Background(), Env{})
	m, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, 0, m.Position)
	m, ok = c.Next()
	require.True(t, ok)
	assert.Equal(t, time.Hour, m.Wait)

	c.Stop()
	_, ok = c.Next()
	assert.False(t, ok)
	assert.True(t, c.Done())
	assert.Equal(t, []string{"open"}, log)

	next, err := c.Result()
	assert.NoError(t, err)
	assert.Empty(t, next)
}

func TestCompile_WhileUntilThreshold(t *testing.T) {
	reading := 0.0
	state, err := Compile(Definition{
		Name: "cool",
		Next: "ramp_down",
		Steps: []Step{
			While{
				Label: "sensor < 3",
				Cond: func(*Proc) (bool, error) {
					reading++
					return reading < 3, nil
				},
				Body: []Step{Wait{Duration: time.Second}},
			},
		},
	})
	require.NoError(t, err)

	c := state.Start(context.Background(), Env{})
	marks := drain(t, c)
	// cond(1), wait, cond(2), wait, cond(3) false
	require.Len(t, marks, 5)
	assert.Equal(t, time.Second, marks[1].Wait)
	assert.Equal(t, time.Second, marks[3].Wait)
	assert.Zero(t, marks[4].Wait)

	next, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, "ramp_down", next)
}

func TestCompile_BreakAndGoto(t *testing.T) {
	n := 0
	state, err := Compile(Definition{
		Name: "loop",
		Next: "never",
		Steps: []Step{
			While{Body: []Step{
				Action{Name: "count", Do: func(*Proc) error { n++; return nil }},
				If{Label: "n == 2", Cond: func(*Proc) (bool, error) { return n == 2, nil }, Then: []Step{Break{}}},
			}},
			Repeat{Count: 5, Body: []Step{Goto{Target: "wait_forever"}}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, state.Exits(), "wait_forever")

	c := state.Start(context.Background(), Env{})
	drain(t, c)
	next, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, "wait_forever", next)
	assert.Equal(t, 2, n)
}

func TestCompile_Errors(t *testing.T) {
	noop := func(*Proc) error { return nil }
	cases := map[string]Definition{
		"empty":           {Name: "empty"},
		"only repeat":     {Name: "r", Steps: []Step{Repeat{Count: 2}}},
		"nil action":      {Name: "a", Steps: []Step{Action{Name: "x"}}},
		"negative wait":   {Name: "w", Steps: []Step{Wait{Duration: -time.Second}}},
		"nil condition":   {Name: "i", Steps: []Step{If{Label: "c"}}},
		"negative repeat": {Name: "n", Steps: []Step{Repeat{Count: -1, Body: []Step{Action{Name: "x", Do: noop}}}}},
		"stray break":     {Name: "b", Steps: []Step{Action{Name: "x", Do: noop}, Break{}}},
		"empty goto":      {Name: "g", Steps: []Step{Goto{}}},
		"nil step":        {Name: "s", Steps: []Step{nil}},
		"no name":         {Steps: []Step{Checkpoint{}}},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(def)
			var compileErr *domain.CompileError
			assert.ErrorAs(t, err, &compileErr)
		})
	}
}

func TestCompile_RenderedSourceLines(t *testing.T) {
	state, err := Compile(Definition{
		Name: "pulse",
		Next: "idle",
		Steps: []Step{
			Action{Name: "relay RAMP", Do: func(*Proc) error { return nil }},
			Wait{Duration: 5 * time.Second},
		},
	})
	require.NoError(t, err)

	want := "procedure pulse:\n    relay RAMP\n    wait 5s\n    next idle"
	assert.Equal(t, want, state.Source())

	marks := drain(t, state.Start(context.Background(), Env{}))
	require.Len(t, marks, 2)
	assert.Equal(t, "    relay RAMP", Line(state.Source(), marks[0].Line))
	assert.Equal(t, "    wait 5s", Line(state.Source(), marks[1].Line))
}

func TestCompile_AuthoredLines(t *testing.T) {
	state, err := Compile(Definition{
		Name:   "authored",
		Source: "first\nsecond\nthird",
		Steps:  []Step{Checkpoint{Line: 2}, Wait{Duration: time.Second, Line: 1}},
	})
	require.NoError(t, err)

	marks := drain(t, state.Start(context.Background(), Env{}))
	assert.Equal(t, 2, marks[0].Line)
	assert.Equal(t, 1, marks[1].Line)
}

func TestCompile_ActionErrorEndsRun(t *testing.T) {
	boom := errors.New("relay stuck")
	var log []string
	state, err := Compile(Definition{
		Name: "fails",
		Next: "wait_forever",
		Steps: []Step{
			Action{Name: "relay", Do: func(*Proc) error { return boom }},
			record(&log, "unreachable"),
		},
	})
	require.NoError(t, err)

	c := state.Start(context.Background(), Env{})
	assert.Empty(t, drain(t, c))
	next, err := c.Result()
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, next)
	assert.Empty(t, log)
}

func TestFunc_LinesExitsAndHardware(t *testing.T) {
	st := hardware.SimulatedStation()
	var waitLine, setLine int

	state, err := Func("open_pot", func(p *Proc) (string, error) {
		_, _, setLine, _ = runtime.Caller(0)
		p.Set("labjack.heatswitch_pot", "OPEN")
		_, _, waitLine, _ = runtime.Caller(0)
		p.Wait(2 * time.Second)
		if p.Get("labjack.he3_pressure") > 100 {
			return "warmup_300K", nil
		}
		return "wait_forever", nil
	},
		WithSource("procedure_test.go", "return \"wait_forever\", nil\n    return \"warmup_300K\", nil"),
		WithExits("idle"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"idle", "wait_forever", "warmup_300K"}, state.Exits())
	assert.Zero(t, state.StepCount())

	c := state.Start(context.Background(), Env{Station: st})
	marks := drain(t, c)
	require.Len(t, marks, 2)
	// Marks are 0-based, so the line after each Caller call is reported as its 1-based number.
	assert.Equal(t, setLine, marks[0].Line)
	assert.Equal(t, waitLine, marks[1].Line)
	assert.Equal(t, 2*time.Second, marks[1].Wait)

	raw, err := st.Get(context.Background(), "labjack.heatswitch_pot")
	require.NoError(t, err)
	assert.Equal(t, "OPEN", raw)

	next, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, "wait_forever", next)
}

func TestFunc_FailedSetEndsRun(t *testing.T) {
	state, err := Func("bad", func(p *Proc) (string, error) {
		p.Set("labjack.no_such_param", 1)
		p.Checkpoint()
		return "never", nil
	})
	require.NoError(t, err)

	c := state.Start(context.Background(), Env{Station: hardware.SimulatedStation()})
	assert.Empty(t, drain(t, c))
	_, err = c.Result()
	assert.ErrorIs(t, err, hardware.ErrUnknownParam)
}

func TestFunc_PanicBecomesError(t *testing.T) {
	state, err := Func("panics", func(p *Proc) (string, error) {
		p.Checkpoint()
		var m map[string]int
		m["x"] = 1
		return "", nil
	})
	require.NoError(t, err)

	c := state.Start(context.Background(), Env{})
	assert.Len(t, drain(t, c), 1)
	_, err = c.Result()
	assert.ErrorContains(t, err, "panicked")
}

func TestFunc_GetWithoutStationIsNaN(t *testing.T) {
	var got float64
	state, err := Func("reader", func(p *Proc) (string, error) {
		got = p.Get("cryocon.chA_temperature")
		p.Checkpoint()
		return "", nil
	})
	require.NoError(t, err)
	drain(t, state.Start(context.Background(), Env{}))
	assert.True(t, math.IsNaN(got))
}

func TestFunc_RunWithoutSuspensionPointFails(t *testing.T) {
	state, err := Func("ping", func(p *Proc) (string, error) {
		return "pong", nil
	})
	require.NoError(t, err)

	c := state.Start(context.Background(), Env{})
	assert.Empty(t, drain(t, c))
	next, err := c.Result()
	var compileErr *domain.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "ping", compileErr.Procedure)
	assert.Empty(t, next)
}

func TestFunc_Invalid(t *testing.T) {
	_, err := Func("", func(*Proc) (string, error) { return "", nil })
	assert.Error(t, err)
	_, err = Func("x", nil)
	var compileErr *domain.CompileError
	assert.ErrorAs(t, err, &compileErr)
}

func TestHighlight(t *testing.T) {
	src := "This is a multiline\nstring in Go.\nIt has multiple lines."
	want := "    This is a multiline\n--> string in Go.\n    It has multiple lines."
	assert.Equal(t, want, Highlight(src, 1))
	assert.Equal(t, "    a\n    b", Highlight("a\nb", -1))
}

func TestCollectExits(t *testing.T) {
	src := `func(p *procedure.Proc) (string, error) {
	if cold {
		return "full_cycle", nil
	}
	return "wait_forever", nil
	return "", nil
	return "full_cycle", nil
}`
	assert.Equal(t, []string{"full_cycle", "wait_forever"}, CollectExits(src))
}
