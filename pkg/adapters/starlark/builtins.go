package starlark

import (
	"fmt"
	"math"
	"time"

	"go.starlark.net/starlark"

	"github.com/aretw0/cadence/pkg/procedure"
)

var builtins = starlark.StringDict{
	"wait":       starlark.NewBuiltin("wait", waitFn),
	"checkpoint": starlark.NewBuiltin("checkpoint", checkpointFn),
	"set":        starlark.NewBuiltin("set", setFn),
	"get":        starlark.NewBuiltin("get", getFn),
	"text":       starlark.NewBuiltin("text", textFn),
	"latest":     starlark.NewBuiltin("latest", latestFn),
	"log":        starlark.NewBuiltin("log", logFn),
}

// procOf returns the running procedure and the 0-based line of the calling statement.
func procOf(thread *starlark.Thread, b *starlark.Builtin) (*procedure.Proc, int, error) {
	p, ok := thread.Local(procKey).(*procedure.Proc)
	if !ok {
		return nil, 0, fmt.Errorf("%s: only available inside run()", b.Name())
	}
	line := -1
	if thread.CallStackDepth() > 1 {
		line = int(thread.CallFrame(1).Pos.Line) - 1
	}
	return p, line, nil
}

// maxWaitSeconds is the longest wait a time.Duration can hold.
var maxWaitSeconds = float64(math.MaxInt64) / float64(time.Second)

func waitFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seconds starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &seconds); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(seconds)
	if !ok || f < 0 || math.IsNaN(f) {
		return nil, fmt.Errorf("%s: want a non-negative number of seconds, got %s", b.Name(), seconds)
	}
	if f >= maxWaitSeconds {
		return nil, fmt.Errorf("%s: %s seconds is longer than the longest supported wait", b.Name(), seconds)
	}
	p, line, err := procOf(thread, b)
	if err != nil {
		return nil, err
	}
	p.Suspend(line, time.Duration(f*float64(time.Second)))
	return starlark.None, nil
}

func checkpointFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	p, line, err := procOf(thread, b)
	if err != nil {
		return nil, err
	}
	p.Suspend(line, 0)
	return starlark.None, nil
}

func setFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		addr  string
		value starlark.Value
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &addr, &value); err != nil {
		return nil, err
	}
	v, err := toGo(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	p, line, err := procOf(thread, b)
	if err != nil {
		return nil, err
	}
	if err := p.TrySet(addr, v); err != nil {
		return nil, err
	}
	p.Suspend(line, 0)
	return starlark.None, nil
}

func getFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var addr string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &addr); err != nil {
		return nil, err
	}
	p, _, err := procOf(thread, b)
	if err != nil {
		return nil, err
	}
	return starlark.Float(p.Get(addr)), nil
}

func textFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var addr string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &addr); err != nil {
		return nil, err
	}
	p, _, err := procOf(thread, b)
	if err != nil {
		return nil, err
	}
	return starlark.String(p.Text(addr)), nil
}

func latestFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var channel string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &channel); err != nil {
		return nil, err
	}
	p, _, err := procOf(thread, b)
	if err != nil {
		return nil, err
	}
	snap := p.Latest()
	if label, ok := snap.Labels[channel]; ok {
		return starlark.String(label), nil
	}
	return starlark.Float(snap.Float(channel)), nil
}

func logFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}
	p, _, err := procOf(thread, b)
	if err != nil {
		return nil, err
	}
	p.Logger().Info(msg)
	return starlark.None, nil
}

func toGo(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		i, ok := v.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", v)
		}
		return i, nil
	case starlark.Float:
		return float64(v), nil
	}
	return nil, fmt.Errorf("unsupported value type %s", v.Type())
}
