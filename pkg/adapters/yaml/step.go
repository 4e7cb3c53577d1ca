package yaml

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	backend "gopkg.in/yaml.v3"

	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/procedure"
)

// stepFields holds the scalar keys of a step mapping.
type stepFields struct {
	Set        string         `mapstructure:"set"`
	Value      any            `mapstructure:"value"`
	Wait       *time.Duration `mapstructure:"wait"`
	Log        string         `mapstructure:"log"`
	Repeat     *int           `mapstructure:"repeat"`
	While      any            `mapstructure:"while"`
	If         any            `mapstructure:"if"`
	Checkpoint bool           `mapstructure:"checkpoint"`
	Break      bool           `mapstructure:"break"`
	Goto       string         `mapstructure:"goto"`
	Do         string         `mapstructure:"do"`
	Label      string         `mapstructure:"label"`
}

type condSpec struct {
	Channel string `mapstructure:"channel"`
	Op      string `mapstructure:"op"`
	Value   any    `mapstructure:"value"`
}

var stepKinds = []string{"set", "wait", "log", "repeat", "while", "if", "checkpoint", "break", "goto", "do"}

func (p *parser) step(n *backend.Node) (procedure.Step, error) {
	line := n.Line - 1
	if n.Kind == backend.ScalarNode {
		switch n.Value {
		case "checkpoint":
			return procedure.Checkpoint{Line: line}, nil
		case "break":
			return procedure.Break{Line: line}, nil
		}
		return nil, p.errorf(n, "unknown step %q", n.Value)
	}
	if n.Kind != backend.MappingNode {
		return nil, p.errorf(n, "step must be a mapping")
	}

	raw, nested := split(n, "steps", "then", "else")
	var kinds []string
	for k := range raw {
		if slices.Contains(stepKinds, k) {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		slices.Sort(kinds)
		return nil, p.errorf(n, "step must have exactly one of %s, got %v", strings.Join(stepKinds, ", "), kinds)
	}

	var f stepFields
	if err := decode(raw, &f); err != nil {
		return nil, p.errorf(n, "%v", err)
	}

	switch kinds[0] {
	case "set":
		if f.Value == nil {
			return nil, p.errorf(n, "set %s requires a value", f.Set)
		}
		addr, value := f.Set, f.Value
		return procedure.Action{
			Name: p.label(f.Label, fmt.Sprintf("set %s = %s", addr, hardware.FormatValue(value))),
			Do: func(proc *procedure.Proc) error {
				return proc.TrySet(addr, value)
			},
			Line: line,
		}, nil
	case "wait":
		if f.Wait == nil {
			return nil, p.errorf(n, "wait requires a duration")
		}
		return procedure.Wait{Duration: *f.Wait, Line: line}, nil
	case "log":
		msg := f.Log
		return procedure.Action{
			Name: p.label(f.Label, "log "+msg),
			Do: func(proc *procedure.Proc) error {
				proc.Logger().Info(msg)
				return nil
			},
			Line: line,
		}, nil
	case "do":
		fn, ok := p.actions[f.Do]
		if !ok {
			return nil, p.errorf(n, "unknown action %q", f.Do)
		}
		return procedure.Action{Name: p.label(f.Label, f.Do), Do: fn, Line: line}, nil
	case "checkpoint":
		return procedure.Checkpoint{Line: line}, nil
	case "break":
		return procedure.Break{Line: line}, nil
	case "goto":
		return procedure.Goto{Target: f.Goto, Line: line}, nil
	case "repeat":
		if f.Repeat == nil {
			return nil, p.errorf(n, "repeat requires a count")
		}
		body, err := p.steps(nested["steps"])
		if err != nil {
			return nil, err
		}
		return procedure.Repeat{Count: *f.Repeat, Body: body, Line: line}, nil
	case "while":
		cond, label, err := p.condition(n, f.While)
		if err != nil {
			return nil, err
		}
		body, err := p.steps(nested["steps"])
		if err != nil {
			return nil, err
		}
		return procedure.While{Label: p.label(f.Label, label), Cond: cond, Body: body, Line: line}, nil
	default: // if
		cond, label, err := p.condition(n, f.If)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, p.errorf(n, "if requires a condition")
		}
		then, err := p.steps(nested["then"])
		if err != nil {
			return nil, err
		}
		otherwise, err := p.steps(nested["else"])
		if err != nil {
			return nil, err
		}
		return procedure.If{Label: p.label(f.Label, label), Cond: cond, Then: then, Else: otherwise, Line: line}, nil
	}
}

func (p *parser) label(explicit, derived string) string {
	if explicit != "" {
		return explicit
	}
	return derived
}

// condition accepts `true` (loop forever), "channel op value" or {channel, op, value}.
func (p *parser) condition(n *backend.Node, raw any) (procedure.Condition, string, error) {
	var spec condSpec
	switch v := raw.(type) {
	case bool:
		if !v {
			return nil, "", p.errorf(n, "condition false never holds")
		}
		return nil, "true", nil
	case string:
		parts := strings.Fields(v)
		if len(parts) != 3 {
			return nil, "", p.errorf(n, "condition %q: want \"channel op value\"", v)
		}
		spec = condSpec{Channel: parts[0], Op: parts[1], Value: parts[2]}
	case map[string]any:
		if err := decode(v, &spec); err != nil {
			return nil, "", p.errorf(n, "condition: %v", err)
		}
	default:
		return nil, "", p.errorf(n, "unsupported condition %v", raw)
	}

	cond, err := compare(spec)
	if err != nil {
		return nil, "", p.errorf(n, "%v", err)
	}
	return cond, fmt.Sprintf("%s %s %v", spec.Channel, spec.Op, spec.Value), nil
}

func compare(spec condSpec) (procedure.Condition, error) {
	if spec.Channel == "" {
		return nil, errors.New("condition without channel")
	}
	addr := spec.Channel

	var threshold float64
	numeric := true
	switch v := spec.Value.(type) {
	case int:
		threshold = float64(v)
	case float64:
		threshold = v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		threshold, numeric = f, err == nil
	default:
		return nil, fmt.Errorf("unsupported comparison value %v", spec.Value)
	}

	if !numeric {
		text := spec.Value.(string)
		switch spec.Op {
		case "==":
			return func(p *procedure.Proc) (bool, error) { return p.Text(addr) == text, nil }, nil
		case "!=":
			return func(p *procedure.Proc) (bool, error) { return p.Text(addr) != text, nil }, nil
		}
		return nil, fmt.Errorf("operator %q does not apply to text %q", spec.Op, text)
	}

	var cmp func(a, b float64) bool
	switch spec.Op {
	case "<":
		cmp = func(a, b float64) bool { return a < b }
	case "<=":
		cmp = func(a, b float64) bool { return a <= b }
	case ">":
		cmp = func(a, b float64) bool { return a > b }
	case ">=":
		cmp = func(a, b float64) bool { return a >= b }
	case "==":
		cmp = func(a, b float64) bool { return a == b }
	case "!=":
		cmp = func(a, b float64) bool { return a != b }
	default:
		return nil, fmt.Errorf("unknown operator %q", spec.Op)
	}
	return func(p *procedure.Proc) (bool, error) {
		return cmp(p.Get(addr), threshold), nil
	}, nil
}

// decode maps raw YAML values onto out. Durations accept Go duration strings or numbers of seconds.
func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDuration,
		),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func secondsToDuration(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}
