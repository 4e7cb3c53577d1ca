package yaml_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cadence/pkg/adapters/yaml"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/procedure"
)

func drain(c *procedure.Cursor) []procedure.Mark {
	var marks []procedure.Mark
	for m, ok := c.Next(); ok; m, ok = c.Next() {
		marks = append(marks, m)
	}
	return marks
}

func TestLoadFile_Warmup(t *testing.T) {
	state, err := yaml.NewLoader().LoadFile(filepath.Join("testdata", "warmup.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warmup_300K", state.Name())
	assert.Equal(t, []string{"wait_forever"}, state.Exits())

	st := hardware.SimulatedStation()
	inst, _ := st.Instrument("cryocon")
	inst.(*hardware.Simulated).SetValue("chA_temperature", "295")

	c := state.Start(context.Background(), procedure.Env{Station: st})
	marks := drain(c)
	// 2 sets, wait, 2 sets, while (false at once), log
	require.Len(t, marks, 7)
	assert.Equal(t, 3*time.Second, marks[2].Wait)

	src := state.Source()
	assert.Equal(t, "  - set: labjack.heatswitch_pot", procedure.Line(src, marks[0].Line))
	assert.Equal(t, "  - wait: 3s", procedure.Line(src, marks[2].Line))
	assert.Equal(t, "  - while: cryocon.chA_temperature < 290", procedure.Line(src, marks[5].Line))
	assert.Contains(t, state.Highlight(marks[2].Line), "-->   - wait: 3s")

	next, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, "wait_forever", next)

	v, err := st.Get(context.Background(), "cryocon.control_enabled")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestParse_LoopsBranchesAndActions(t *testing.T) {
	calls := 0
	loader := yaml.NewLoader(yaml.WithAction("pulse", func(*procedure.Proc) error {
		calls++
		return nil
	}))
	state, err := loader.Parse([]byte(`
name: pulses
exits: [warmup_300K]
steps:
  - repeat: 2
    steps:
      - do: pulse
      - wait: 1.5
  - if: {channel: labjack.relay, op: "==", value: RAMP}
    then:
      - goto: warmup_300K
    else:
      - checkpoint
  - while: true
    steps:
      - break
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"warmup_300K"}, state.Exits())

	c := state.Start(context.Background(), procedure.Env{Station: hardware.SimulatedStation()})
	marks := drain(c)
	// 2x(do, wait), if, checkpoint, while
	require.Len(t, marks, 7)
	assert.Equal(t, 1500*time.Millisecond, marks[1].Wait)
	assert.Equal(t, 2, calls)

	next, err := c.Result()
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"two kinds":        "name: x\nsteps:\n  - wait: 1s\n    goto: y\n",
		"unknown scalar":   "name: x\nsteps:\n  - jump\n",
		"unknown action":   "name: x\nsteps:\n  - do: nothing\n",
		"set without val":  "name: x\nsteps:\n  - set: a.b\n",
		"bad operator":     "name: x\nsteps:\n  - while: a.b ~ 3\n    steps: [checkpoint]\n",
		"text ordering":    "name: x\nsteps:\n  - if: a.b < OPEN\n    then: [checkpoint]\n",
		"unknown field":    "name: x\nsteps:\n  - wait: 1s\n    colour: red\n",
		"no steps":         "name: x\nnext: y\n",
		"steps not a list": "name: x\nsteps: 3\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := yaml.NewLoader().Parse([]byte(doc))
			var compileErr *domain.CompileError
			assert.ErrorAs(t, err, &compileErr)
		})
	}

	_, err := yaml.NewLoader().Parse([]byte("- just\n- a list\n"))
	assert.Error(t, err)
	_, err = yaml.NewLoader().Parse([]byte(""))
	assert.Error(t, err)
}
