package procedures

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/registry"
	"github.com/aretw0/cadence/pkg/world"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newWorld(t *testing.T, cfg Config) (*world.World, *hardware.Station, *world.FakeClock) {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, Register(reg, cfg))
	st := hardware.SimulatedStation()
	clock := world.NewFakeClock(epoch)
	w := world.New(reg, world.WithFakeClock(clock), world.WithEnv(procedure.Env{Station: st}))
	return w, st, clock
}

func tickUntil(t *testing.T, w *world.World, procedure string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; w.CurrentProgress().Procedure != procedure; i++ {
		require.Less(t, i, 5000, "never reached %s", procedure)
		require.NoError(t, w.Tick(ctx))
	}
}

func value(t *testing.T, st *hardware.Station, addr string) string {
	t.Helper()
	v, err := st.Get(context.Background(), addr)
	require.NoError(t, err)
	return v
}

func TestAll_RegistersEveryBuiltin(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, Register(reg, Config{}))
	assert.Equal(t, Names(), reg.Names())
	require.NoError(t, reg.Validate())

	full, err := reg.Get("full_cycle")
	require.NoError(t, err)
	assert.Equal(t, []string{"wait_forever"}, full.Exits())
	assert.Contains(t, full.Source(), "func fullCycle(")

	idle, err := reg.Get("idle")
	require.NoError(t, err)
	assert.Empty(t, idle.Exits())

	_, err = reg.Get(Initial)
	assert.NoError(t, err)
}

func TestFullCycle_TestModeEndsInControl(t *testing.T) {
	w, st, clock := newWorld(t, Config{TestMode: true})
	require.NoError(t, w.StartByName("full_cycle"))
	tickUntil(t, w, "wait_forever")

	assert.Equal(t, "CONTROL", value(t, st, "labjack.relay"))
	assert.Equal(t, "OPEN", value(t, st, "labjack.heatswitch_adr"))
	assert.Equal(t, "OPEN", value(t, st, "labjack.heatswitch_pot"))
	assert.Equal(t, "CLOSED", value(t, st, "labjack.heatswitch_charcoal"))
	assert.Equal(t, "false", value(t, st, "cryocon.control_enabled"))
	assert.Equal(t, "0", value(t, st, "ls370.heater_out"))
	assert.Equal(t, "open_loop", value(t, st, "ls370.heater_mode"))

	// 30 s up, 30 s down, 10 s condensing, 10 s settling, 30 s ramp down hold.
	assert.GreaterOrEqual(t, clock.Now().Sub(epoch), 110*time.Second)
}

func TestFullCycle_RampReachesTarget(t *testing.T) {
	w, st, _ := newWorld(t, Config{TestMode: true})
	require.NoError(t, w.StartByName("full_cycle"))

	ctx := context.Background()
	peak := 0.0
	for i := 0; w.CurrentProgress().Procedure != "wait_forever"; i++ {
		require.Less(t, i, 5000)
		require.NoError(t, w.Tick(ctx))
		v, err := st.GetFloat(ctx, "ls370.heater_out")
		require.NoError(t, err)
		peak = max(peak, v)
	}
	assert.InDelta(t, 1.0-1.0/30, peak, 1e-9)
}

func TestOpenHeatswitch_HighlightsSetLine(t *testing.T) {
	w, st, _ := newWorld(t, Config{})
	require.NoError(t, w.StartByName("open_pot_heatswitch"))

	ctx := context.Background()
	require.NoError(t, w.Tick(ctx))
	p := w.CurrentProgress()
	require.Equal(t, "open_pot_heatswitch", p.Procedure)
	assert.Equal(t, 0, p.Position)
	assert.Contains(t, p.Highlighted, "--> \t\t\tp.Set(\"labjack.heatswitch_\"+which, \"OPEN\")")
	assert.Equal(t, "OPEN", value(t, st, "labjack.heatswitch_pot"))
	assert.Equal(t, "UNKNOWN", value(t, st, "labjack.heatswitch_adr"))

	tickUntil(t, w, "wait_forever")
}

func TestSwitchToWaitForever_MovesOnAfterOneCheckpoint(t *testing.T) {
	w, _, _ := newWorld(t, Config{})
	require.NoError(t, w.StartByName("switch_to_wait_forever_test"))

	require.NoError(t, w.Tick(context.Background()))
	p := w.CurrentProgress()
	assert.Equal(t, "switch_to_wait_forever_test", p.Procedure)
	assert.Equal(t, 0, p.Position)
	assert.Contains(t, p.Highlighted, "--> \t\tp.Checkpoint()")
	tickUntil(t, w, "wait_forever")

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, 0, w.CurrentProgress().Position)
	assert.Equal(t, time.Second, w.CurrentProgress().WaitRemaining)
}

func TestReadyForCooldown_SetsSetpoints(t *testing.T) {
	w, st, _ := newWorld(t, Config{})
	require.NoError(t, w.StartByName("ready_for_cooldown"))

	ctx := context.Background()
	for range 10 {
		require.NoError(t, w.Tick(ctx))
	}
	assert.Equal(t, "45", value(t, st, "cryocon.loop1_setpoint"))
	assert.Equal(t, "55", value(t, st, "cryocon.loop2_setpoint"))
	assert.Equal(t, "CLOSED", value(t, st, "labjack.heatswitch_charcoal"))
	assert.Equal(t, "ready_for_cooldown", w.CurrentProgress().Procedure)
}
