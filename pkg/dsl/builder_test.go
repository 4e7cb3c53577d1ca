package dsl

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/procedure"
)

func TestBuilder_SimpleProcedure(t *testing.T) {
	// 1. Build the procedure using DSL
	state, err := New("pulse_relay").
		Set("labjack.relay", "RAMP").
		Wait(5*time.Second).
		Set("labjack.relay", "CONTROL").
		Then("wait_forever").
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 2. Verify the compiled shape
	if state.StepCount() != 3 {
		t.Errorf("Expected 3 steps, got %d", state.StepCount())
	}
	if exits := state.Exits(); len(exits) != 1 || exits[0] != "wait_forever" {
		t.Errorf("Expected exits [wait_forever], got %v", exits)
	}

	// 3. Run it against a simulated station
	st := hardware.SimulatedStation()
	cur := state.Start(context.Background(), procedure.Env{Station: st})
	var waits []time.Duration
	for m, ok := cur.Next(); ok; m, ok = cur.Next() {
		waits = append(waits, m.Wait)
	}
	if len(waits) != 3 || waits[1] != 5*time.Second {
		t.Errorf("Unexpected marks: %v", waits)
	}

	next, err := cur.Result()
	if err != nil || next != "wait_forever" {
		t.Errorf("Expected successor wait_forever, got %q (%v)", next, err)
	}

	inst, _ := st.Instrument("labjack")
	writes := inst.(*hardware.Simulated).Writes()
	if len(writes) != 2 || writes[0].Value != "RAMP" || writes[1].Value != "CONTROL" {
		t.Errorf("Unexpected writes: %v", writes)
	}
}

func TestBuilder_NestedLoops(t *testing.T) {
	def := New("ramp").
		Repeat(2, func(b *Builder) {
			b.Checkpoint().Repeat(3, func(b *Builder) {
				b.Wait(time.Second)
			})
		}).
		Definition()

	if len(def.Steps) != 1 {
		t.Fatalf("Expected 1 top-level step, got %d", len(def.Steps))
	}
	outer, ok := def.Steps[0].(procedure.Repeat)
	if !ok || outer.Count != 2 || len(outer.Body) != 2 {
		t.Fatalf("Unexpected outer step: %#v", def.Steps[0])
	}

	state, err := procedure.Compile(def)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	cur := state.Start(context.Background(), procedure.Env{})
	count := 0
	for _, ok := cur.Next(); ok; _, ok = cur.Next() {
		count++
	}
	if count != 8 {
		t.Errorf("Expected 8 suspension points, got %d", count)
	}
}

func TestBuilder_WhileBelowThreshold(t *testing.T) {
	st := hardware.SimulatedStation()
	inst, _ := st.Instrument("cryocon")
	cryocon := inst.(*hardware.Simulated)

	state, err := New("wait_cold").
		While("chB above 5K", Above("cryocon.chB_temperature", 5), func(b *Builder) {
			b.Wait(time.Second)
		}).
		Then("full_cycle").
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	cryocon.SetValue("chB_temperature", "7")
	cur := state.Start(context.Background(), procedure.Env{Station: st})
	for i := 0; i < 4; i++ {
		if _, ok := cur.Next(); !ok {
			t.Fatalf("Run ended early at %d", i)
		}
	}
	cryocon.SetValue("chB_temperature", "4.5")
	for _, ok := cur.Next(); ok; _, ok = cur.Next() {
	}
	if next, _ := cur.Result(); next != "full_cycle" {
		t.Errorf("Expected full_cycle, got %q", next)
	}
}

func TestBuilder_InvalidProcedure(t *testing.T) {
	if _, err := New("empty").Then("idle").Build(); err == nil {
		t.Error("Expected error for procedure without steps")
	}
	if _, err := New("stray").Checkpoint().Break().Build(); err == nil {
		t.Error("Expected error for break outside a loop")
	}
}

func TestConditions(t *testing.T) {
	st := hardware.SimulatedStation()
	var below, equals, not bool
	state, err := New("conditions").
		Do("evaluate", func(p *procedure.Proc) error {
			below, _ = Below("cryocon.chC_temperature", 3.2)(p)
			equals, _ = Equals("labjack.relay", "UNKNOWN")(p)
			not, _ = Not(Equals("labjack.relay", "RAMP"))(p)
			return nil
		}).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	cur := state.Start(context.Background(), procedure.Env{Station: st})
	for _, ok := cur.Next(); ok; _, ok = cur.Next() {
	}
	if !below || !equals || !not {
		t.Errorf("Unexpected condition results: below=%v equals=%v not=%v", below, equals, not)
	}
}
