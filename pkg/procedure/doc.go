/*
Package procedure compiles hardware procedures into resumable units.

A procedure is either a Definition (a tree of steps authored in Go through pkg/dsl, or loaded from
YAML or Starlark) or a Go Body with explicit checkpoints. Compile and Func both produce a State.
A State is immutable and may be started many times; every Start returns a fresh Cursor that
executes the procedure lazily, one suspension point per call to Next.

Suspension points are inserted after every elementary action, at every evaluated branch or loop
condition and at every wait directive. The Cursor owns the step position: it starts at 0 on every
Start and grows by one at each suspension point.

	state, err := procedure.Compile(procedure.Definition{
		Name: "pulse_relay",
		Steps: []procedure.Step{
			procedure.Action{Name: "relay RAMP", Do: setRelay("RAMP")},
			procedure.Wait{Duration: 5 * time.Second},
			procedure.Action{Name: "relay CONTROL", Do: setRelay("CONTROL")},
		},
	})

	cur := state.Start(ctx, env)
	defer cur.Stop()
	for mark, ok := cur.Next(); ok; mark, ok = cur.Next() {
		// honor mark.Wait before pulling again
	}
	next, err := cur.Result()
*/
package procedure
