/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing procedures.

It builds procedure.Definition step trees through a fluent builder instead of YAML or Starlark files.
Every elementary step becomes a suspension point, so the scheduler can report progress after each
action and honor switch requests between them.

Example usage:

	state, err := dsl.New("ready_for_cooldown").
		Set("labjack.heatswitch_pot", "CLOSED").
		Set("labjack.heatswitch_adr", "CLOSED").
		Wait(3 * time.Second).
		While("chB below 5K", dsl.Below("cryocon.chB_temperature", 5), func(b *dsl.Builder) {
			b.Wait(time.Second)
		}).
		Then("full_cycle").
		Build()
*/
package dsl
