package procedures

import (
	"time"

	"github.com/aretw0/cadence/pkg/procedure"
)

// readyForCooldown closes the heatswitches and sets the He3 setpoints without heating.
func readyForCooldown(Config) procedure.Body {
	return func(p *procedure.Proc) (string, error) {
		p.Set("labjack.heatswitch_pot", "CLOSED")
		p.Set("labjack.heatswitch_adr", "CLOSED")
		p.Set("labjack.heatswitch_charcoal", "CLOSED")
		p.Wait(3 * time.Second)

		p.Set("cryocon.loop1_source", "A")
		p.Set("cryocon.loop1_setpoint", 45)
		p.Set("cryocon.loop2_source", "B")
		p.Set("cryocon.loop2_setpoint", 55)
		p.Set("cryocon.control_enabled", false)
		p.Wait(1e6 * time.Second)
		return "", nil
	}
}
