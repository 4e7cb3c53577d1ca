package procedures

import (
	"time"

	"github.com/aretw0/cadence/pkg/procedure"
)

// warmup300K heats both stages to room temperature and holds them there.
func warmup300K(Config) procedure.Body {
	return func(p *procedure.Proc) (string, error) {
		p.Set("labjack.heatswitch_pot", "CLOSED")
		p.Set("labjack.heatswitch_adr", "CLOSED")
		p.Set("labjack.heatswitch_charcoal", "CLOSED")
		p.Wait(3 * time.Second)
		p.Set("cryocon.loop1_source", "A")
		p.Set("cryocon.loop1_setpoint", 295)
		p.Set("cryocon.loop2_source", "B")
		p.Set("cryocon.loop2_setpoint", 295)
		p.Set("cryocon.control_enabled", true)
		p.Wait(forever)
		return "", nil
	}
}
