package procedures

import "github.com/aretw0/cadence/pkg/procedure"

// openHeatswitch opens one labjack heatswitch (charcoal, pot or adr).
func openHeatswitch(which string) func(Config) procedure.Body {
	return func(Config) procedure.Body {
		return func(p *procedure.Proc) (string, error) {
			p.Set("labjack.heatswitch_"+which, "OPEN")
			return "wait_forever", nil
		}
	}
}
