package procedures

import "github.com/aretw0/cadence/pkg/procedure"

func setRelayToRamp(Config) procedure.Body {
	return func(p *procedure.Proc) (string, error) {
		p.Set("labjack.relay", "RAMP")
		return "", nil
	}
}
