package procedures

import "github.com/aretw0/cadence/pkg/procedure"

// switchToWaitForever moves on after a single checkpoint. It exercises successor resolution.
func switchToWaitForever(Config) procedure.Body {
	return func(p *procedure.Proc) (string, error) {
		p.Checkpoint()
		return "wait_forever", nil
	}
}
