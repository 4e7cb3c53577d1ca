package procedures

import (
	"time"

	"github.com/aretw0/cadence/pkg/procedure"
)

func waitForever(Config) procedure.Body {
	return func(p *procedure.Proc) (string, error) {
		for {
			p.Wait(time.Second)
		}
	}
}
