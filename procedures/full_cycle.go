package procedures

import (
	"time"

	"github.com/aretw0/cadence/pkg/procedure"
)

// cycleTimes holds the durations of one ADR cycle.
type cycleTimes struct {
	targetHout float64
	rampTime   time.Duration
	rampStep   time.Duration
	condense   time.Duration
	potCool    time.Duration
	settle     time.Duration
	rampDown   time.Duration
}

func timesFor(cfg Config) cycleTimes {
	if cfg.TestMode {
		return cycleTimes{
			targetHout: 1,
			rampTime:   30 * time.Second,
			rampStep:   time.Second,
			condense:   10 * time.Second,
			potCool:    time.Second,
			settle:     10 * time.Second,
			rampDown:   30 * time.Second,
		}
	}
	return cycleTimes{
		// 55 reaches the 9.53 A limit of the kepco supply.
		targetHout: 55,
		rampTime:   30 * time.Minute,
		rampStep:   time.Second,
		condense:   3*time.Hour + 30*time.Minute,
		potCool:    2 * time.Minute,
		settle:     3 * 3660 * time.Second,
		rampDown:   20 * time.Minute,
	}
}

func fullCycle(cfg Config) procedure.Body {
	t := timesFor(cfg)
	return func(p *procedure.Proc) (string, error) {
		p.Wait(time.Second)

		p.Set("labjack.heatswitch_pot", "CLOSED")
		p.Wait(time.Second)
		p.Set("labjack.heatswitch_adr", "CLOSED")
		p.Wait(time.Second)
		p.Set("labjack.heatswitch_charcoal", "OPEN")
		p.Wait(time.Second)

		// heat charcoal
		p.Set("cryocon.loop1_source", "A")
		p.Wait(time.Second)
		p.Set("cryocon.loop1_setpoint", 65)
		p.Wait(time.Second)
		p.Set("cryocon.loop2_source", "B")
		p.Wait(time.Second)
		p.Set("cryocon.loop2_setpoint", 55)
		p.Wait(time.Second)
		p.Set("cryocon.control_enabled", true)
		p.Wait(time.Second)

		// ramp up adr
		p.Set("labjack.relay", "RAMP")
		p.Wait(time.Second)
		p.Set("ls370.heater_mode", "open_loop")
		p.Wait(time.Second)
		p.Set("ls370.heater_range", "100uA")
		p.Wait(time.Second)
		steps := int(t.rampTime / t.rampStep)
		stepSize := t.targetHout / float64(steps)
		for i := range steps {
			p.Set("ls370.heater_out", float64(i)*stepSize)
			p.Wait(t.rampStep)
		}

		// wait for he3 to condense
		p.Wait(t.condense)

		// cool charcoal
		p.Set("labjack.heatswitch_pot", "OPEN")
		p.Wait(time.Second)
		p.Set("cryocon.control_enabled", false)
		p.Wait(t.potCool)
		p.Set("labjack.heatswitch_charcoal", "CLOSED")
		p.Wait(time.Second)

		p.Wait(t.settle)
		if !cfg.TestMode {
			// pulse the 40K stage: the pot drops from 400 mK to 300 mK afterwards
			p.Set("cryocon.loop1_setpoint", 65)
			p.Wait(time.Second)
			p.Set("cryocon.loop2_source", "B")
			p.Wait(time.Second)
			p.Set("cryocon.loop2_setpoint", 1)
			p.Wait(time.Second)
			p.Set("cryocon.control_enabled", true)
			p.Wait(30 * time.Minute)
			p.Set("cryocon.control_enabled", false)
			p.Wait(1830 * time.Second)
		}

		// ramp down adr
		p.Set("labjack.heatswitch_adr", "OPEN")
		p.Wait(time.Second)
		for i := steps - 1; i >= 0; i-- {
			p.Set("ls370.heater_out", float64(i)*stepSize)
			p.Wait(t.rampStep)
		}
		p.Wait(t.rampDown)
		p.Set("labjack.relay", "CONTROL")

		return "wait_forever", nil
	}
}
