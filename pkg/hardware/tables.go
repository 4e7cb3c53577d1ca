package hardware

import (
	"fmt"
	"strconv"
)

// CryoconParams is the parameter table of the Cryo-con 24C temperature controller.
func CryoconParams() map[string]Param {
	p := map[string]Param{
		"control_enabled": {
			Get:   "control?",
			Set:   "%s",
			Write: map[string]string{"true": "control", "false": "stop"},
			Read:  map[string]string{"ON": "true", "OFF": "false"},
		},
	}
	for _, ch := range []string{"A", "B", "C", "D"} {
		c := "ch" + ch + "_"
		p[c+"temperature"] = Param{Get: "input? " + ch}
		p[c+"units"] = Param{Get: "input " + ch + ":units?", Set: "input " + ch + ":units %s"}
		p[c+"sensor"] = Param{Get: "input " + ch + ":sensor?", Set: "input " + ch + ":sensor %s"}
		for _, stat := range []string{"min", "max", "variance", "slope", "offset"} {
			p[c+stat] = Param{Get: "input? " + ch + ":" + stat}
		}
	}
	for loop := 1; loop <= 4; loop++ {
		l := fmt.Sprintf("loop%d_", loop)
		cmd := fmt.Sprintf("loop %d:", loop)
		rng := map[string]string{"high": "HI", "medium": "MID", "low": "LOW"}
		if loop > 2 {
			rng = map[string]string{"5V": "5V", "10V": "10V"}
		}
		p[l+"source"] = Param{Get: cmd + "source?", Set: cmd + "source %s"}
		p[l+"setpoint"] = Param{Get: cmd + "setpt?", Set: cmd + "setpt %s", Suffix: "K"}
		p[l+"type"] = Param{
			Get: cmd + "type?", Set: cmd + "type %s",
			Write: map[string]string{"off": "OFF", "manual": "MAN", "PID": "PID", "table": "TABLE", "ramp": "RAMPP"},
		}
		p[l+"range"] = Param{Get: cmd + "range?", Set: cmd + "range %s", Write: rng}
		p[l+"ramp_rate"] = Param{Get: cmd + "rate?", Set: cmd + "rate %s"}
		p[l+"P"] = Param{Get: cmd + "pgain?", Set: cmd + "pgain %s"}
		p[l+"I"] = Param{Get: cmd + "igain?", Set: cmd + "igain %s"}
		p[l+"D"] = Param{Get: cmd + "dgain?", Set: cmd + "dgain %s"}
		p[l+"manual_power"] = Param{Get: cmd + "pman?", Set: cmd + "pman %s"}
		p[l+"output_power"] = Param{Get: cmd + "outp?"}
		p[l+"read_heater"] = Param{Get: cmd + "htrread?", Suffix: "%"}
		p[l+"max_power"] = Param{Get: cmd + "maxp?", Set: cmd + "maxp %s"}
	}
	return p
}

// Lakeshore370Params is the parameter table of the Lakeshore 370 AC resistance bridge.
// The heater output drives the ADR magnet supply in open-loop mode.
func Lakeshore370Params() map[string]Param {
	p := map[string]Param{
		"heater_out": {Get: "HTR?", Set: "MOUT %s"},
		"heater_mode": {
			Get: "CMODE?", Set: "CMODE %s",
			Write: map[string]string{"closed": "1", "zone": "2", "open_loop": "3", "off": "4"},
		},
		"heater_range": {
			Get: "HTRRNG?", Set: "HTRRNG %s",
			Write: map[string]string{
				"off": "0", "31.6uA": "1", "100uA": "2", "316uA": "3", "1mA": "4",
				"3.16mA": "5", "10mA": "6", "31.6mA": "7", "100mA": "8",
			},
		},
		"heater_setpoint": {Get: "SETP?", Set: "SETP %s"},
	}
	for ch := 1; ch <= 16; ch++ {
		c := fmt.Sprintf("ch%02d_", ch)
		p[c+"temperature"] = Param{Get: fmt.Sprintf("RDGK? %d", ch)}
		p[c+"resistance"] = Param{Get: fmt.Sprintf("RDGR? %d", ch)}
	}
	return p
}

// Tables maps driver names accepted in station configuration to their parameter tables.
var Tables = map[string]func() map[string]Param{
	"cryocon": CryoconParams,
	"ls370":   Lakeshore370Params,
}

// kepcoAmpsPerHout converts the ls370 heater output to magnet current:
// an output of 55 reaches the 9.53 A limit of the supply.
const kepcoAmpsPerHout = 9.53 / 55

// SimulatedStation builds the 2pac station (cryocon, ls370, labjack) from simulated instruments.
// The labjack magnet current follows the ls370 heater output.
func SimulatedStation() *Station {
	cryocon := NewSimulated("cryocon", map[string]string{
		"chA_temperature": "61.2", "chB_temperature": "4.8",
		"chC_temperature": "3.1", "chD_temperature": "2.9",
		"loop1_source": "A", "loop1_setpoint": "45",
		"loop2_source": "B", "loop2_setpoint": "55",
		"control_enabled": "false",
	})
	ls := NewSimulated("ls370", map[string]string{
		"heater_out": "0", "heater_mode": "off", "heater_range": "off", "heater_setpoint": "0",
		"ch04_temperature": "0.35",
	})
	lj := NewSimulated("labjack", map[string]string{
		"relay": "UNKNOWN", "kepco_voltage": "0", "kepco_current": "0",
		"heatswitch_adr": "UNKNOWN", "heatswitch_charcoal": "UNKNOWN", "heatswitch_pot": "UNKNOWN",
		"he3_pressure": "0.1",
	})
	ls.OnSet(func(param, value string) {
		if param != "heater_out" {
			return
		}
		hout, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return
		}
		lj.SetValue("kepco_current", FormatValue(hout*kepcoAmpsPerHout))
	})

	st, _ := NewStation(cryocon, ls, lj)
	return st
}
