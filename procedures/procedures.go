// Package procedures is the built-in procedure table of the 2pac ADR station.
//
// Every procedure is a Go body in its own file. The file is embedded and used as the
// highlighted source, so the operator sees the exact line the scheduler stopped on.
package procedures

import (
	"embed"
	"fmt"
	"time"

	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/registry"
)

//go:embed full_cycle.go wait_forever.go ready_for_cooldown.go warmup_300k.go
//go:embed heatswitches.go set_relay_to_ramp.go switch_to_wait_forever.go idle.go
var sources embed.FS

// Initial is the procedure the station runs after startup.
const Initial = "wait_forever"

// forever is used for waits the operator is expected to interrupt.
const forever = 100 * 365 * 24 * time.Hour

// Config tunes the built-in procedures.
type Config struct {
	// TestMode shortens ramps and waits so a full cycle completes in minutes.
	TestMode bool
}

type builtin struct {
	name string
	file string
	body func(Config) procedure.Body
}

var table = []builtin{
	{"full_cycle", "full_cycle.go", fullCycle},
	{"wait_forever", "wait_forever.go", waitForever},
	{"ready_for_cooldown", "ready_for_cooldown.go", readyForCooldown},
	{"warmup_300K", "warmup_300k.go", warmup300K},
	{"open_charcoal_heatswitch", "heatswitches.go", openHeatswitch("charcoal")},
	{"open_pot_heatswitch", "heatswitches.go", openHeatswitch("pot")},
	{"open_adr_heatswitch", "heatswitches.go", openHeatswitch("adr")},
	{"set_relay_to_ramp", "set_relay_to_ramp.go", setRelayToRamp},
	{"switch_to_wait_forever_test", "switch_to_wait_forever.go", switchToWaitForever},
	{"idle", "idle.go", idle},
}

// Names returns the built-in procedure names in registration order.
func Names() []string {
	names := make([]string, len(table))
	for i, b := range table {
		names[i] = b.name
	}
	return names
}

// All compiles the built-in procedures.
func All(cfg Config) ([]*procedure.State, error) {
	states := make([]*procedure.State, 0, len(table))
	for _, b := range table {
		src, err := sources.ReadFile(b.file)
		if err != nil {
			return nil, fmt.Errorf("procedure %s: %w", b.name, err)
		}
		st, err := procedure.Func(b.name, b.body(cfg),
			procedure.WithSource("procedures/"+b.file, string(src)),
		)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// Register adds the built-in procedures to reg.
func Register(reg *registry.Registry, cfg Config) error {
	states, err := All(cfg)
	if err != nil {
		return err
	}
	return reg.AddAll(states...)
}
