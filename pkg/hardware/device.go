package hardware

import (
	"fmt"
	"os"
	"time"
)

// DeviceSpec describes one line instrument attached to a character device.
type DeviceSpec struct {
	Name string `mapstructure:"name"`
	// Driver selects the parameter table: "cryocon" or "ls370".
	Driver     string        `mapstructure:"driver"`
	Device     string        `mapstructure:"device"`
	Terminator string        `mapstructure:"terminator"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// OpenDevice opens the device file of spec and binds the parameter table of its driver.
// Line settings (baud rate, parity) are expected to be configured on the device beforehand.
func OpenDevice(spec DeviceSpec) (*LineInstrument, error) {
	table, ok := Tables[spec.Driver]
	if !ok {
		return nil, fmt.Errorf("instrument %s: unknown driver %q", spec.Name, spec.Driver)
	}
	f, err := os.OpenFile(spec.Device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("instrument %s: %w", spec.Name, err)
	}
	opts := []LineOption{WithTerminator(spec.Terminator)}
	if spec.Timeout > 0 {
		opts = append(opts, WithReadTimeout(spec.Timeout))
	}
	return NewLineInstrument(spec.Name, f, table(), opts...), nil
}
