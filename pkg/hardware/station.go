package hardware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/cadence/pkg/domain"
)

var (
	// ErrUnknownInstrument is returned when an address names an instrument the station does not hold.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrUnknownParam is returned when an instrument has no such parameter.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrReadOnly is returned when setting a parameter without a set command.
	ErrReadOnly = errors.New("parameter is read-only")
)

// Instrument is a single device binding.
type Instrument interface {
	Name() string
	Params() []string
	Get(ctx context.Context, param string) (string, error)
	Set(ctx context.Context, param string, value string) error
}

// Station is the set of hardware handles available to procedures.
// It is owned by the scheduler goroutine and is not safe for concurrent mutation.
type Station struct {
	instruments map[string]Instrument
	order       []string
}

// NewStation creates a station holding the given instruments.
func NewStation(instruments ...Instrument) (*Station, error) {
	s := &Station{instruments: make(map[string]Instrument)}
	for _, inst := range instruments {
		if err := s.Add(inst); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers an instrument under its name.
func (s *Station) Add(inst Instrument) error {
	name := inst.Name()
	if _, ok := s.instruments[name]; ok {
		return fmt.Errorf("instrument %s already added", name)
	}
	s.instruments[name] = inst
	s.order = append(s.order, name)
	return nil
}

// Instrument returns the instrument registered under name.
func (s *Station) Instrument(name string) (Instrument, bool) {
	inst, ok := s.instruments[name]
	return inst, ok
}

// Names returns instrument names in registration order.
func (s *Station) Names() []string {
	return append([]string(nil), s.order...)
}

// Addresses lists every "instrument.param" address of the station.
func (s *Station) Addresses() []string {
	var out []string
	for _, name := range s.order {
		for _, p := range s.instruments[name].Params() {
			out = append(out, name+"."+p)
		}
	}
	return out
}

// Get reads a parameter by address.
func (s *Station) Get(ctx context.Context, addr string) (string, error) {
	inst, param, err := s.resolve(addr)
	if err != nil {
		return "", err
	}
	return inst.Get(ctx, param)
}

// GetFloat reads a numeric parameter by address.
// A response that does not parse as a number is reported as a HardwareReadError.
func (s *Station) GetFloat(ctx context.Context, addr string) (float64, error) {
	inst, param, err := s.resolve(addr)
	if err != nil {
		return 0, err
	}
	raw, err := inst.Get(ctx, param)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &domain.HardwareReadError{Instrument: inst.Name(), Param: param, Err: err}
	}
	return v, nil
}

// Set writes a parameter by address. Values are formatted with FormatValue.
func (s *Station) Set(ctx context.Context, addr string, value any) error {
	inst, param, err := s.resolve(addr)
	if err != nil {
		return err
	}
	if err := inst.Set(ctx, param, FormatValue(value)); err != nil {
		return fmt.Errorf("set %s: %w", addr, err)
	}
	return nil
}

// Close closes every instrument that holds an open transport.
func (s *Station) Close() error {
	var errs []error
	for _, name := range s.order {
		if c, ok := s.instruments[name].(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func (s *Station) resolve(addr string) (Instrument, string, error) {
	name, param, ok := strings.Cut(addr, ".")
	if !ok || name == "" || param == "" {
		return nil, "", fmt.Errorf("invalid address %q: want instrument.param", addr)
	}
	inst, found := s.instruments[name]
	if !found {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	return inst, param, nil
}

// FormatValue renders a Go value as the wire text instruments expect.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
