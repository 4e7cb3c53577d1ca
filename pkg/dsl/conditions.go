package dsl

import "github.com/aretw0/cadence/pkg/procedure"

// Below holds while the numeric parameter at addr reads under threshold.
// A failed read (NaN) never holds.
func Below(addr string, threshold float64) procedure.Condition {
	return func(p *procedure.Proc) (bool, error) {
		return p.Get(addr) < threshold, nil
	}
}

// Above holds while the numeric parameter at addr reads over threshold.
func Above(addr string, threshold float64) procedure.Condition {
	return func(p *procedure.Proc) (bool, error) {
		return p.Get(addr) > threshold, nil
	}
}

// Equals holds while the text parameter at addr reads value.
func Equals(addr, value string) procedure.Condition {
	return func(p *procedure.Proc) (bool, error) {
		return p.Text(addr) == value, nil
	}
}

// Not negates cond.
func Not(cond procedure.Condition) procedure.Condition {
	return func(p *procedure.Proc) (bool, error) {
		ok, err := cond(p)
		return !ok, err
	}
}
