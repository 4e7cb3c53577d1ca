package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownProcedure is returned when a procedure name is not present in the registry.
var ErrUnknownProcedure = errors.New("unknown procedure")

// ErrDuplicateProcedure is returned when a procedure name is registered twice.
var ErrDuplicateProcedure = errors.New("duplicate procedure")

// CompileError reports a malformed procedure definition.
type CompileError struct {
	Procedure string
	Reason    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Procedure, e.Reason)
}

// UnknownSuccessorError reports a successor name that is not registered at resolution time.
type UnknownSuccessorError struct {
	From string
	Name string
}

func (e *UnknownSuccessorError) Error() string {
	return fmt.Sprintf("procedure %s exits to unknown successor %q", e.From, e.Name)
}

// Is reports UnknownSuccessorError as a kind of ErrUnknownProcedure.
func (e *UnknownSuccessorError) Is(target error) bool {
	return target == ErrUnknownProcedure
}

// HardwareReadError is returned by instruments when a read fails.
// Actions absorb it through their own bounded retry; it never reaches the scheduler.
type HardwareReadError struct {
	Instrument string
	Param      string
	Err        error
}

func (e *HardwareReadError) Error() string {
	return fmt.Sprintf("read %s.%s: %v", e.Instrument, e.Param, e.Err)
}

func (e *HardwareReadError) Unwrap() error {
	return e.Err
}

// SchedulerFatalError halts the driver loop. Timing guarantees no longer hold after it.
type SchedulerFatalError struct {
	Reason string
}

func (e *SchedulerFatalError) Error() string {
	return "scheduler halted: " + e.Reason
}
