package world

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/aretw0/cadence/pkg/domain"
)

const (
	eventStart  = "start"
	eventSwitch = "switch"
	eventWait   = "wait"
	eventResume = "resume"
	eventFinish = "finish"
	eventHalt   = "halt"
)

func newStatusMachine() *fsm.FSM {
	idle := string(domain.StatusIdle)
	running := string(domain.StatusRunning)
	waiting := string(domain.StatusWaiting)
	halted := string(domain.StatusHalted)

	return fsm.NewFSM(
		idle,
		fsm.Events{
			{Name: eventStart, Src: []string{idle}, Dst: running},
			{Name: eventSwitch, Src: []string{running, waiting}, Dst: running},
			{Name: eventWait, Src: []string{running}, Dst: waiting},
			{Name: eventResume, Src: []string{waiting}, Dst: running},
			{Name: eventFinish, Src: []string{running, waiting}, Dst: idle},
			{Name: eventHalt, Src: []string{idle, running, waiting}, Dst: halted},
		},
		fsm.Callbacks{},
	)
}

// fire moves the status machine, ignoring events that do not apply to the current status.
func (w *World) fire(ctx context.Context, event string) {
	if !w.status.Can(event) {
		return
	}
	err := w.status.Event(ctx, event)
	if err == nil {
		return
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return
	}
	w.logger.Warn("status transition rejected", "event", event, "status", w.status.Current(), "error", err)
}

// Status returns the scheduler status.
func (w *World) Status() domain.Status {
	return domain.Status(w.status.Current())
}
