package world

import (
	"time"

	"github.com/aretw0/cadence/pkg/domain"
)

// CurrentProgress returns the latest progress record with durations measured now.
func (w *World) CurrentProgress() domain.Progress {
	now := w.clock()
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.progress
	w.measure(&p, now)
	return p
}

// ElapsedInState returns the time spent in the active procedure, 0 while idle.
func (w *World) ElapsedInState() time.Duration {
	return w.CurrentProgress().ElapsedInState
}

// Subscribe returns a channel receiving every published progress record.
// A subscriber that falls behind by more than buffer records misses records.
// The returned function unsubscribes and closes the channel.
func (w *World) Subscribe(buffer int) (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, buffer)
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(ch)
		}
	}
}

// publish stores p and offers it to every subscriber without blocking.
func (w *World) publish(p domain.Progress) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.measure(&p, p.Timestamp)
	w.progress = p

	for id, ch := range w.subs {
		select {
		case ch <- p:
		default:
			w.logger.Warn("progress record dropped", "subscriber", id, "procedure", p.Procedure, "position", p.Position)
		}
	}
}

// measure fills the durations of p as seen at now. Callers hold w.mu.
func (w *World) measure(p *domain.Progress, now time.Time) {
	p.ElapsedInState, p.Elapsed, p.WaitRemaining = 0, 0, 0
	if p.Procedure != "" {
		p.ElapsedInState = now.Sub(w.stateStart)
	}
	if !w.runStart.IsZero() {
		p.Elapsed = now.Sub(w.runStart)
	}
	if !w.waitUntil.IsZero() && w.waitUntil.After(now) {
		p.WaitRemaining = w.waitUntil.Sub(now)
	}
}
