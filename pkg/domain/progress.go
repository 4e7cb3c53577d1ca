package domain

import (
	"encoding/json"
	"time"
)

// Progress is the record published at every suspension point.
type Progress struct {
	// Procedure is the name of the active procedure. Empty while idle.
	Procedure string `json:"procedure_name"`

	// RunID identifies the run cursor that produced this record.
	RunID string `json:"run_id,omitempty"`

	// Position is the step position reached in the current run (-1 before the first step).
	Position int `json:"step_position"`

	// Line is the 0-based source line of the step, or -1 when unknown.
	Line int `json:"line"`

	// ElapsedInState is the time spent in the active procedure since it was started.
	ElapsedInState time.Duration `json:"-"`

	// Elapsed is the time since the scheduler processed its first step.
	Elapsed time.Duration `json:"-"`

	// WaitRemaining is the time left on the pending wait directive.
	WaitRemaining time.Duration `json:"-"`

	Status Status `json:"status"`

	// Highlighted is the procedure source with the current line marked.
	Highlighted string `json:"highlighted_source"`

	// LastError holds the failure that ended the previous run, if any.
	LastError string `json:"last_error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ElapsedSecondsInState returns ElapsedInState as float64 seconds.
func (p Progress) ElapsedSecondsInState() float64 {
	return p.ElapsedInState.Seconds()
}

type progressJSON struct {
	progressAlias
	ElapsedSecondsInState float64 `json:"elapsed_seconds_in_state"`
	ElapsedSeconds        float64 `json:"elapsed_seconds"`
	WaitRemainingSeconds  float64 `json:"wait_remaining_seconds"`
}

type progressAlias Progress

// MarshalJSON encodes durations as float64 seconds.
func (p Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{
		progressAlias:         progressAlias(p),
		ElapsedSecondsInState: p.ElapsedInState.Seconds(),
		ElapsedSeconds:        p.Elapsed.Seconds(),
		WaitRemainingSeconds:  p.WaitRemaining.Seconds(),
	})
}

// UnmarshalJSON decodes the float64 second fields back into durations.
func (p *Progress) UnmarshalJSON(data []byte) error {
	var raw progressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Progress(raw.progressAlias)
	p.ElapsedInState = seconds(raw.ElapsedSecondsInState)
	p.Elapsed = seconds(raw.ElapsedSeconds)
	p.WaitRemaining = seconds(raw.WaitRemainingSeconds)
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
