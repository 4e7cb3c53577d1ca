package domain

// Status defines the current mode of the scheduler.
type Status string

const (
	StatusIdle    Status = "idle"    // No active procedure
	StatusRunning Status = "running" // A procedure is between suspension points
	StatusWaiting Status = "waiting" // Suspended on a wait directive until its deadline
	StatusHalted  Status = "halted"  // A fatal error stopped the driver loop
)
