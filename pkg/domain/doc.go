/*
Package domain contains the core domain models shared by the Cadence scheduler and its adapters.

It defines the progress record emitted at every suspension point, the lifecycle events and hooks used
for observability, the scheduler status values and the error taxonomy. This package is kept pure and
free of external dependencies like I/O or persistence.

# Key Entities

  - Progress: The record published at every suspension point (procedure, step position, timing, highlighted source).
  - LifecycleHooks: Callbacks invoked by the scheduler for steps, waits, transitions and errors.
  - CompileError, UnknownSuccessorError, HardwareReadError, SchedulerFatalError: The error taxonomy.
*/
package domain
