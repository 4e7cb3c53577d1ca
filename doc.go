/*
Package cadence is a resumable procedure scheduler for laboratory stations, built for the
cryogenic cycle of an adiabatic demagnetization refrigerator.

A procedure is a named sequence of hardware actions and waits. It suspends at explicit
checkpoints so an operator can watch it, redirect it to another procedure or stop it
between any two steps without killing a thread. The scheduler (the World) runs one
procedure at a time, records telemetry at every suspension point and publishes a progress
record with the highlighted source line the procedure stopped on.

# Concept

Procedures come from three places:

  - Go bodies in the procedures package, written as ordinary code with p.Wait and p.Checkpoint.
  - YAML documents with a declarative step tree (set, wait, repeat, while, if, goto).
  - Starlark scripts that define run() and call wait(), checkpoint() and set().

Each run ends with the name of its successor. An empty name returns the scheduler to idle.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/cadence"
	)

	func main() {
		// Simulated station, built-in procedures
		eng, err := cadence.New(cadence.WithTestMode(true))
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		updates, cancel := eng.World().Subscribe(16)
		defer cancel()
		go func() {
			for p := range updates {
				log.Printf("%s step %d (%s)", p.Procedure, p.Position, p.Status)
			}
		}()

		if err := eng.Run(context.Background(), "full_cycle"); err != nil {
			log.Fatal(err)
		}
	}
*/
package cadence
