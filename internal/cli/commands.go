package cli

import (
	"bufio"
	"fmt"
	"io"
)

// Controller is the part of the scheduler the operator console drives.
type Controller interface {
	SwitchByName(name string) error
	RequestStop()
}

// Lister lists the registered procedure names.
type Lister interface {
	Names() []string
}

// readCommands reads operator commands, one per line, until r is exhausted.
func readCommands(r io.Reader, ctrl Controller, catalog Lister, out io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		handleCommand(scanner.Text(), ctrl, catalog, out)
	}
}

// handleCommand applies one console line. A procedure name requests a switch to it.
func handleCommand(line string, ctrl Controller, catalog Lister, out io.Writer) {
	cmd, err := SanitizeCommand(line)
	if err != nil {
		printSystemMessage(out, "Ignored input: %v", err)
		return
	}
	switch cmd {
	case "":
		return
	case "stop":
		ctrl.RequestStop()
		printSystemMessage(out, "Stopping at the next step.")
	case "list", "ls":
		for _, name := range catalog.Names() {
			fmt.Fprintf(out, "  %s\n", name)
		}
	case "help", "?":
		printSystemMessage(out, "Type a procedure name to switch to it, 'list' to list procedures, 'stop' to go idle.")
	default:
		if err := ctrl.SwitchByName(cmd); err != nil {
			printSystemMessage(out, "Unknown procedure '%s'.", cmd)
			return
		}
		printSystemMessage(out, "Switching to '%s'.", cmd)
	}
}
