package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Cadence ASCII banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// Cold gradient, cyan to deep blue
	lines := []struct{ text, color string }{
		{"   ___          _                    ", "#67e8f9"},
		{"  / __|__ _  __| |___ _ _  __ ___   ", "#22d3ee"},
		{" | (__/ _` |/ _` / -_) ' \\/ _/ -_)  ", "#38bdf8"},
		{"  \\___\\__,_|\\__,_\\___|_||_\\__\\___|  ", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}
