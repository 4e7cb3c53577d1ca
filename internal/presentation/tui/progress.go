package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const marker = "--> "

// Window returns at most height lines of highlighted source, centered on the marked line.
// Without a marked line the window starts at the top.
func Window(highlighted string, height int) string {
	lines := strings.Split(highlighted, "\n")
	if height <= 0 || len(lines) <= height {
		return highlighted
	}
	at := 0
	for i, l := range lines {
		if strings.HasPrefix(l, marker) {
			at = i
			break
		}
	}
	start := max(at-height/2, 0)
	start = min(start, len(lines)-height)
	return strings.Join(lines[start:start+height], "\n")
}

// StatusLine renders a one-line summary of p.
func StatusLine(p domain.Progress) string {
	prof := termenv.ColorProfile()
	status := termenv.String(strings.ToUpper(string(p.Status))).Bold()
	switch p.Status {
	case domain.StatusRunning:
		status = status.Foreground(prof.Color("#22c55e"))
	case domain.StatusWaiting:
		status = status.Foreground(prof.Color("#38bdf8"))
	case domain.StatusHalted:
		status = status.Foreground(prof.Color("#ef4444"))
	default:
		status = status.Faint()
	}

	name := p.Procedure
	if name == "" {
		name = "-"
	}
	line := fmt.Sprintf("%s %s step %d in state %s", status, name, p.Position, round(p.ElapsedInState))
	if p.Status == domain.StatusWaiting {
		line += fmt.Sprintf(", %s left", round(p.WaitRemaining))
	}
	if p.LastError != "" {
		line += " " + termenv.String("last error: "+p.LastError).Foreground(prof.Color("#f97316")).String()
	}
	return line
}

func round(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}

// ProgressView prints progress records to a terminal or a plain stream.
type ProgressView struct {
	out    io.Writer
	height int
	tty    bool
	last   domain.Progress
}

// NewProgressView builds a view on out. When out is a terminal, the source window
// follows its height and the screen is redrawn on every record.
func NewProgressView(out io.Writer) *ProgressView {
	v := &ProgressView{out: out, height: 12}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		v.tty = true
		if _, h, err := term.GetSize(int(f.Fd())); err == nil && h > 6 {
			v.height = h - 4
		}
	}
	return v
}

// Show renders p. On a plain stream only procedure or line changes produce output.
func (v *ProgressView) Show(p domain.Progress) {
	if !v.tty {
		if p.Procedure == v.last.Procedure && p.Line == v.last.Line && p.Status == v.last.Status {
			return
		}
		v.last = p
		fmt.Fprintln(v.out, StatusLine(p))
		return
	}
	v.last = p
	out := termenv.NewOutput(v.out)
	out.ClearScreen()
	fmt.Fprintln(v.out, StatusLine(p))
	fmt.Fprintln(v.out)
	if p.Highlighted != "" {
		fmt.Fprintln(v.out, Window(p.Highlighted, v.height))
	}
}
