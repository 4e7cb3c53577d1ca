package procedure

import (
	"context"
	"regexp"
	"slices"

	"github.com/aretw0/cadence/pkg/domain"
)

// Body is a procedure written in Go. It suspends through the Proc it receives and
// returns the name of its successor ("" for none).
type Body func(p *Proc) (string, error)

// State is a compiled procedure. It is immutable and may be started any number of times.
type State struct {
	name   string
	exits  []string
	source string
	file   string
	steps  int
	run    func(p *Proc) (string, error)
}

func (s *State) Name() string { return s.name }

// Exits returns the successor names the procedure declares.
func (s *State) Exits() []string { return slices.Clone(s.exits) }

// Source returns the text used for highlighting.
func (s *State) Source() string { return s.source }

// File returns the file the source was read from, or "" for rendered step trees.
func (s *State) File() string { return s.file }

// StepCount returns the number of suspension points in the static step tree.
// Go bodies report 0: their count is only known at run time.
func (s *State) StepCount() int { return s.steps }

// Highlight returns the source with line marked.
func (s *State) Highlight(line int) string { return Highlight(s.source, line) }

// Start begins a new run at position 0. No side effect happens before the first Next.
func (s *State) Start(ctx context.Context, env Env) *Cursor {
	return newCursor(ctx, s, env)
}

// FuncOption configures a State built by Func.
type FuncOption func(*State)

// WithSource attaches the source text of the body, usually embedded with //go:embed.
// file is the name of the Go file that holds the body; suspension points inside it report their line.
func WithSource(file, text string) FuncOption {
	return func(s *State) {
		s.file = file
		s.source = text
	}
}

// WithExits declares successor names in addition to those found in the source.
func WithExits(names ...string) FuncOption {
	return func(s *State) {
		s.exits = append(s.exits, names...)
	}
}

var returnName = regexp.MustCompile(`^\s*return\s+"([^"]+)"`)

// Func builds a State from a Go body.
// Exits are collected from `return "name"` lines of the attached source plus WithExits.
func Func(name string, body Body, opts ...FuncOption) (*State, error) {
	if name == "" {
		return nil, &domain.CompileError{Reason: "procedure has no name"}
	}
	if body == nil {
		return nil, &domain.CompileError{Procedure: name, Reason: "nil body"}
	}
	s := &State{name: name, run: body}
	for _, opt := range opts {
		opt(s)
	}
	s.exits = mergeExits(append(s.exits, CollectExits(s.source)...)...)
	return s, nil
}

// CollectExits scans source for lines returning a string literal successor.
func CollectExits(source string) []string {
	var exits []string
	for _, line := range splitLines(source) {
		if m := returnName.FindStringSubmatch(line); m != nil {
			exits = append(exits, m[1])
		}
	}
	return mergeExits(exits...)
}
