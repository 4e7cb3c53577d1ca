// Package yaml loads declarative procedures from YAML documents.
//
// A document names the procedure, its successor and an ordered list of steps:
//
//	name: warmup_300K
//	next: wait_forever
//	steps:
//	  - set: labjack.heatswitch_pot
//	    value: CLOSED
//	  - wait: 3s
//	  - while: {channel: cryocon.chA_temperature, op: "<", value: 290}
//	    steps:
//	      - wait: 1m
//	  - goto: wait_forever
//
// Step lines in the document become the highlighted lines of the running procedure.
package yaml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	backend "gopkg.in/yaml.v3"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/procedure"
)

// Action is a named host action that documents can reference with "do".
type Action func(p *procedure.Proc) error

// Loader parses procedure documents.
type Loader struct {
	actions map[string]Action
}

type Option func(*Loader)

// WithAction registers a host action under name.
func WithAction(name string, fn Action) Option {
	return func(l *Loader) {
		l.actions[name] = fn
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{actions: make(map[string]Action)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// document is the top level of a procedure file.
type document struct {
	Name  string   `mapstructure:"name"`
	Next  string   `mapstructure:"next"`
	Exits []string `mapstructure:"exits"`
}

// LoadFile parses the procedure at path. The file name (without extension) names
// procedures that do not declare a name.
func (l *Loader) LoadFile(path string) (*procedure.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read procedure: %w", err)
	}
	def, err := l.ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return procedure.Compile(def)
}

// Parse parses and compiles a procedure document.
func (l *Loader) Parse(data []byte) (*procedure.State, error) {
	def, err := l.ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return procedure.Compile(def)
}

// ParseDefinition parses a procedure document without compiling it.
func (l *Loader) ParseDefinition(data []byte) (procedure.Definition, error) {
	var root backend.Node
	if err := backend.Unmarshal(data, &root); err != nil {
		return procedure.Definition{}, fmt.Errorf("failed to parse procedure: %w", err)
	}
	if root.Kind != backend.DocumentNode || len(root.Content) == 0 {
		return procedure.Definition{}, errors.New("empty procedure document")
	}
	top := root.Content[0]
	if top.Kind != backend.MappingNode {
		return procedure.Definition{}, fmt.Errorf("line %d: procedure must be a mapping", top.Line)
	}

	fields, nested := split(top, "steps")
	var doc document
	if err := decode(fields, &doc); err != nil {
		return procedure.Definition{}, fmt.Errorf("line %d: %w", top.Line, err)
	}

	p := &parser{name: doc.Name, actions: l.actions}
	steps, err := p.steps(nested["steps"])
	if err != nil {
		return procedure.Definition{}, err
	}
	return procedure.Definition{
		Name:   doc.Name,
		Steps:  steps,
		Next:   doc.Next,
		Exits:  doc.Exits,
		Source: strings.TrimRight(string(data), "\n"),
	}, nil
}

type parser struct {
	name    string
	actions map[string]Action
}

func (p *parser) errorf(n *backend.Node, format string, args ...any) error {
	return &domain.CompileError{
		Procedure: p.name,
		Reason:    fmt.Sprintf("line %d: %s", n.Line, fmt.Sprintf(format, args...)),
	}
}

func (p *parser) steps(n *backend.Node) ([]procedure.Step, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != backend.SequenceNode {
		return nil, p.errorf(n, "steps must be a list")
	}
	out := make([]procedure.Step, 0, len(n.Content))
	for _, item := range n.Content {
		s, err := p.step(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// split separates the scalar fields of a mapping node from its nested step lists.
func split(n *backend.Node, nestedKeys ...string) (map[string]any, map[string]*backend.Node) {
	fields := make(map[string]any)
	nested := make(map[string]*backend.Node)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i].Value, n.Content[i+1]
		if slices.Contains(nestedKeys, key) {
			nested[key] = value
			continue
		}
		var v any
		if err := value.Decode(&v); err == nil {
			fields[key] = v
		}
	}
	return fields, nested
}

