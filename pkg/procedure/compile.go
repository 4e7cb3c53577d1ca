package procedure

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/cadence/pkg/domain"
)

type nodeKind int

const (
	kindAction nodeKind = iota
	kindWait
	kindCheckpoint
	kindIf
	kindRepeat
	kindWhile
	kindBreak
	kindGoto
)

// node is the compiled form of a Step with its resolved source line.
type node struct {
	kind   nodeKind
	label  string
	line   int
	do     func(*Proc) error
	wait   time.Duration
	cond   Condition
	count  int
	target string
	body   []node
	alt    []node
}

type compiler struct {
	name    string
	render  bool
	lines   []string
	markers int
	exits   []string
}

// Compile linearizes def into a State.
// It fails with a *domain.CompileError when the tree is malformed or has no suspension point.
func Compile(def Definition) (*State, error) {
	if def.Name == "" {
		return nil, &domain.CompileError{Reason: "procedure has no name"}
	}
	c := &compiler{name: def.Name, render: def.Source == ""}
	if c.render {
		c.emit(0, "procedure "+def.Name+":")
	}

	nodes, err := c.block(def.Steps, 1, false)
	if err != nil {
		return nil, err
	}
	if c.markers == 0 {
		return nil, c.errorf("no suspension points")
	}

	source := def.Source
	if c.render {
		if def.Next != "" {
			c.emit(1, "next "+def.Next)
		}
		source = strings.Join(c.lines, "\n")
	}

	exits := mergeExits(append(append([]string{def.Next}, def.Exits...), c.exits...)...)
	next := def.Next
	return &State{
		name:   def.Name,
		exits:  exits,
		source: source,
		steps:  c.markers,
		run: func(p *Proc) (string, error) {
			r := &treeRun{p: p}
			f, err := r.block(nodes)
			if err != nil {
				return "", err
			}
			if f == flowExit {
				return r.target, nil
			}
			return next, nil
		},
	}, nil
}

func (c *compiler) block(steps []Step, depth int, inLoop bool) ([]node, error) {
	nodes := make([]node, 0, len(steps))
	for i, s := range steps {
		n, err := c.step(s, depth, inLoop)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *compiler) step(s Step, depth int, inLoop bool) (node, error) {
	var (
		n   node
		err error
	)
	switch s := s.(type) {
	case Action:
		if s.Do == nil {
			return n, c.errorf("action %q has no function", s.Name)
		}
		n = node{kind: kindAction, label: s.Name, do: s.Do}
		n.line = c.line(s.Line, depth, s.Name)
		c.markers++
	case Wait:
		if s.Duration < 0 {
			return n, c.errorf("negative wait %s", s.Duration)
		}
		n = node{kind: kindWait, wait: s.Duration}
		n.line = c.line(s.Line, depth, "wait "+s.Duration.String())
		c.markers++
	case Checkpoint:
		n = node{kind: kindCheckpoint}
		n.line = c.line(s.Line, depth, "checkpoint")
		c.markers++
	case If:
		if s.Cond == nil {
			return n, c.errorf("if %q has no condition", s.Label)
		}
		n = node{kind: kindIf, label: s.Label, cond: s.Cond}
		n.line = c.line(s.Line, depth, "if "+s.Label+":")
		c.markers++
		if n.body, err = c.block(s.Then, depth+1, inLoop); err != nil {
			return n, err
		}
		if len(s.Else) > 0 {
			c.emit(depth, "else:")
			if n.alt, err = c.block(s.Else, depth+1, inLoop); err != nil {
				return n, err
			}
		}
	case Repeat:
		if s.Count < 0 {
			return n, c.errorf("negative repeat count %d", s.Count)
		}
		n = node{kind: kindRepeat, count: s.Count}
		n.line = c.line(s.Line, depth, fmt.Sprintf("repeat %d:", s.Count))
		if n.body, err = c.block(s.Body, depth+1, true); err != nil {
			return n, err
		}
	case While:
		label := s.Label
		if label == "" && s.Cond == nil {
			label = "true"
		}
		n = node{kind: kindWhile, label: label, cond: s.Cond}
		n.line = c.line(s.Line, depth, "while "+label+":")
		c.markers++
		if n.body, err = c.block(s.Body, depth+1, true); err != nil {
			return n, err
		}
	case Break:
		if !inLoop {
			return n, c.errorf("break outside of a loop")
		}
		n = node{kind: kindBreak}
		n.line = c.line(s.Line, depth, "break")
	case Goto:
		if s.Target == "" {
			return n, c.errorf("goto without target")
		}
		n = node{kind: kindGoto, target: s.Target}
		n.line = c.line(s.Line, depth, "goto "+s.Target)
		c.exits = append(c.exits, s.Target)
		c.markers++
	case nil:
		return n, c.errorf("nil step")
	default:
		return n, c.errorf("unsupported step %T", s)
	}
	return n, nil
}

// line returns the authored line, or the line of the rendered text when rendering.
func (c *compiler) line(authored, depth int, text string) int {
	if !c.render {
		return authored
	}
	return c.emit(depth, text)
}

func (c *compiler) emit(depth int, text string) int {
	if !c.render {
		return -1
	}
	c.lines = append(c.lines, strings.Repeat("    ", depth)+text)
	return len(c.lines) - 1
}

func (c *compiler) errorf(format string, args ...any) error {
	return &domain.CompileError{Procedure: c.name, Reason: fmt.Sprintf(format, args...)}
}

// mergeExits drops empty names and duplicates, keeping first occurrence order.
func mergeExits(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

type flow int

const (
	flowNext flow = iota
	flowBreak
	flowExit
)

type treeRun struct {
	p      *Proc
	target string
}

func (r *treeRun) block(nodes []node) (flow, error) {
	for i := range nodes {
		n := &nodes[i]
		switch n.kind {
		case kindAction:
			if err := n.do(r.p); err != nil {
				return flowExit, fmt.Errorf("action %q: %w", n.label, err)
			}
			r.p.Suspend(n.line, 0)
		case kindWait:
			r.p.Suspend(n.line, n.wait)
		case kindCheckpoint:
			r.p.Suspend(n.line, 0)
		case kindIf:
			ok, err := n.cond(r.p)
			if err != nil {
				return flowExit, fmt.Errorf("if %q: %w", n.label, err)
			}
			r.p.Suspend(n.line, 0)
			branch := n.body
			if !ok {
				branch = n.alt
			}
			if f, err := r.block(branch); err != nil || f != flowNext {
				return f, err
			}
		case kindRepeat:
			for range n.count {
				f, err := r.block(n.body)
				if err != nil || f == flowExit {
					return f, err
				}
				if f == flowBreak {
					break
				}
			}
		case kindWhile:
			for {
				ok := true
				if n.cond != nil {
					var err error
					if ok, err = n.cond(r.p); err != nil {
						return flowExit, fmt.Errorf("while %q: %w", n.label, err)
					}
				}
				r.p.Suspend(n.line, 0)
				if !ok {
					break
				}
				f, err := r.block(n.body)
				if err != nil || f == flowExit {
					return f, err
				}
				if f == flowBreak {
					break
				}
			}
		case kindBreak:
			return flowBreak, nil
		case kindGoto:
			r.p.Suspend(n.line, 0)
			r.target = n.target
			return flowExit, nil
		}
	}
	return flowNext, nil
}
