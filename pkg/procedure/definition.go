package procedure

import "time"

// Definition is an authored procedure: an ordered step tree plus its successors.
type Definition struct {
	Name  string
	Steps []Step
	// Next is the successor entered when the steps complete. Empty means idle.
	Next string
	// Exits lists additional successor names the procedure may produce.
	Exits []string
	// Source is the authored text used for highlighting. When empty, Compile renders
	// the step tree and assigns line numbers from the rendering.
	Source string
}

// Step is one node of a procedure tree.
type Step interface {
	isStep()
}

// Condition is evaluated at a branch or loop suspension point.
type Condition func(p *Proc) (bool, error)

// Action runs host logic, then suspends.
type Action struct {
	Name string
	Do   func(p *Proc) error
	Line int
}

// Wait suspends with a wait directive of Duration.
type Wait struct {
	Duration time.Duration
	Line     int
}

// Checkpoint suspends without side effects.
type Checkpoint struct {
	Line int
}

// If evaluates Cond, suspends, then runs Then or Else.
type If struct {
	Label string
	Cond  Condition
	Then  []Step
	Else  []Step
	Line  int
}

// Repeat runs Body Count times. It adds no suspension point of its own.
type Repeat struct {
	Count int
	Body  []Step
	Line  int
}

// While evaluates Cond and suspends before every iteration. A nil Cond loops forever.
type While struct {
	Label string
	Cond  Condition
	Body  []Step
	Line  int
}

// Break leaves the innermost Repeat or While.
type Break struct {
	Line int
}

// Goto suspends, then ends the run with Target as successor.
type Goto struct {
	Target string
	Line   int
}

func (Action) isStep()     {}
func (Wait) isStep()       {}
func (Checkpoint) isStep() {}
func (If) isStep()         {}
func (Repeat) isStep()     {}
func (While) isStep()      {}
func (Break) isStep()      {}
func (Goto) isStep()       {}
