package tree

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoTree is returned when a run starts from, or a pass yields, a nil tree.
var ErrNoTree = errors.New("tree: no tree")

// Pass transforms a tree. Apply may mutate and return root or return a
// replacement.
type Pass interface {
	Name() string
	Apply(root *Node) (*Node, error)
}

type passFunc struct {
	name string
	fn   func(*Node) (*Node, error)
}

func (p passFunc) Name() string                    { return p.name }
func (p passFunc) Apply(root *Node) (*Node, error) { return p.fn(root) }

// NewPass wraps fn as a named Pass.
func NewPass(name string, fn func(root *Node) (*Node, error)) Pass {
	return passFunc{name: name, fn: fn}
}

// Processor runs passes in declaration order.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a Processor. A nil logger discards output.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{logger: logger}
}

// Run feeds root through passes. The first failing pass aborts the run and
// no partial tree is returned.
func (p *Processor) Run(root *Node, passes ...Pass) (*Node, error) {
	if root == nil {
		return nil, ErrNoTree
	}
	cur := root
	for _, pass := range passes {
		start := time.Now()
		next, err := pass.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("tree: pass %s: %w", pass.Name(), err)
		}
		if next == nil {
			return nil, fmt.Errorf("tree: pass %s: %w", pass.Name(), ErrNoTree)
		}
		p.logger.Debug("tree: pass applied",
			slog.String("pass", pass.Name()),
			slog.Int("children", len(next.Children)),
			slog.Duration("took", time.Since(start)))
		cur = next
	}
	return cur, nil
}

// Run is a convenience for NewProcessor(nil).Run.
func Run(root *Node, passes ...Pass) (*Node, error) {
	return NewProcessor(nil).Run(root, passes...)
}
