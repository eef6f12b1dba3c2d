package archive

import (
	"context"
	"fmt"

	"elncore/pkg/domain"
)

// Sink is what the graph emits through.
type Sink interface {
	Emit(ctx context.Context, sec *domain.Section, fileName string) (domain.Reference, error)
	Reference(fileName string) domain.Reference
}

// NodeID indexes a section in a Graph.
type NodeID int

type link struct {
	from, to NodeID
	assign   func(domain.Reference) error
}

type node struct {
	sec  *domain.Section
	file string
}

// Graph is an arena of sections about to be emitted together. References
// between them are recorded as links and written into the referring
// section when the graph is emitted; referred sections are emitted first.
type Graph struct {
	nodes []node
	links []link
}

// NewGraph returns an empty graph.
func NewGraph() *Graph { return &Graph{} }

// Add places sec in the arena under fileName.
func (g *Graph) Add(sec *domain.Section, fileName string) NodeID {
	g.nodes = append(g.nodes, node{sec: sec, file: fileName})
	return NodeID(len(g.nodes) - 1)
}

// AddRoot places the main entry section in the arena. Roots receive their
// references but are not emitted.
func (g *Graph) AddRoot(sec *domain.Section) NodeID {
	return g.Add(sec, "")
}

// Section returns the section of id.
func (g *Graph) Section(id NodeID) *domain.Section { return g.nodes[id].sec }

// File returns the file name of id.
func (g *Graph) File(id NodeID) string { return g.nodes[id].file }

// Len returns the number of sections in the arena.
func (g *Graph) Len() int { return len(g.nodes) }

// Link records that from refers to to. assign stores the reference in from.
func (g *Graph) Link(from, to NodeID, assign func(domain.Reference) error) {
	g.links = append(g.links, link{from: from, to: to, assign: assign})
}

// LinkQuantity links through a reference quantity of from.
func (g *Graph) LinkQuantity(from, to NodeID, quantity string) {
	g.Link(from, to, func(r domain.Reference) error {
		return g.nodes[from].sec.Set(quantity, r)
	})
}

// Order returns the emission order: every node after the nodes it links
// to, insertion order otherwise. A cycle is an error since one of its
// references would dangle when the first of its sections is written.
func (g *Graph) Order() ([]NodeID, error) {
	deps := make([][]NodeID, len(g.nodes))
	for _, l := range g.links {
		deps[l.from] = append(deps[l.from], l.to)
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(g.nodes))
	var order []NodeID
	var visit func(NodeID) error
	visit = func(n NodeID) error {
		switch state[n] {
		case visiting:
			return fmt.Errorf("archive.Graph: reference cycle through %s", g.label(n))
		case done:
			return nil
		}
		state[n] = visiting
		for _, d := range deps[n] {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[n] = done
		order = append(order, n)
		return nil
	}
	for i := range g.nodes {
		if err := visit(NodeID(i)); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Emit resolves every link and emits the non-root sections in dependency
// order. It returns the reference of every node, indexed by NodeID.
func (g *Graph) Emit(ctx context.Context, sink Sink) ([]domain.Reference, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}
	refs := make([]domain.Reference, len(g.nodes))
	for i, n := range g.nodes {
		if n.file != "" {
			refs[i] = sink.Reference(n.file)
		}
	}
	for _, l := range g.links {
		if g.nodes[l.to].file == "" {
			return nil, fmt.Errorf("archive.Graph: link to root section %s", g.nodes[l.to].sec.Type())
		}
		if err := l.assign(refs[l.to]); err != nil {
			return nil, fmt.Errorf("archive.Graph: link %s -> %s: %w", g.label(l.from), g.label(l.to), err)
		}
	}
	var firstErr error
	for _, id := range order {
		n := g.nodes[id]
		if n.file == "" {
			continue
		}
		if _, err := sink.Emit(ctx, n.sec, n.file); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if isFatal(err) {
				return refs, err
			}
		}
	}
	return refs, firstErr
}

func (g *Graph) label(id NodeID) string {
	if f := g.nodes[id].file; f != "" {
		return f
	}
	return g.nodes[id].sec.Type()
}
