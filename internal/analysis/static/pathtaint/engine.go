// Filename: pathtaint/engine.go
package pathtaint

import (
	"fmt"
)

// DefaultMaxIterations bounds the propagation passes over one graph.
const DefaultMaxIterations = 256

// Solution maps every node of a graph to its fixpoint label.
type Solution struct {
	graph  *Graph
	labels []TaintLabel
	// Iterations is the number of passes, including the final pass that
	// observed no change.
	Iterations int
}

// Label returns the label of a node. Unknown ids are clean.
func (s *Solution) Label(id NodeID) TaintLabel {
	if id < 0 || int(id) >= len(s.labels) {
		return TaintLabel{}
	}
	return s.labels[id]
}

// Provenances resolves the real sources reaching a node, dropping parameter
// markers.
func (s *Solution) Provenances(id NodeID) []ProvenanceID {
	var out []ProvenanceID
	for _, p := range s.Label(id).IDs() {
		if !s.graph.provenances[p].isMarker() {
			out = append(out, p)
		}
	}
	return out
}

// markers returns the parameter positions whose markers reach a node.
func (s *Solution) markers(id NodeID) []int {
	var out []int
	for _, p := range s.Label(id).IDs() {
		if rec := s.graph.provenances[p]; rec.isMarker() {
			out = append(out, rec.Param)
		}
	}
	return out
}

// Propagate computes the least fixpoint of the taint labels over g. Every
// pass visits the edges in insertion order and unions the label of the tail
// into the head; sanitizing edges are skipped. Labels only grow, so the loop
// converges; when it has not after maxIterations passes the result is
// ErrAnalysisTimeout.
func Propagate(g *Graph, maxIterations int) (*Solution, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	sol := &Solution{graph: g, labels: make([]TaintLabel, len(g.nodes))}
	for _, s := range g.seeds {
		sol.labels[s.node].add(s.prov)
	}

	for sol.Iterations < maxIterations {
		sol.Iterations++
		changed := false
		for _, e := range g.edges {
			if e.Sanitizing {
				continue
			}
			if sol.labels[e.To].union(sol.labels[e.From]) {
				changed = true
			}
		}
		if !changed {
			return sol, nil
		}
	}
	return sol, fmt.Errorf("%w: %s did not converge after %d iterations", ErrAnalysisTimeout, g.Function, maxIterations)
}
