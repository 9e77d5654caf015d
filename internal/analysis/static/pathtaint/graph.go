// Filename: pathtaint/graph.go
package pathtaint

import (
	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// NodeID indexes a node in a Graph's arena.
type NodeID int

// noNode marks the absence of a value (a statement with no result).
const noNode NodeID = -1

// NodeKind describes what a dataflow node stands for.
type NodeKind int

const (
	NodeVariable NodeKind = iota // a version of a variable after a write
	NodePhi                      // a join of versions at a branch or loop head
	NodeTemp                     // an intermediate expression result
	NodeSource                   // an untrusted origin
	NodeLiteral                  // a compile-time constant
	NodeParam                    // a formal parameter on entry
	NodeReturn                   // the function's return value
)

var nodeKindNames = [...]string{"variable", "phi", "temp", "source", "literal", "param", "return"}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// NodeKey identifies a node by the symbol it versions and the program point
// that produced it. Asking for the same key twice yields the same node.
type NodeKey struct {
	Symbol string
	Point  int
}

// Node is one entry of the arena.
type Node struct {
	ID   NodeID
	Key  NodeKey
	Kind NodeKind
	Loc  schemas.Location
}

// Edge carries a value from one node to another. Sanitizing edges exist in the
// graph but never carry taint.
type Edge struct {
	From       NodeID
	To         NodeID
	Sanitizing bool
}

// SinkSite is a path-consuming call whose argument value is Node.
type SinkSite struct {
	Loc      schemas.Location
	Function string
	ArgIndex int
	Node     NodeID
	// Enclosing is the function that contains the sink call. For sites
	// imported from a callee summary it is the callee.
	Enclosing string
	// Remote is set for sites that stand for a sink inside a called function.
	Remote bool
}

type seed struct {
	node NodeID
	prov ProvenanceID
}

// Graph is the per-function dataflow graph. Nodes live in an arena indexed by
// NodeID, so cycles from loops and in-place buffer updates are plain integer
// references.
type Graph struct {
	Function string
	File     string

	nodes   []Node
	index   map[NodeKey]NodeID
	edges   []Edge
	edgeSet map[Edge]struct{}

	provenances []provenanceRecord
	seeds       []seed

	Sinks  []SinkSite
	Return NodeID
	Params []NodeID
}

func newGraph(file, function string) *Graph {
	return &Graph{
		Function: function,
		File:     file,
		index:    make(map[NodeKey]NodeID),
		edgeSet:  make(map[Edge]struct{}),
		Return:   noNode,
	}
}

// node returns the node for key, creating it on first use.
func (g *Graph) node(key NodeKey, kind NodeKind, loc schemas.Location) NodeID {
	if id, ok := g.index[key]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Key: key, Kind: kind, Loc: loc})
	g.index[key] = id
	return id
}

// addEdge records a flow; duplicates and self loops are ignored.
func (g *Graph) addEdge(from, to NodeID, sanitizing bool) {
	if from == noNode || to == noNode || from == to {
		return
	}
	e := Edge{From: from, To: to, Sanitizing: sanitizing}
	if _, ok := g.edgeSet[e]; ok {
		return
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
}

// addSource registers an origin at node. param is -1 for real sources.
func (g *Graph) addSource(node NodeID, p schemas.Provenance, param int) ProvenanceID {
	id := ProvenanceID(len(g.provenances))
	g.provenances = append(g.provenances, provenanceRecord{Provenance: p, Param: param})
	g.seeds = append(g.seeds, seed{node: node, prov: id})
	return id
}

// Lookup finds a node by key.
func (g *Graph) Lookup(key NodeKey) (NodeID, bool) {
	id, ok := g.index[key]
	return id, ok
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// NodeCount returns the size of the arena.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge { return g.edges }

// Provenance returns the public view of a registered provenance.
func (g *Graph) Provenance(id ProvenanceID) schemas.Provenance {
	return g.provenances[id].Provenance
}

// HasCycle reports whether any edge points backwards in the arena, which only
// loop back edges do.
func (g *Graph) HasCycle() bool {
	for _, e := range g.edges {
		if e.To < e.From {
			return true
		}
	}
	return false
}
