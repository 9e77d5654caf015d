// Filename: pathtaint/summary.go
package pathtaint

import (
	"reflect"
	"sort"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// SinkRef names a sink call inside a function, as seen by its callers.
type SinkRef struct {
	Location  schemas.Location
	Function  string
	ArgIndex  int
	Enclosing string
}

func (r SinkRef) less(o SinkRef) bool {
	if r.Location != o.Location {
		return r.Location.Less(o.Location)
	}
	if r.Function != o.Function {
		return r.Function < o.Function
	}
	if r.ArgIndex != o.ArgIndex {
		return r.ArgIndex < o.ArgIndex
	}
	return r.Enclosing < o.Enclosing
}

// FunctionSummary describes what a function does with its parameters, so that
// callers can be analyzed without re-entering its body.
type FunctionSummary struct {
	Name string
	// ParamToSinks lists, per parameter position, the sinks the parameter
	// reaches, directly or through further calls.
	ParamToSinks map[int][]SinkRef
	// ParamToReturn is set for parameters whose value flows to the result.
	ParamToReturn map[int]bool
	// ReturnProvenances are the real sources the result carries on its own.
	ReturnProvenances []schemas.Provenance
}

// IsEmpty reports whether the summary carries no flow at all.
func (s *FunctionSummary) IsEmpty() bool {
	return len(s.ParamToSinks) == 0 && len(s.ParamToReturn) == 0 && len(s.ReturnProvenances) == 0
}

// Summarize reads the parameter markers and real provenances that reach the
// sink sites and the return node of a solved graph.
func Summarize(g *Graph, sol *Solution) *FunctionSummary {
	s := &FunctionSummary{Name: g.Function}
	for _, site := range g.Sinks {
		for _, param := range sol.markers(site.Node) {
			if s.ParamToSinks == nil {
				s.ParamToSinks = make(map[int][]SinkRef)
			}
			s.ParamToSinks[param] = append(s.ParamToSinks[param], SinkRef{
				Location:  site.Loc,
				Function:  site.Function,
				ArgIndex:  site.ArgIndex,
				Enclosing: site.Enclosing,
			})
		}
	}
	if g.Return != noNode {
		for _, param := range sol.markers(g.Return) {
			if s.ParamToReturn == nil {
				s.ParamToReturn = make(map[int]bool)
			}
			s.ParamToReturn[param] = true
		}
		for _, id := range sol.Provenances(g.Return) {
			s.ReturnProvenances = append(s.ReturnProvenances, g.Provenance(id))
		}
	}
	s.normalize()
	return s
}

// normalize sorts and de-duplicates every list so summaries compare by value.
func (s *FunctionSummary) normalize() {
	for p, refs := range s.ParamToSinks {
		sort.Slice(refs, func(i, j int) bool { return refs[i].less(refs[j]) })
		uniq := refs[:0]
		for i, r := range refs {
			if i == 0 || r != refs[i-1] {
				uniq = append(uniq, r)
			}
		}
		s.ParamToSinks[p] = uniq
	}
	if len(s.ParamToSinks) == 0 {
		s.ParamToSinks = nil
	}
	if len(s.ParamToReturn) == 0 {
		s.ParamToReturn = nil
	}
	s.ReturnProvenances = sortProvenances(s.ReturnProvenances)
}

// merge folds other into s. Functions with the same name in different files
// are treated as one, since a call site cannot tell them apart.
func (s *FunctionSummary) merge(other *FunctionSummary) {
	for p, refs := range other.ParamToSinks {
		if s.ParamToSinks == nil {
			s.ParamToSinks = make(map[int][]SinkRef)
		}
		s.ParamToSinks[p] = append(s.ParamToSinks[p], refs...)
	}
	for p := range other.ParamToReturn {
		if s.ParamToReturn == nil {
			s.ParamToReturn = make(map[int]bool)
		}
		s.ParamToReturn[p] = true
	}
	s.ReturnProvenances = append(s.ReturnProvenances, other.ReturnProvenances...)
	s.normalize()
}

// SummarySet is the read-only summary snapshot one round of analysis uses.
type SummarySet map[string]*FunctionSummary

// add merges a summary into the set. An empty summary is kept: it tells
// callers the function's result is clean.
func (ss SummarySet) add(s *FunctionSummary) {
	if s == nil {
		return
	}
	if existing, ok := ss[s.Name]; ok {
		existing.merge(s)
		return
	}
	cp := &FunctionSummary{Name: s.Name}
	cp.merge(s)
	ss[s.Name] = cp
}

// Equal reports whether two summary sets carry the same facts.
func (ss SummarySet) Equal(other SummarySet) bool {
	if len(ss) != len(other) {
		return false
	}
	for name, s := range ss {
		o, ok := other[name]
		if !ok || !reflect.DeepEqual(s, o) {
			return false
		}
	}
	return true
}
