// Filename: pathtaint/matcher.go
package pathtaint

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// Finding is a deduplicated tainted sink.
type Finding struct {
	SinkLocation  schemas.Location
	SinkFunction  string
	ArgumentIndex int
	// Enclosing is the function that contains the sink call.
	Enclosing   string
	Provenances []schemas.Provenance
}

// Candidate is one sink site whose argument carries real provenance, before
// deduplication.
type Candidate struct {
	Finding
	// valueKey identifies the argument value within its graph. It is empty for
	// sites imported from a callee summary.
	valueKey string
}

// CollectCandidates checks every sink site of g against the solution.
func CollectCandidates(g *Graph, sol *Solution) []Candidate {
	var out []Candidate
	for _, site := range g.Sinks {
		ids := sol.Provenances(site.Node)
		if len(ids) == 0 {
			continue
		}
		provs := make([]schemas.Provenance, 0, len(ids))
		for _, id := range ids {
			provs = append(provs, g.Provenance(id))
		}
		c := Candidate{Finding: Finding{
			SinkLocation:  site.Loc,
			SinkFunction:  site.Function,
			ArgumentIndex: site.ArgIndex,
			Enclosing:     site.Enclosing,
			Provenances:   sortProvenances(provs),
		}}
		if !site.Remote {
			c.valueKey = fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%d", g.File, g.Function, site.Function, site.ArgIndex, site.Node)
		}
		out = append(out, c)
	}
	return out
}

// Deduplicate merges candidates that describe the same problem:
//
//   - sites in one function that pass the same argument value to the same sink
//     parameter, such as fopen(buf) twice on an unchanged buf;
//   - sites at the same sink location, such as a callee sink reached from
//     several callers.
//
// A merged finding sits at the earliest location of its group and carries the
// union of the provenances. The result is ordered by sink location.
func Deduplicate(candidates []Candidate) []Finding {
	if len(candidates) == 0 {
		return nil
	}
	uf := newUnionFind(len(candidates))
	byValue := make(map[string]int)
	byLocation := make(map[schemas.Location]int)
	for i, c := range candidates {
		if c.valueKey != "" {
			if j, ok := byValue[c.valueKey]; ok {
				uf.union(i, j)
			} else {
				byValue[c.valueKey] = i
			}
		}
		if j, ok := byLocation[c.SinkLocation]; ok {
			uf.union(i, j)
		} else {
			byLocation[c.SinkLocation] = i
		}
	}

	groups := make(map[int][]int)
	for i := range candidates {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	out := make([]Finding, 0, len(groups))
	for _, members := range groups {
		first := candidates[members[0]].Finding
		var provs []schemas.Provenance
		for _, m := range members {
			c := candidates[m]
			if c.SinkLocation.Less(first.SinkLocation) {
				first = c.Finding
			}
			provs = append(provs, c.Provenances...)
		}
		first.Provenances = sortProvenances(provs)
		out = append(out, first)
	}
	sortFindings(out)
	return out
}

func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].SinkLocation != fs[j].SinkLocation {
			return fs[i].SinkLocation.Less(fs[j].SinkLocation)
		}
		if fs[i].SinkFunction != fs[j].SinkFunction {
			return fs[i].SinkFunction < fs[j].SinkFunction
		}
		return fs[i].ArgumentIndex < fs[j].ArgumentIndex
	})
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
