// Filename: pathtaint/state.go
package pathtaint

import (
	"sort"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// ProvenanceID indexes a provenance registered in a Graph.
type ProvenanceID int

// provenanceRecord is either a real untrusted origin or a marker standing in
// for a formal parameter while a function summary is computed.
type provenanceRecord struct {
	schemas.Provenance
	// Param is the parameter position for markers and -1 for real sources.
	Param int
}

func (p provenanceRecord) isMarker() bool { return p.Param >= 0 }

// TaintLabel is the set of provenances that reach a value. The zero value is
// clean. Labels only grow, which makes propagation monotone.
type TaintLabel struct {
	ids map[ProvenanceID]struct{}
}

// IsTainted reports whether any provenance reaches the value.
func (t TaintLabel) IsTainted() bool { return len(t.ids) > 0 }

// Has reports whether the provenance is part of the label.
func (t TaintLabel) Has(id ProvenanceID) bool {
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of provenances in the label.
func (t TaintLabel) Len() int { return len(t.ids) }

// IDs returns the provenance ids in ascending order.
func (t TaintLabel) IDs() []ProvenanceID {
	out := make([]ProvenanceID, 0, len(t.ids))
	for id := range t.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// add inserts one provenance and reports whether the label changed.
func (t *TaintLabel) add(id ProvenanceID) bool {
	if t.ids == nil {
		t.ids = make(map[ProvenanceID]struct{})
	}
	if _, ok := t.ids[id]; ok {
		return false
	}
	t.ids[id] = struct{}{}
	return true
}

// union joins other into t and reports whether t changed.
func (t *TaintLabel) union(other TaintLabel) bool {
	changed := false
	for id := range other.ids {
		if t.add(id) {
			changed = true
		}
	}
	return changed
}

// sortProvenances orders provenances by location then function and drops
// duplicates.
func sortProvenances(in []schemas.Provenance) []schemas.Provenance {
	if len(in) == 0 {
		return nil
	}
	out := make([]schemas.Provenance, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceLocation != out[j].SourceLocation {
			return out[i].SourceLocation.Less(out[j].SourceLocation)
		}
		return out[i].SourceFunction < out[j].SourceFunction
	})
	uniq := out[:1]
	for _, p := range out[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	return uniq
}
