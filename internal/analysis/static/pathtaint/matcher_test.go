// Filename: pathtaint/matcher_test.go
package pathtaint

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

func prov(line int, name string) schemas.Provenance {
	return schemas.Provenance{SourceLocation: at(line), SourceFunction: name}
}

func candidate(line int, sink string, valueKey string, provs ...schemas.Provenance) Candidate {
	return Candidate{
		Finding: Finding{
			SinkLocation: at(line),
			SinkFunction: sink,
			Enclosing:    "main",
			Provenances:  provs,
		},
		valueKey: valueKey,
	}
}

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []Candidate
		want []Finding
	}{
		{
			name: "empty",
		},
		{
			name: "same value at two call sites merges at the first",
			in: []Candidate{
				candidate(12, "fopen", "v7", prov(10, "getenv")),
				candidate(11, "fopen", "v7", prov(10, "getenv")),
			},
			want: []Finding{
				{SinkLocation: at(11), SinkFunction: "fopen", Enclosing: "main", Provenances: []schemas.Provenance{prov(10, "getenv")}},
			},
		},
		{
			name: "different values stay separate",
			in: []Candidate{
				candidate(11, "fopen", "v7", prov(10, "getenv")),
				candidate(21, "fopen", "v9", prov(20, "getenv")),
			},
			want: []Finding{
				{SinkLocation: at(11), SinkFunction: "fopen", Enclosing: "main", Provenances: []schemas.Provenance{prov(10, "getenv")}},
				{SinkLocation: at(21), SinkFunction: "fopen", Enclosing: "main", Provenances: []schemas.Provenance{prov(20, "getenv")}},
			},
		},
		{
			name: "same location unions provenances",
			in: []Candidate{
				candidate(30, "fopen", "", prov(5, "argv[1]")),
				candidate(30, "fopen", "", prov(3, "getenv")),
				candidate(30, "fopen", "", prov(5, "argv[1]")),
			},
			want: []Finding{
				{SinkLocation: at(30), SinkFunction: "fopen", Enclosing: "main", Provenances: []schemas.Provenance{prov(3, "getenv"), prov(5, "argv[1]")}},
			},
		},
		{
			name: "rules chain transitively",
			in: []Candidate{
				candidate(40, "fopen", "a", prov(1, "read")),
				candidate(41, "fopen", "a", prov(1, "read")),
				candidate(41, "fopen", "", prov(2, "argv[1]")),
			},
			want: []Finding{
				{SinkLocation: at(40), SinkFunction: "fopen", Enclosing: "main", Provenances: []schemas.Provenance{prov(1, "read"), prov(2, "argv[1]")}},
			},
		},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Deduplicate(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Deduplicate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectCandidates_SkipsMarkersAndCleanSites(t *testing.T) {
	t.Parallel()
	f := fn("f", []ir.Param{param("name#1", 1)},
		exprStmt(call(2, "fopen", ident(2, "name#1"), str(2, `"r"`))),
		exprStmt(call(3, "fopen", str(3, `"/etc/passwd"`), str(3, `"r"`))),
		exprStmt(call(4, "fopen", call(4, "getenv", str(4, `"X"`)), str(4, `"r"`))),
	)
	g, sol := solve(t, f, nil)
	require.Len(t, g.Sinks, 3)

	got := CollectCandidates(g, sol)
	require.Len(t, got, 1, "only the getenv site carries real provenance")
	assert.Equal(t, at(4), got[0].SinkLocation)
	assert.Equal(t, "f", got[0].Enclosing)
	assert.NotEmpty(t, got[0].valueKey)
	if diff := cmp.Diff([]schemas.Provenance{prov(4, "getenv")}, got[0].Provenances); diff != "" {
		t.Errorf("provenance mismatch (-want +got):\n%s", diff)
	}
}
