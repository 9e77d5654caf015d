// Filename: pathtaint/analyzer_test.go
package pathtaint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/analysis/core"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/catalog"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

func newTestAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(zaptest.NewLogger(t), catalog.Default(), opts)
	require.NoError(t, err)
	return a
}

func TestNewAnalyzer_RequiresCatalog(t *testing.T) {
	t.Parallel()
	_, err := NewAnalyzer(zap.NewNop(), nil, Options{})
	require.Error(t, err)

	a, err := NewAnalyzer(nil, catalog.Default(), Options{})
	require.NoError(t, err)
	assert.Equal(t, AnalyzerName, a.Name())
	assert.Equal(t, core.TypeInterprocedural, a.Type())
	assert.Equal(t, DefaultOptions(), a.opts, "zero options take defaults")
}

func TestAnalyzeUnits_Fixture(t *testing.T) {
	t.Parallel()
	fx := loadFixture(t, "testdata/tainted_path.c")
	require.Zero(t, fx.unit.ParseErrors)
	require.NotNil(t, fx.unit.Function("main"))
	require.NotNil(t, fx.unit.Function("readFile"))

	a := newTestAnalyzer(t, Options{})
	res, err := a.AnalyzeUnits(context.Background(), []*ir.TranslationUnit{fx.unit})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Rounds, "the readFile summary is used in round two and is stable after it")

	sink := func(marker string) schemas.Location { return fx.pos(t, marker, "fopen(") }
	one := func(p schemas.Provenance) []schemas.Provenance { return []schemas.Provenance{p} }

	want := []Finding{
		{
			SinkLocation: sink("bad:append_through_alias"),
			SinkFunction: "fopen",
			Enclosing:    "main",
			Provenances:  one(fx.prov(t, "src:user_and_file", "argv[2]", "argv[2]")),
		},
		{
			SinkLocation: sink("bad:argv_direct"),
			SinkFunction: "fopen",
			Enclosing:    "main",
			Provenances:  one(fx.prov(t, "src:argv_direct", "argv[1]", "argv[1]")),
		},
		{
			SinkLocation: sink("bad:scanf_array"),
			SinkFunction: "fopen",
			Enclosing:    "main",
			Provenances:  one(fx.prov(t, "src:scanf_array", "scanf(", "scanf")),
		},
		{
			SinkLocation: sink("bad:scanf_heap"),
			SinkFunction: "fopen",
			Enclosing:    "main",
			Provenances:  one(fx.prov(t, "src:scanf_heap", "scanf(", "scanf")),
		},
		{
			SinkLocation: sink("bad:getenv"),
			SinkFunction: "fopen",
			Enclosing:    "main",
			Provenances:  one(fx.prov(t, "src:getenv", "getenv(", "getenv")),
		},
		{
			SinkLocation: sink("bad:bounded_copy"),
			SinkFunction: "fopen",
			Enclosing:    "main",
			Provenances:  one(fx.prov(t, "src:bounded_copy", "getenv(", "getenv")),
		},
		{
			SinkLocation: sink("bad:double_read"),
			SinkFunction: "fopen",
			Enclosing:    "main",
			Provenances: []schemas.Provenance{
				fx.prov(t, "src:double_read_1", "read(", "read"),
				fx.prov(t, "src:double_read_2", "read(", "read"),
			},
		},
		{
			SinkLocation: sink("bad:interprocedural"),
			SinkFunction: "fopen",
			Enclosing:    "readFile",
			Provenances:  one(fx.prov(t, "src:interprocedural", "argv[1]", "argv[1]")),
		},
	}
	if diff := cmp.Diff(want, res.Findings); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}

	for _, f := range res.Findings {
		assert.NotEqual(t, sink("dup:bounded_copy"), f.SinkLocation, "the repeated sink must not be reported")
		assert.NotEqual(t, sink("good:fixed_suffix"), f.SinkLocation)
		assert.NotEqual(t, sink("good:numeric_parse"), f.SinkLocation)
	}
}

func TestAnalyzeUnits_IsDeterministic(t *testing.T) {
	t.Parallel()
	fx := loadFixture(t, "testdata/tainted_path.c")
	a := newTestAnalyzer(t, Options{Concurrency: 4})

	first, err := a.AnalyzeUnits(context.Background(), []*ir.TranslationUnit{fx.unit})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.AnalyzeUnits(context.Background(), []*ir.TranslationUnit{fx.unit})
		require.NoError(t, err)
		if diff := cmp.Diff(first.Findings, again.Findings); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestAnalyzeUnits_LoopsAndIterationCap(t *testing.T) {
	t.Parallel()
	fx := loadFixture(t, "testdata/loops.c")
	sink := func(marker string) schemas.Location { return fx.pos(t, marker, "fopen(") }

	t.Run("default cap finds every flow", func(t *testing.T) {
		t.Parallel()
		res, err := newTestAnalyzer(t, Options{}).AnalyzeUnits(context.Background(), []*ir.TranslationUnit{fx.unit})
		require.NoError(t, err)
		assert.Empty(t, res.Errors)

		var locations []schemas.Location
		for _, f := range res.Findings {
			locations = append(locations, f.SinkLocation)
		}
		assert.Equal(t, []schemas.Location{sink("bad:rotate"), sink("bad:straight"), sink("bad:branches")}, locations)
		assert.Equal(t, []schemas.Provenance{fx.prov(t, "src:pick", "getenv(", "getenv")}, res.Findings[2].Provenances,
			"the source inside pick is reported through its summary")
	})

	t.Run("cap of two times out only the loop", func(t *testing.T) {
		t.Parallel()
		res, err := newTestAnalyzer(t, Options{MaxIterations: 2}).AnalyzeUnits(context.Background(), []*ir.TranslationUnit{fx.unit})
		require.NoError(t, err, "a per-function timeout must not fail the run")

		require.Len(t, res.Errors, 1)
		assert.Equal(t, "rotate", res.Errors[0].Function)
		assert.True(t, errors.Is(res.Errors[0], ErrAnalysisTimeout))
		assert.True(t, errors.Is(res.Err(), ErrAnalysisTimeout))

		for _, f := range res.Findings {
			assert.NotEqual(t, "rotate", f.Enclosing)
		}
		assert.Len(t, res.Findings, 2)
	})

	t.Run("cap of one times out everything", func(t *testing.T) {
		t.Parallel()
		res, err := newTestAnalyzer(t, Options{MaxIterations: 1}).AnalyzeUnits(context.Background(), []*ir.TranslationUnit{fx.unit})
		require.NoError(t, err)
		assert.Empty(t, res.Findings)
		assert.NotEmpty(t, res.Errors)
	})
}

func TestAnalyzeUnits_ControlAndAliasFlows(t *testing.T) {
	t.Parallel()
	fx := loadFixture(t, "testdata/flows.c")
	res, err := newTestAnalyzer(t, Options{}).AnalyzeUnits(context.Background(), []*ir.TranslationUnit{fx.unit})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	type want struct {
		enclosing string
		sink      schemas.Location
		function  string
		argument  int
		source    schemas.Provenance
	}
	wants := []want{
		{"branch_alias", fx.pos(t, "bad:alias", "fopen("), "fopen", 0, fx.prov(t, "src:alias", "getenv(", "getenv")},
		{"fall_through", fx.pos(t, "bad:fall", "fopen("), "fopen", 0, fx.prov(t, "src:fall", "getenv(", "getenv")},
		{"global_loop", fx.pos(t, "bad:global", "fopen("), "fopen", 0, fx.prov(t, "src:global", "getenv(", "getenv")},
		{"second_arg", fx.pos(t, "bad:rename", "rename("), "rename", 1, fx.prov(t, "bad:rename", "getenv(", "getenv")},
		{"resolved", fx.pos(t, "bad:realpath", "realpath("), "realpath", 0, fx.prov(t, "bad:realpath", "getenv(", "getenv")},
		{"resolved", fx.pos(t, "bad:unlink", "unlink("), "unlink", 0, fx.prov(t, "bad:realpath", "getenv(", "getenv")},
	}
	require.Len(t, res.Findings, len(wants))
	for i, w := range wants {
		f := res.Findings[i]
		assert.Equal(t, w.enclosing, f.Enclosing)
		assert.Equal(t, w.sink, f.SinkLocation, w.enclosing)
		assert.Equal(t, w.function, f.SinkFunction, w.enclosing)
		assert.Equal(t, w.argument, f.ArgumentIndex, w.enclosing)
		assert.Equal(t, []schemas.Provenance{w.source}, f.Provenances, w.enclosing)
	}
	for _, f := range res.Findings {
		assert.NotEqual(t, "fall_break", f.Enclosing, "a break keeps the case from running on")
	}
}

func TestAnalyzeUnits_NoFunctions(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, Options{})
	_, err := a.AnalyzeUnits(context.Background(), []*ir.TranslationUnit{{File: "empty.h"}, nil})
	assert.ErrorIs(t, err, ErrNoFunctions)
}

func TestAnalyzeUnits_CancelledContextIsFatal(t *testing.T) {
	t.Parallel()
	fx := loadFixture(t, "testdata/tainted_path.c")
	a := newTestAnalyzer(t, Options{Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.AnalyzeUnits(ctx, []*ir.TranslationUnit{fx.unit})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_FillsAnalysisContext(t *testing.T) {
	t.Parallel()
	fx := loadFixture(t, "testdata/tainted_path.c")
	observed, logs := observer.New(zapcore.InfoLevel)
	a, err := NewAnalyzer(zap.New(observed), catalog.Default(), Options{FunctionTimeout: time.Minute})
	require.NoError(t, err)

	ac := newAnalysisContext("scan-42", fx.unit)
	require.NoError(t, a.Analyze(context.Background(), ac))

	findings, errs := ac.Snapshot()
	assert.Empty(t, errs)
	require.Len(t, findings, 8)
	for _, f := range findings {
		assert.Equal(t, "scan-42", f.ScanID)
		assert.Equal(t, schemas.SeverityHigh, f.Severity)
		assert.Equal(t, []string{schemas.CWE022}, f.CWE)
		assert.NotEmpty(t, f.ID)
	}

	detected := logs.FilterMessage("Taint flow detected").All()
	require.Len(t, detected, 8)
	fields := detected[0].ContextMap()
	assert.Equal(t, "fopen", fields["sink"])
	assert.Contains(t, fields["source"], "argv[2]")
}

func TestAnalyze_RecordsTimeouts(t *testing.T) {
	t.Parallel()
	fx := loadFixture(t, "testdata/loops.c")
	a := newTestAnalyzer(t, Options{MaxIterations: 2})

	ac := newAnalysisContext("scan", fx.unit)
	require.NoError(t, a.Analyze(context.Background(), ac))

	_, errs := ac.Snapshot()
	require.Len(t, errs, 1)
	assert.Equal(t, schemas.ErrorKindTimeout, errs[0].Kind)
	assert.Equal(t, "rotate", errs[0].Function)
	assert.Equal(t, "testdata/loops.c", errs[0].File)
}

func newAnalysisContext(scanID string, units ...*ir.TranslationUnit) *core.AnalysisContext {
	return core.NewAnalysisContext(scanID, units, zap.NewNop())
}
