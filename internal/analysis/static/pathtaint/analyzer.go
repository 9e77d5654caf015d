// Filename: pathtaint/analyzer.go
// Package pathtaint finds C path-consuming calls (fopen and friends) whose
// path argument derives from untrusted input without passing through a
// sanitizer. Each function is lowered into a dataflow graph, taint is
// propagated to a fixpoint, and tainted sink arguments become findings.
// Calls between analyzed functions are resolved with summaries computed in
// rounds until they stabilize.
package pathtaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/analysis/core"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/catalog"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

const (
	AnalyzerName        = "path_taint"
	analyzerDescription = "Tracks untrusted data into path-consuming calls (CWE-22)."

	DefaultFunctionTimeout  = 10 * time.Second
	DefaultMaxSummaryRounds = 8
	DefaultConcurrency      = 8
)

// ErrNoFunctions is returned when the units handed to the analyzer contain no
// function bodies.
var ErrNoFunctions = errors.New("no functions to analyze")

// Options tunes the analysis. Zero fields take their defaults.
type Options struct {
	MaxIterations    int
	FunctionTimeout  time.Duration
	MaxSummaryRounds int
	Concurrency      int
}

// DefaultOptions returns the built-in limits.
func DefaultOptions() Options {
	return Options{
		MaxIterations:    DefaultMaxIterations,
		FunctionTimeout:  DefaultFunctionTimeout,
		MaxSummaryRounds: DefaultMaxSummaryRounds,
		Concurrency:      DefaultConcurrency,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.FunctionTimeout <= 0 {
		o.FunctionTimeout = d.FunctionTimeout
	}
	if o.MaxSummaryRounds <= 0 {
		o.MaxSummaryRounds = d.MaxSummaryRounds
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// Analyzer is the path traversal taint checker. It is safe for concurrent
// use; the catalog is read-only.
type Analyzer struct {
	*core.BaseAnalyzer
	catalog *catalog.Catalog
	opts    Options
}

// NewAnalyzer creates the checker over a catalog.
func NewAnalyzer(logger *zap.Logger, cat *catalog.Catalog, opts Options) (*Analyzer, error) {
	if cat == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		BaseAnalyzer: core.NewBaseAnalyzer(AnalyzerName, analyzerDescription, core.TypeInterprocedural, logger),
		catalog:      cat,
		opts:         opts.withDefaults(),
	}, nil
}

// Result is the outcome of AnalyzeUnits.
type Result struct {
	Findings []Finding
	// Errors lists functions that were skipped, typically on timeout.
	Errors    []*FunctionError
	Summaries SummarySet
	// Rounds is the number of summary rounds run; Converged is false when the
	// round cap was reached first.
	Rounds    int
	Converged bool
}

// Err combines the per-function errors, or returns nil.
func (r *Result) Err() error {
	var err error
	for _, fe := range r.Errors {
		err = multierr.Append(err, fe)
	}
	return err
}

type job struct {
	file string
	fn   *ir.Function
}

type functionOutput struct {
	summary    *FunctionSummary
	candidates []Candidate
	err        *FunctionError
}

// AnalyzeUnits analyzes every function of every unit. Only cancellation of
// ctx is fatal; functions that time out are reported in Result.Errors.
func (a *Analyzer) AnalyzeUnits(ctx context.Context, units []*ir.TranslationUnit) (*Result, error) {
	var jobs []job
	for _, tu := range units {
		if tu == nil {
			continue
		}
		for _, fn := range tu.Functions {
			if fn != nil {
				jobs = append(jobs, job{file: tu.File, fn: fn})
			}
		}
	}
	if len(jobs) == 0 {
		return nil, ErrNoFunctions
	}

	res := &Result{}
	summaries := SummarySet{}
	var outputs []functionOutput
	for round := 1; round <= a.opts.MaxSummaryRounds; round++ {
		var err error
		outputs, err = a.runRound(ctx, jobs, summaries)
		if err != nil {
			return nil, err
		}
		res.Rounds = round

		next := SummarySet{}
		for _, out := range outputs {
			next.add(out.summary)
		}
		stable := next.Equal(summaries)
		summaries = next
		a.Logger.Debug("Summary round complete",
			zap.Int("round", round),
			zap.Int("summaries", len(next)),
			zap.Bool("stable", stable),
		)
		if stable {
			res.Converged = true
			break
		}
	}
	if !res.Converged {
		a.Logger.Warn("Summary rounds did not converge; results use the last round",
			zap.Int("rounds", res.Rounds))
	}

	var candidates []Candidate
	for _, out := range outputs {
		candidates = append(candidates, out.candidates...)
		if out.err != nil {
			res.Errors = append(res.Errors, out.err)
		}
	}
	res.Findings = Deduplicate(candidates)
	res.Summaries = summaries

	for _, f := range res.Findings {
		a.Logger.Info("Taint flow detected",
			zap.String("source", describeSources(f.Provenances)),
			zap.String("sink", f.SinkFunction),
			zap.String("location", f.SinkLocation.String()),
			zap.String("function", f.Enclosing),
		)
	}
	return res, nil
}

// runRound analyzes all jobs against a fixed summary snapshot.
func (a *Analyzer) runRound(ctx context.Context, jobs []job, summaries SummarySet) ([]functionOutput, error) {
	outputs := make([]functionOutput, len(jobs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			out, err := a.analyzeFunction(gCtx, j, summaries)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

type solved struct {
	out functionOutput
	err error
}

// analyzeFunction runs one function under the wall-clock budget. The solve
// goroutine writes to a buffered channel so it never blocks once abandoned.
func (a *Analyzer) analyzeFunction(ctx context.Context, j job, summaries SummarySet) (functionOutput, error) {
	if err := ctx.Err(); err != nil {
		return functionOutput{}, err
	}
	fctx, cancel := context.WithTimeout(ctx, a.opts.FunctionTimeout)
	defer cancel()

	done := make(chan solved, 1)
	go func() {
		out, err := a.solve(j, summaries)
		done <- solved{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return a.failed(j, r.err), nil
		}
		return r.out, nil
	case <-fctx.Done():
		if err := ctx.Err(); err != nil {
			return functionOutput{}, err
		}
		return a.failed(j, fmt.Errorf("%w: exceeded %s", ErrAnalysisTimeout, a.opts.FunctionTimeout)), nil
	}
}

func (a *Analyzer) failed(j job, err error) functionOutput {
	fe := &FunctionError{File: j.file, Function: j.fn.Name, Err: err}
	a.Logger.Warn("Skipping function",
		zap.String("file", j.file),
		zap.String("function", j.fn.Name),
		zap.Error(err),
	)
	return functionOutput{err: fe}
}

func (a *Analyzer) solve(j job, summaries SummarySet) (functionOutput, error) {
	g := BuildGraph(j.file, j.fn, a.catalog, summaries)
	sol, err := Propagate(g, a.opts.MaxIterations)
	if err != nil {
		return functionOutput{}, err
	}
	return functionOutput{
		summary:    Summarize(g, sol),
		candidates: CollectCandidates(g, sol),
	}, nil
}

// Analyze implements core.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, ac *core.AnalysisContext) error {
	res, err := a.AnalyzeUnits(ctx, ac.Units)
	if errors.Is(err, ErrNoFunctions) {
		a.Logger.Debug("No function bodies in scan; nothing to analyze")
		return nil
	}
	if err != nil {
		return fmt.Errorf("path taint analysis failed: %w", err)
	}
	for _, f := range Emit(res.Findings, ac.ScanID, time.Now().UTC()) {
		ac.AddFinding(f)
	}
	for _, fe := range res.Errors {
		kind := schemas.ErrorKindTimeout
		if !IsTimeout(fe) {
			kind = schemas.ErrorKindAnalysis
		}
		ac.AddError(schemas.AnalysisError{
			File:     fe.File,
			Function: fe.Function,
			Kind:     kind,
			Message:  fe.Err.Error(),
		})
	}
	return nil
}

func describeSources(provs []schemas.Provenance) string {
	parts := make([]string, len(provs))
	for i, p := range provs {
		parts[i] = p.SourceFunction + "@" + p.SourceLocation.String()
	}
	return strings.Join(parts, ", ")
}
