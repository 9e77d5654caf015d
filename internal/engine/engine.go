// Package engine drives a scan: it parses the discovered files in parallel,
// runs the registered analyzers over the whole set of translation units and
// gathers everything into one result envelope.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/analysis/core"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
	"github.com/xkilldash9x/pathtaint/internal/config"
)

// -- Interfaces for Dependency Inversion --

// Parser turns a file into a translation unit.
type Parser interface {
	ParseFile(ctx context.Context, path string) (*ir.TranslationUnit, error)
}

// Store persists scan results.
type Store interface {
	PersistData(ctx context.Context, data *schemas.ResultEnvelope) error
}

// ProgressFunc is called once per file after it has been parsed, from any
// goroutine, with calls serialized.
type ProgressFunc func(done, total int, file string)

// Engine runs scans. A nil store disables persistence.
type Engine struct {
	cfg       config.Interface
	logger    *zap.Logger
	parser    Parser
	analyzers []core.Analyzer
	store     Store
	progress  ProgressFunc
}

// New creates an Engine.
func New(cfg config.Interface, logger *zap.Logger, parser Parser, store Store, analyzers ...core.Analyzer) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if parser == nil {
		return nil, errors.New("parser cannot be nil")
	}
	if len(analyzers) == 0 {
		return nil, errors.New("at least one analyzer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "scan_engine")),
		parser:    parser,
		analyzers: analyzers,
		store:     store,
	}, nil
}

// OnProgress installs a progress callback.
func (e *Engine) OnProgress(fn ProgressFunc) {
	e.progress = fn
}

// Run scans files. targets is recorded on the envelope as given on the command
// line. Files that fail to parse become analysis errors; only cancellation of
// ctx, an analyzer failure or a persistence failure fails the run.
func (e *Engine) Run(ctx context.Context, targets, files []string) (*schemas.ResultEnvelope, error) {
	start := time.Now()
	scanID := uuid.NewString()
	logger := e.logger.With(zap.String("scan_id", scanID))
	logger.Info("Starting scan", zap.Int("files", len(files)))

	units, parseErrs, err := e.parseAll(ctx, logger, files)
	if err != nil {
		return nil, err
	}

	ac := core.NewAnalysisContext(scanID, units, logger)
	for _, pe := range parseErrs {
		ac.AddError(pe)
	}

	var analyzeErr error
	for _, a := range e.analyzers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("Running analyzer", zap.String("analyzer", a.Name()))
		if err := a.Analyze(ctx, ac); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			analyzeErr = multierr.Append(analyzeErr, fmt.Errorf("analyzer %s: %w", a.Name(), err))
		}
	}
	if analyzeErr != nil {
		return nil, analyzeErr
	}

	findings, analysisErrs := ac.Snapshot()
	sortFindings(findings)
	sortErrors(analysisErrs)
	envelope := &schemas.ResultEnvelope{
		ScanID:    scanID,
		Timestamp: start.UTC(),
		Targets:   targets,
		Findings:  findings,
		Errors:    analysisErrs,
	}

	if e.store != nil {
		if err := e.store.PersistData(ctx, envelope); err != nil {
			return nil, fmt.Errorf("failed to persist scan %s: %w", scanID, err)
		}
	}

	logger.Info("Scan complete",
		zap.Int("files", len(files)),
		zap.Int("findings", len(findings)),
		zap.Int("errors", len(analysisErrs)),
		zap.Duration("duration", time.Since(start)),
	)
	return envelope, nil
}

// parseAll parses files in parallel under the per-file timeout. Units keep
// the order of files.
func (e *Engine) parseAll(ctx context.Context, logger *zap.Logger, files []string) ([]*ir.TranslationUnit, []schemas.AnalysisError, error) {
	engineCfg := e.cfg.Engine()
	concurrency := engineCfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	units := make([]*ir.TranslationUnit, len(files))
	failures := make([]*schemas.AnalysisError, len(files))

	var mu sync.Mutex
	done := 0
	report := func(file string) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if e.progress != nil {
			e.progress(done, len(files), file)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			defer report(file)
			if err := gCtx.Err(); err != nil {
				return err
			}
			fctx := gCtx
			if engineCfg.FileTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(gCtx, engineCfg.FileTimeout)
				defer cancel()
			}
			tu, err := e.parser.ParseFile(fctx, file)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if errors.Is(fctx.Err(), context.DeadlineExceeded) {
					err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
				}
				failure := classify(file, err)
				logger.Warn("Skipping file", zap.String("file", file), zap.String("kind", failure.Kind), zap.Error(err))
				failures[i] = &failure
				return nil
			}
			units[i] = tu
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var parsed []*ir.TranslationUnit
	var errs []schemas.AnalysisError
	for i := range files {
		if units[i] != nil {
			parsed = append(parsed, units[i])
		}
		if failures[i] != nil {
			errs = append(errs, *failures[i])
		}
	}
	return parsed, errs, nil
}

func classify(file string, err error) schemas.AnalysisError {
	kind := schemas.ErrorKindParse
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = schemas.ErrorKindTimeout
	case errors.As(err, &pathErr):
		kind = schemas.ErrorKindIO
	}
	return schemas.AnalysisError{File: file, Kind: kind, Message: err.Error()}
}

func sortFindings(findings []schemas.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.SinkLocation != b.SinkLocation {
			return a.SinkLocation.Less(b.SinkLocation)
		}
		if a.SinkFunction != b.SinkFunction {
			return a.SinkFunction < b.SinkFunction
		}
		return a.ArgumentIndex < b.ArgumentIndex
	})
}

func sortErrors(errs []schemas.AnalysisError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].File != errs[j].File {
			return errs[i].File < errs[j].File
		}
		return errs[i].Function < errs[j].Function
	})
}
