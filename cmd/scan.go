package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/catalog"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/frontend"
	"github.com/xkilldash9x/pathtaint/internal/config"
	"github.com/xkilldash9x/pathtaint/internal/discovery"
	"github.com/xkilldash9x/pathtaint/internal/engine"
	"github.com/xkilldash9x/pathtaint/internal/observability"
	"github.com/xkilldash9x/pathtaint/internal/reporting"
)

// scanFlags holds the scan options that are not part of the configuration
// file.
type scanFlags struct {
	output         string
	format         string
	gitTracked     bool
	persist        bool
	progress       bool
	skipTestdata   bool
	includeHidden  bool
	irInput        bool
	exclude        []string
	failOnFindings bool
}

// newScanCmd creates the `scan` command.
func newScanCmd(provider storeProvider) *cobra.Command {
	flags := &scanFlags{}

	scanCmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scans C sources for untrusted data reaching path arguments",
		Long: `Collects .c and .h files under the given paths, analyzes every function
for taint flowing from untrusted sources into path-consuming calls and writes
the findings. The scan ID is printed on stderr.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(flags.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			cfg.SetScanConfig(config.ScanConfig{
				Targets:    args,
				Output:     flags.output,
				Format:     flags.format,
				GitTracked: flags.gitTracked,
				Persist:    flags.persist,
				Progress:   flags.progress,
			})
			return runScan(ctx, cmd.ErrOrStderr(), observability.GetLogger(), cfg, flags, provider)
		},
	}

	fs := scanCmd.Flags()
	fs.StringVarP(&flags.output, "output", "o", "", "Output file path. Defaults to stdout.")
	fs.StringVarP(&flags.format, "format", "f", reporting.FormatSARIF, "Report format: sarif, json, yaml or text")
	fs.BoolVar(&flags.gitTracked, "git-tracked", false, "Only scan files tracked at HEAD of the enclosing git repository")
	fs.BoolVar(&flags.persist, "persist", false, "Store the results in PostgreSQL (requires database.url)")
	fs.BoolVar(&flags.progress, "progress", false, "Show a progress bar on stderr while parsing")
	fs.BoolVar(&flags.skipTestdata, "skip-testdata", false, "Skip directories named testdata")
	fs.BoolVar(&flags.includeHidden, "include-hidden", false, "Descend into hidden directories")
	fs.BoolVar(&flags.irInput, "ir", false, "Read JSON translation units written by 'pathtaint ir' instead of C sources")
	fs.StringSliceVar(&flags.exclude, "exclude", nil, "Glob patterns of files or directories to skip")
	fs.BoolVar(&flags.failOnFindings, "fail-on-findings", false, "Exit with status 2 when findings are reported")
	fs.IntP("concurrency", "j", 0, "Number of files parsed and functions analyzed in parallel")
	fs.Int("max-iterations", 0, "Fixpoint iteration cap per function")
	fs.Duration("function-timeout", 0, "Wall-clock budget per function")
	fs.Duration("file-timeout", 0, "Wall-clock budget for parsing one file")
	fs.String("database-url", "", "PostgreSQL connection string (overrides database.url)")
	addCatalogFlags(fs)

	return scanCmd
}

// addCatalogFlags declares the flags that select the catalog.
func addCatalogFlags(fs *pflag.FlagSet) {
	fs.StringSlice("catalog", nil, "Extra YAML catalog files layered over the defaults")
	fs.Bool("no-default-catalog", false, "Use only the --catalog files")
}

// runScan wires discovery, the parser, the analyzer and the optional store
// into an engine run, then writes the report.
func runScan(ctx context.Context, stderr io.Writer, logger *zap.Logger, cfg config.Interface, flags *scanFlags, provider storeProvider) error {
	sc := cfg.Scan()

	opts := discovery.Options{
		GitTracked:    sc.GitTracked,
		SkipTestdata:  flags.skipTestdata,
		IncludeHidden: flags.includeHidden,
		Exclude:       flags.exclude,
	}
	var parser engine.Parser = frontend.NewParser(logger)
	if flags.irInput {
		opts.Extensions = []string{frontend.IRExtension}
		parser = frontend.IRLoader{}
	}

	files, err := discovery.Find(ctx, sc.Targets, opts)
	if err != nil {
		return fmt.Errorf("failed to collect sources: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("No input files found", zap.Strings("targets", sc.Targets))
	}

	cat, err := buildCatalog(cfg.Catalog())
	if err != nil {
		return err
	}
	analyzer, err := pathtaint.NewAnalyzer(logger, cat, analyzerOptions(cfg.Engine()))
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	var resultStore engine.Store
	if sc.Persist {
		storeService, cleanup, err := provider.Create(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		if cleanup != nil {
			defer cleanup()
		}
		if err := storeService.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare database schema: %w", err)
		}
		resultStore = storeService
	}

	eng, err := engine.New(cfg, logger, parser, resultStore, analyzer)
	if err != nil {
		return fmt.Errorf("failed to create scan engine: %w", err)
	}
	if sc.Progress {
		eng.OnProgress(engine.NewProgressBar(stderr))
	}

	envelope, err := eng.Run(ctx, sc.Targets, files)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if err := writeReport(logger, envelope, sc.Output, sc.Format); err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Scan ID: %s\n", envelope.ScanID)
	if flags.failOnFindings && len(envelope.Findings) > 0 {
		return fmt.Errorf("%w: %d", ErrFindingsDetected, len(envelope.Findings))
	}
	return nil
}

func buildCatalog(cc config.CatalogConfig) (*catalog.Catalog, error) {
	cat, err := catalog.Build(!cc.DisableDefaults, cc.Files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

func analyzerOptions(ec config.EngineConfig) pathtaint.Options {
	return pathtaint.Options{
		MaxIterations:    ec.MaxIterations,
		FunctionTimeout:  ec.FunctionTimeout,
		MaxSummaryRounds: ec.MaxSummaryRounds,
		Concurrency:      ec.WorkerConcurrency,
	}
}
