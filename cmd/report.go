// File: cmd/report.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/config"
	"github.com/xkilldash9x/pathtaint/internal/observability"
	"github.com/xkilldash9x/pathtaint/internal/reporting"
	"github.com/xkilldash9x/pathtaint/internal/store"
)

// storeProvider creates a schemas.Store and a cleanup function that releases
// its resources. Tests inject a mock store through it.
type storeProvider interface {
	Create(ctx context.Context, cfg config.Interface) (schemas.Store, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

// NewStoreProvider returns the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the database named by database.url.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (schemas.Store, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (database.url or %s_DATABASE_URL)", config.EnvPrefix)
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// newReportCmd creates the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var scanID string
	var outputPath string
	var format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Renders a persisted scan",
		Long: `Loads the findings and analysis errors of a scan stored with 'scan --persist'
and writes them in the requested format without re-running the analysis.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runReport(ctx, observability.GetLogger(), cfg, scanID, outputPath, format, provider)
		},
	}

	reportCmd.Flags().StringVar(&scanID, "scan-id", "", "The ID of the scan to render (required)")
	_ = reportCmd.MarkFlagRequired("scan-id")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. Defaults to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", reporting.FormatSARIF, "Report format: sarif, json, yaml or text")
	reportCmd.Flags().String("database-url", "", "PostgreSQL connection string (overrides database.url)")

	return reportCmd
}

// runReport loads scanID from the store and writes it.
func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	scanID, outputPath, format string,
	provider storeProvider,
) error {
	logger.Info("Starting report generation", zap.String("scan_id", scanID))

	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	envelope, err := storeService.LoadEnvelope(ctx, scanID)
	if err != nil {
		if errors.Is(err, store.ErrScanNotFound) {
			return fmt.Errorf("no persisted scan with ID %s: %w", scanID, err)
		}
		return fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	return writeReport(logger, envelope, outputPath, format)
}

// writeReport hands the envelope to a reporter for format.
func writeReport(logger *zap.Logger, envelope *schemas.ResultEnvelope, outputPath, format string) (err error) {
	reporter, err := reporting.New(format, outputPath, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if cerr := reporter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finish report: %w", cerr)
		}
	}()

	if err := reporter.Write(envelope); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if outputPath != "" && outputPath != "stdout" {
		logger.Info("Report written", zap.String("path", outputPath), zap.String("format", format))
	}
	return nil
}

func validateFormat(format string) error {
	for _, f := range reporting.Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format %q (want one of %v)", format, reporting.Formats)
}
