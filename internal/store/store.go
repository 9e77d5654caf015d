// Package store persists scan results in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// ErrScanNotFound is returned when no scan row matches the requested ID.
var ErrScanNotFound = errors.New("scan not found")

// Schema creates the tables used by the store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS scans (
    id         TEXT PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    targets    TEXT[] NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS findings (
    id                 TEXT PRIMARY KEY,
    scan_id            TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
    sink_file          TEXT NOT NULL,
    sink_line          INTEGER NOT NULL,
    sink_column        INTEGER NOT NULL,
    sink_function      TEXT NOT NULL,
    argument_index     INTEGER NOT NULL,
    enclosing_function TEXT NOT NULL DEFAULT '',
    provenances        JSONB NOT NULL,
    severity           TEXT NOT NULL,
    message            TEXT NOT NULL,
    cwe                TEXT[] NOT NULL DEFAULT '{}',
    observed_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS analysis_errors (
    scan_id  TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
    file     TEXT NOT NULL,
    function TEXT NOT NULL DEFAULT '',
    kind     TEXT NOT NULL,
    message  TEXT NOT NULL
);
`

const (
	sqlInsertScan = `
        INSERT INTO scans (id, started_at, targets)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET
            started_at = EXCLUDED.started_at,
            targets = EXCLUDED.targets;
    `
	sqlInsertError = `
        INSERT INTO analysis_errors (scan_id, file, function, kind, message)
        VALUES ($1, $2, $3, $4, $5);
    `
	sqlSelectScan = `
        SELECT started_at, targets
        FROM scans
        WHERE id = $1;
    `
	sqlSelectFindings = `
        SELECT id, sink_file, sink_line, sink_column, sink_function, argument_index,
               enclosing_function, provenances, severity, message, cwe, observed_at
        FROM findings
        WHERE scan_id = $1
        ORDER BY sink_file, sink_line, sink_column, sink_function;
    `
	sqlSelectErrors = `
        SELECT file, function, kind, message
        FROM analysis_errors
        WHERE scan_id = $1
        ORDER BY file, function;
    `
)

var findingColumns = []string{
	"id", "scan_id", "sink_file", "sink_line", "sink_column", "sink_function", "argument_index",
	"enclosing_function", "provenances", "severity", "message", "cwe", "observed_at",
}

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL repository for scan results.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("database pool cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// PersistData writes the scan row, its findings and its analysis errors in
// one transaction.
func (s *Store) PersistData(ctx context.Context, envelope *schemas.ResultEnvelope) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	targets := envelope.Targets
	if targets == nil {
		targets = []string{}
	}
	if _, err := tx.Exec(ctx, sqlInsertScan, envelope.ScanID, envelope.Timestamp.UTC(), targets); err != nil {
		return fmt.Errorf("failed to insert scan %s: %w", envelope.ScanID, err)
	}

	if len(envelope.Findings) > 0 {
		if err := s.persistFindings(ctx, tx, envelope.ScanID, envelope.Findings); err != nil {
			return err
		}
	}
	if len(envelope.Errors) > 0 {
		if err := s.persistErrors(ctx, tx, envelope.ScanID, envelope.Errors); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Persisted scan results",
		zap.String("scan_id", envelope.ScanID),
		zap.Int("findings", len(envelope.Findings)),
		zap.Int("errors", len(envelope.Errors)),
	)
	return nil
}

func (s *Store) persistFindings(ctx context.Context, tx pgx.Tx, scanID string, findings []schemas.Finding) error {
	rows := make([][]interface{}, len(findings))
	for i, f := range findings {
		provenances := f.SourceProvenances
		if provenances == nil {
			provenances = []schemas.Provenance{}
		}
		encoded, err := jsoniter.Marshal(provenances)
		if err != nil {
			return fmt.Errorf("failed to encode provenances of finding %s: %w", f.ID, err)
		}
		cwe := f.CWE
		if cwe == nil {
			cwe = []string{}
		}
		rows[i] = []interface{}{
			f.ID, scanID,
			f.SinkLocation.File, f.SinkLocation.Line, f.SinkLocation.Column,
			f.SinkFunction, f.ArgumentIndex, f.EnclosingFunction,
			encoded, string(f.Severity), f.Message, cwe,
			f.ObservedAt.UTC(),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"findings"}, findingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy findings: %w", err)
	}
	if int(copyCount) != len(findings) {
		return fmt.Errorf("mismatch in copied findings count: expected %d, got %d", len(findings), copyCount)
	}
	return nil
}

func (s *Store) persistErrors(ctx context.Context, tx pgx.Tx, scanID string, errs []schemas.AnalysisError) error {
	batch := &pgx.Batch{}
	for _, e := range errs {
		batch.Queue(sqlInsertError, scanID, e.File, e.Function, e.Kind, e.Message)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	for i := range errs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert analysis error for %s (index %d): %w", errs[i].File, i, err)
		}
	}
	return nil
}

// GetFindingsByScanID returns the findings of a scan ordered by sink location.
func (s *Store) GetFindingsByScanID(ctx context.Context, scanID string) ([]schemas.Finding, error) {
	rows, err := s.pool.Query(ctx, sqlSelectFindings, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []schemas.Finding
	for rows.Next() {
		var (
			f           schemas.Finding
			severity    string
			provenances []byte
		)
		err := rows.Scan(
			&f.ID, &f.SinkLocation.File, &f.SinkLocation.Line, &f.SinkLocation.Column,
			&f.SinkFunction, &f.ArgumentIndex, &f.EnclosingFunction,
			&provenances, &severity, &f.Message, &f.CWE, &f.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		if err := jsoniter.Unmarshal(provenances, &f.SourceProvenances); err != nil {
			return nil, fmt.Errorf("failed to decode provenances of finding %s: %w", f.ID, err)
		}
		f.Severity = schemas.Severity(severity)
		f.ScanID = scanID
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return findings, nil
}

// GetErrorsByScanID returns the functions a scan could not analyze.
func (s *Store) GetErrorsByScanID(ctx context.Context, scanID string) ([]schemas.AnalysisError, error) {
	rows, err := s.pool.Query(ctx, sqlSelectErrors, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis errors: %w", err)
	}
	defer rows.Close()

	var out []schemas.AnalysisError
	for rows.Next() {
		var e schemas.AnalysisError
		if err := rows.Scan(&e.File, &e.Function, &e.Kind, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan analysis error row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// LoadEnvelope rebuilds the result envelope of a persisted scan.
func (s *Store) LoadEnvelope(ctx context.Context, scanID string) (*schemas.ResultEnvelope, error) {
	var (
		startedAt time.Time
		targets   []string
	)
	err := s.pool.QueryRow(ctx, sqlSelectScan, scanID).Scan(&startedAt, &targets)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	findings, err := s.GetFindingsByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	errs, err := s.GetErrorsByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	return &schemas.ResultEnvelope{
		ScanID:    scanID,
		Timestamp: startedAt.UTC(),
		Targets:   targets,
		Findings:  findings,
		Errors:    errs,
	}, nil
}
