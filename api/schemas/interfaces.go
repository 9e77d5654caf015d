package schemas

import "context"

// -- Store Interface --

// Store persists scan results so they can be re-rendered later without
// re-running the analysis.
type Store interface {
	// EnsureSchema creates the tables if they do not exist.
	EnsureSchema(ctx context.Context) error
	// PersistData saves a scan with its findings and errors.
	PersistData(ctx context.Context, data *ResultEnvelope) error
	// GetFindingsByScanID retrieves all findings associated with a specific scan ID.
	GetFindingsByScanID(ctx context.Context, scanID string) ([]Finding, error)
	// LoadEnvelope rebuilds the envelope of a persisted scan.
	LoadEnvelope(ctx context.Context, scanID string) (*ResultEnvelope, error)
}
