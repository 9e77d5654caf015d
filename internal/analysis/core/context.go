// internal/analysis/core/context.go
package core

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

// AnalysisContext is the input and output of one analyzer run. Analyzers may
// add findings and errors from several goroutines.
type AnalysisContext struct {
	ScanID string
	Units  []*ir.TranslationUnit
	Logger *zap.Logger

	mu       sync.Mutex
	Findings []schemas.Finding
	Errors   []schemas.AnalysisError
}

// NewAnalysisContext prepares a context for the given units.
func NewAnalysisContext(scanID string, units []*ir.TranslationUnit, logger *zap.Logger) *AnalysisContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisContext{ScanID: scanID, Units: units, Logger: logger}
}

// AddFinding appends a finding, stamping the scan id when it is missing.
func (ac *AnalysisContext) AddFinding(finding schemas.Finding) {
	if finding.ScanID == "" {
		finding.ScanID = ac.ScanID
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.Findings = append(ac.Findings, finding)
}

// AddError records a non-fatal analysis failure.
func (ac *AnalysisContext) AddError(e schemas.AnalysisError) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.Errors = append(ac.Errors, e)
}

// Snapshot returns copies of the collected findings and errors.
func (ac *AnalysisContext) Snapshot() ([]schemas.Finding, []schemas.AnalysisError) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	findings := make([]schemas.Finding, len(ac.Findings))
	copy(findings, ac.Findings)
	errs := make([]schemas.AnalysisError, len(ac.Errors))
	copy(errs, ac.Errors)
	return findings, errs
}
