// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/analysis/core"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
	"github.com/xkilldash9x/pathtaint/internal/config"
)

// -- Config Mock --

// MockConfig mocks config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	return m.Called().Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Engine() config.EngineConfig {
	return m.Called().Get(0).(config.EngineConfig)
}

func (m *MockConfig) Catalog() config.CatalogConfig {
	return m.Called().Get(0).(config.CatalogConfig)
}

func (m *MockConfig) Scan() config.ScanConfig {
	return m.Called().Get(0).(config.ScanConfig)
}

// --- Setters ---

func (m *MockConfig) SetScanConfig(sc config.ScanConfig) { m.Called(sc) }
func (m *MockConfig) SetEngineWorkerConcurrency(w int)   { m.Called(w) }
func (m *MockConfig) SetEngineMaxIterations(n int)       { m.Called(n) }

// -- Analyzer Mock --

// MockAnalyzer mocks core.Analyzer.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, analysisCtx *core.AnalysisContext) error {
	return m.Called(ctx, analysisCtx).Error(0)
}

func (m *MockAnalyzer) Name() string        { return m.Called().String(0) }
func (m *MockAnalyzer) Description() string { return m.Called().String(0) }

// Type returns the configured type, or TypeStatic when none was set.
func (m *MockAnalyzer) Type() core.AnalyzerType {
	if t, ok := m.Called().Get(0).(core.AnalyzerType); ok {
		return t
	}
	return core.TypeStatic
}

// -- Parser Mock --

// MockParser mocks the C front-end.
type MockParser struct {
	mock.Mock
}

func (m *MockParser) ParseFile(ctx context.Context, path string) (*ir.TranslationUnit, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ir.TranslationUnit), args.Error(1)
}

// -- Store Mock --

// MockStore mocks schemas.Store.
type MockStore struct {
	mock.Mock
}

// EnsureSchema provides a mock function for schema creation.
func (m *MockStore) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// PersistData provides a mock function for persisting result envelopes.
func (m *MockStore) PersistData(ctx context.Context, data *schemas.ResultEnvelope) error {
	return m.Called(ctx, data).Error(0)
}

// GetFindingsByScanID provides a mock function for retrieving findings.
func (m *MockStore) GetFindingsByScanID(ctx context.Context, scanID string) ([]schemas.Finding, error) {
	args := m.Called(ctx, scanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Finding), args.Error(1)
}

// LoadEnvelope provides a mock function for reloading a persisted scan.
func (m *MockStore) LoadEnvelope(ctx context.Context, scanID string) (*schemas.ResultEnvelope, error) {
	args := m.Called(ctx, scanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ResultEnvelope), args.Error(1)
}
