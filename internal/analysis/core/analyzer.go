package core

import (
	"context"

	"go.uber.org/zap"
)

// AnalyzerType distinguishes the families of analysis modules.
type AnalyzerType string

const (
	// TypeStatic analyzers inspect source code without executing it.
	TypeStatic AnalyzerType = "STATIC"
	// TypeInterprocedural analyzers need every translation unit of a scan at
	// once, because facts flow across function and file boundaries.
	TypeInterprocedural AnalyzerType = "INTERPROCEDURAL"
)

// Analyzer is the contract between the scan engine and a checker. The engine
// fills an AnalysisContext with parsed units and collects what the analyzer
// adds to it.
type Analyzer interface {
	Name() string
	Description() string
	Type() AnalyzerType
	Analyze(ctx context.Context, analysisCtx *AnalysisContext) error
}

// BaseAnalyzer carries the metadata every analyzer reports. Embed it to get
// the descriptive half of the Analyzer interface.
type BaseAnalyzer struct {
	name         string
	description  string
	analyzerType AnalyzerType
	Logger       *zap.Logger // Named after the analyzer.
}

// NewBaseAnalyzer creates a BaseAnalyzer with a logger named after it.
func NewBaseAnalyzer(name, description string, analyzerType AnalyzerType, logger *zap.Logger) *BaseAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseAnalyzer{
		name:         name,
		description:  description,
		analyzerType: analyzerType,
		Logger:       logger.Named(name),
	}
}

// Name returns the analyzer's name.
func (b *BaseAnalyzer) Name() string {
	return b.name
}

// Description returns the analyzer's description.
func (b *BaseAnalyzer) Description() string {
	return b.description
}

// Type returns the analyzer's type.
func (b *BaseAnalyzer) Type() AnalyzerType {
	return b.analyzerType
}
