package schemas

import "time"

// AnalysisError records a function or file that could not be fully analyzed.
// These are reported alongside findings and never abort a scan.
type AnalysisError struct {
	File     string `json:"file" yaml:"file"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
	Kind     string `json:"kind" yaml:"kind"`
	Message  string `json:"message" yaml:"message"`
}

// Analysis error kinds.
const (
	ErrorKindTimeout  = "analysis_timeout"
	ErrorKindParse    = "parse_error"
	ErrorKindIO       = "io_error"
	ErrorKindAnalysis = "analysis_error"
)

// ResultEnvelope is the top level wrapper for all results from a single scan.
type ResultEnvelope struct {
	ScanID    string          `json:"scan_id" yaml:"scan_id"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Targets   []string        `json:"targets" yaml:"targets"`
	Findings  []Finding       `json:"findings" yaml:"findings"`
	Errors    []AnalysisError `json:"errors,omitempty" yaml:"errors,omitempty"`
}
