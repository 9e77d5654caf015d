package schemas

import (
	"fmt"
	"time"
)

// -- Finding Schemas --

// Severity represents the severity level of a finding. The values are lowercase
// to align with database ENUMs.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// CWE022 is the weakness identifier attached to every path taint finding.
const CWE022 = "CWE-22"

// Location pins a node of the analyzed program to a file, line and column.
// Lines and columns are 1-based.
type Location struct {
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

// String renders the location as file:line:column.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Less orders locations by file, then line, then column.
func (l Location) Less(other Location) bool {
	if l.File != other.File {
		return l.File < other.File
	}
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Column < other.Column
}

// Provenance names one untrusted origin that reaches a sink.
type Provenance struct {
	SourceLocation Location `json:"source_location" yaml:"source_location"`
	// SourceFunction is the catalog name of the source call (e.g. "getenv"),
	// or the rendered parameter read (e.g. "argv[1]").
	SourceFunction string `json:"source_function" yaml:"source_function"`
}

// Finding is one deduplicated flow of untrusted data into a path argument.
// It maps directly to the `findings` table in the database.
type Finding struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	ScanID string `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`

	SinkLocation      Location     `json:"sink_location" yaml:"sink_location"`
	SinkFunction      string       `json:"sink_function" yaml:"sink_function"`
	ArgumentIndex     int          `json:"argument_index" yaml:"argument_index"`
	SourceProvenances []Provenance `json:"source_provenances" yaml:"source_provenances"`

	// EnclosingFunction is the C function that contains the sink call.
	EnclosingFunction string   `json:"enclosing_function,omitempty" yaml:"enclosing_function,omitempty"`
	Severity          Severity `json:"severity" yaml:"severity"`
	Message           string   `json:"message" yaml:"message"`
	CWE               []string `json:"cwe,omitempty" yaml:"cwe,omitempty"`

	ObservedAt time.Time `json:"observed_at,omitempty" yaml:"observed_at,omitempty"`
}
