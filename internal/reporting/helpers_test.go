// internal/reporting/helpers_test.go
package reporting_test

import (
	"bytes"
	"errors"
	"time"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// MockWriteCloser captures output and can simulate I/O errors.
type MockWriteCloser struct {
	Buffer    *bytes.Buffer
	FailWrite bool
	FailClose bool
	Closed    bool
}

func newMockWriter() *MockWriteCloser {
	return &MockWriteCloser{Buffer: new(bytes.Buffer)}
}

func (m *MockWriteCloser) Write(p []byte) (int, error) {
	if m.FailWrite {
		return 0, errors.New("simulated write error")
	}
	return m.Buffer.Write(p)
}

func (m *MockWriteCloser) Close() error {
	m.Closed = true
	if m.FailClose {
		return errors.New("simulated close error")
	}
	return nil
}

func loc(line, col int) schemas.Location {
	return schemas.Location{File: "src/main.c", Line: line, Column: col}
}

// sampleEnvelope holds two fopen findings, one open finding and one skipped
// function.
func sampleEnvelope() *schemas.ResultEnvelope {
	observed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	return &schemas.ResultEnvelope{
		ScanID:    "scan-1",
		Timestamp: observed,
		Targets:   []string{"src"},
		Findings: []schemas.Finding{
			{
				ID:                "f-1",
				ScanID:            "scan-1",
				SinkLocation:      loc(12, 3),
				SinkFunction:      "fopen",
				SourceProvenances: []schemas.Provenance{{SourceLocation: loc(4, 18), SourceFunction: "argv[1]"}},
				EnclosingFunction: "main",
				Severity:          schemas.SeverityHigh,
				Message:           "Argument 0 of fopen is a path derived from untrusted input argv[1] (line 4) without sanitization",
				CWE:               []string{schemas.CWE022},
				ObservedAt:        observed,
			},
			{
				ID:           "f-2",
				ScanID:       "scan-1",
				SinkLocation: loc(20, 5),
				SinkFunction: "fopen",
				SourceProvenances: []schemas.Provenance{
					{SourceLocation: loc(15, 3), SourceFunction: "read"},
					{SourceLocation: loc(16, 3), SourceFunction: "read"},
				},
				Severity: schemas.SeverityHigh,
				Message:  "Argument 0 of fopen is a path derived from untrusted input read (line 15), read (line 16) without sanitization",
				CWE:      []string{schemas.CWE022},
			},
			{
				ID:                "f-3",
				SinkLocation:      loc(31, 9),
				SinkFunction:      "open",
				SourceProvenances: []schemas.Provenance{{SourceLocation: loc(30, 17), SourceFunction: "getenv"}},
				Severity:          schemas.SeverityHigh,
				Message:           "Argument 0 of open is a path derived from untrusted input getenv (line 30) without sanitization",
				CWE:               []string{schemas.CWE022},
			},
		},
		Errors: []schemas.AnalysisError{
			{File: "src/main.c", Function: "rotate", Kind: schemas.ErrorKindTimeout, Message: "analysis timed out"},
		},
	}
}
