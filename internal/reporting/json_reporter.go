// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// JSONReporter streams each envelope as an indented JSON document.
type JSONReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
	enc    *jsoniter.Encoder
}

// NewJSONReporter takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return &JSONReporter{writer: writer, enc: enc}
}

func (r *JSONReporter) Write(result *schemas.ResultEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(withEmptyFindings(result)); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}

// withEmptyFindings makes a clean scan encode as "findings": [] rather than null.
func withEmptyFindings(result *schemas.ResultEnvelope) *schemas.ResultEnvelope {
	if result.Findings != nil {
		return result
	}
	out := *result
	out.Findings = []schemas.Finding{}
	return &out
}
