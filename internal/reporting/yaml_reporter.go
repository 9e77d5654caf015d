// internal/reporting/yaml_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// YAMLReporter writes one YAML document per envelope.
type YAMLReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
	enc    *yaml.Encoder
}

// NewYAMLReporter takes ownership of writer.
func NewYAMLReporter(writer io.WriteCloser) *YAMLReporter {
	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	return &YAMLReporter{writer: writer, enc: enc}
}

func (r *YAMLReporter) Write(result *schemas.ResultEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(withEmptyFindings(result)); err != nil {
		return fmt.Errorf("failed to encode YAML report: %w", err)
	}
	return nil
}

func (r *YAMLReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	encErr := r.enc.Close()
	closeErr := r.writer.Close()
	if encErr != nil {
		return fmt.Errorf("failed to flush YAML report: %w", encErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
