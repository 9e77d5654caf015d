// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// Supported output formats.
const (
	FormatSARIF = "sarif"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatText  = "text"
)

// Formats lists the accepted --format values.
var Formats = []string{FormatSARIF, FormatJSON, FormatYAML, FormatText}

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write processes a single result envelope.
	Write(result *schemas.ResultEnvelope) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// NopCloser adapts w for the reporter constructors when the caller keeps
// ownership of the stream.
func NopCloser(w io.Writer) io.WriteCloser {
	return &nopWriteCloser{w}
}

// New creates a reporter for format writing to outputPath, or to stdout when
// the path is empty or "stdout".
func New(format, outputPath, toolVersion string) (Reporter, error) {
	switch format {
	case FormatSARIF, FormatJSON, FormatYAML, FormatText:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"
	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	// Each reporter takes ownership of the writer.
	switch format {
	case FormatSARIF:
		return NewSARIFReporter(writer, toolVersion), nil
	case FormatJSON:
		return NewJSONReporter(writer), nil
	case FormatYAML:
		return NewYAMLReporter(writer), nil
	default:
		return NewTextReporter(writer, isStdOut && !color.NoColor), nil
	}
}
