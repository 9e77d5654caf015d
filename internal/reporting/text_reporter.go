// internal/reporting/text_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// TextReporter prints a compiler-style line per finding followed by its
// sources, and a summary on Close.
type TextReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser

	location *color.Color
	severity *color.Color
	source   *color.Color
	warn     *color.Color

	findings int
	errors   int
}

// NewTextReporter takes ownership of writer. colorize forces ANSI colors on
// or off regardless of terminal detection.
func NewTextReporter(writer io.WriteCloser, colorize bool) *TextReporter {
	r := &TextReporter{
		writer:   writer,
		location: color.New(color.Bold),
		severity: color.New(color.FgRed, color.Bold),
		source:   color.New(color.FgCyan),
		warn:     color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{r.location, r.severity, r.source, r.warn} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func (r *TextReporter) Write(result *schemas.ResultEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range result.Findings {
		if _, err := fmt.Fprintf(r.writer, "%s: %s %s\n",
			r.location.Sprint(f.SinkLocation.String()),
			r.severity.Sprintf("[%s]", f.Severity),
			f.Message,
		); err != nil {
			return fmt.Errorf("failed to write text report: %w", err)
		}
		for _, p := range f.SourceProvenances {
			if _, err := fmt.Fprintf(r.writer, "    from %s at %s\n",
				r.source.Sprint(p.SourceFunction), p.SourceLocation); err != nil {
				return fmt.Errorf("failed to write text report: %w", err)
			}
		}
	}
	for _, e := range result.Errors {
		where := e.File
		if e.Function != "" {
			where += " (" + e.Function + ")"
		}
		if _, err := fmt.Fprintf(r.writer, "%s %s: %s\n", r.warn.Sprint("skipped"), where, e.Message); err != nil {
			return fmt.Errorf("failed to write text report: %w", err)
		}
	}
	r.findings += len(result.Findings)
	r.errors += len(result.Errors)
	return nil
}

func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, werr := fmt.Fprintf(r.writer, "%d finding(s), %d function(s) not analyzed\n", r.findings, r.errors)
	closeErr := r.writer.Close()
	if werr != nil {
		return fmt.Errorf("failed to write text report: %w", werr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
