// Filename: pathtaint/emitter.go
package pathtaint

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// Emit turns findings into report records. It is a pure transformation: the
// output is ordered by sink location and the record ids are derived from the
// scan id and the finding's content, so the same input always yields the same
// records.
func Emit(findings []Finding, scanID string, observedAt time.Time) []schemas.Finding {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sortFindings(sorted)

	out := make([]schemas.Finding, 0, len(sorted))
	for _, f := range sorted {
		provs := sortProvenances(f.Provenances)
		out = append(out, schemas.Finding{
			ID:                findingID(scanID, f, provs),
			ScanID:            scanID,
			SinkLocation:      f.SinkLocation,
			SinkFunction:      f.SinkFunction,
			ArgumentIndex:     f.ArgumentIndex,
			SourceProvenances: provs,
			EnclosingFunction: f.Enclosing,
			Severity:          schemas.SeverityHigh,
			Message:           message(f, provs),
			CWE:               []string{schemas.CWE022},
			ObservedAt:        observedAt,
		})
	}
	return out
}

func findingID(scanID string, f Finding, provs []schemas.Provenance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "pathtaint:%s:%s:%s:%d", scanID, f.SinkLocation, f.SinkFunction, f.ArgumentIndex)
	for _, p := range provs {
		fmt.Fprintf(&b, ":%s@%s", p.SourceFunction, p.SourceLocation)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(b.String())).String()
}

func message(f Finding, provs []schemas.Provenance) string {
	names := make([]string, len(provs))
	for i, p := range provs {
		names[i] = fmt.Sprintf("%s (line %d)", p.SourceFunction, p.SourceLocation.Line)
	}
	return fmt.Sprintf("Argument %d of %s is a path derived from untrusted input %s without sanitization",
		f.ArgumentIndex, f.SinkFunction, strings.Join(names, ", "))
}
