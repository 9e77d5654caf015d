// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/observability"
	"github.com/xkilldash9x/pathtaint/internal/reporting/sarif"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "pathtaint"
	ToolInfoURI  = "https://github.com/xkilldash9x/pathtaint"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

	rulePrefix = "PATHTAINT-"
	// fingerprintKey names the stable finding ID in partialFingerprints.
	fingerprintKey = "pathtaintFindingId/v1"
)

// ruleIDSanitizer keeps alphanumerics, underscore and dot; every other run of
// characters collapses to one hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// RuleFingerprint identifies a rule definition by content.
type RuleFingerprint string

// calculateFingerprint hashes what a rule is made of: the sink and the
// weakness identifiers.
func calculateFingerprint(finding schemas.Finding) RuleFingerprint {
	sortedCWEs := append([]string(nil), finding.CWE...)
	sort.Strings(sortedCWEs)

	data := struct {
		Sink string
		CWEs []string
	}{
		Sink: finding.SinkFunction,
		CWEs: sortedCWEs,
	}

	h := sha1.New()
	_ = json.NewEncoder(h).Encode(data)
	return RuleFingerprint(hex.EncodeToString(h.Sum(nil)))
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// Results are buffered and written on Close. It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	cwes   CWEProvider
	// mu protects the log structure and the maps.
	mu                 sync.Mutex
	rulesByFingerprint map[RuleFingerprint]string
	ruleIDUsage        map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Invocations: []*sarif.Invocation{{ExecutionSuccessful: true}},
				Results:     []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:             writer,
		logger:             observability.GetLogger().Named("sarif_reporter"),
		log:                log,
		cwes:               NewInMemoryCWEProvider(),
		rulesByFingerprint: make(map[RuleFingerprint]string),
		ruleIDUsage:        make(map[string]int),
	}
}

// Write converts the envelope's findings into SARIF results. Analysis errors
// become tool execution notifications.
func (r *SARIFReporter) Write(result *schemas.ResultEnvelope) error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	for _, finding := range result.Findings {
		sarifResult := &sarif.Result{
			RuleID:           r.ensureRule(finding),
			Message:          &sarif.Message{Text: pString(finding.Message)},
			Level:            mapSeverityToSARIFLevel(finding.Severity),
			Locations:        []*sarif.Location{r.sinkLocation(finding)},
			RelatedLocations: r.provenanceLocations(finding),
		}
		if finding.ID != "" {
			sarifResult.PartialFingerprints = map[string]string{fingerprintKey: finding.ID}
		}
		run.Results = append(run.Results, sarifResult)
	}

	invocation := run.Invocations[0]
	for _, e := range result.Errors {
		text := e.Message
		if e.Function != "" {
			text = fmt.Sprintf("%s: %s (%s)", e.Function, e.Message, e.Kind)
		}
		invocation.ToolExecutionNotifications = append(invocation.ToolExecutionNotifications, &sarif.Notification{
			Message:   &sarif.Message{Text: pString(text)},
			Level:     sarif.LevelWarning,
			Locations: []*sarif.Location{{PhysicalLocation: physical(schemas.Location{File: e.File})}},
		})
	}

	if len(result.Findings) > 0 {
		r.logger.Debug("Wrote findings to SARIF buffer",
			zap.Int("findings_count", len(result.Findings)),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close encodes the SARIF log and closes the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(r.log)
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

func (r *SARIFReporter) sanitizeRuleName(name string) string {
	sanitized := strings.Trim(ruleIDSanitizer.ReplaceAllString(strings.ToUpper(name), "-"), "-")
	if sanitized == "" {
		return "UNKNOWN-SINK"
	}
	return sanitized
}

// ensureRule returns the rule ID for the finding's sink, registering a rule
// on first use. Callers hold r.mu.
func (r *SARIFReporter) ensureRule(finding schemas.Finding) string {
	fingerprint := calculateFingerprint(finding)
	if ruleID, exists := r.rulesByFingerprint[fingerprint]; exists {
		return ruleID
	}

	baseRuleID := rulePrefix + "PATH-TRAVERSAL-" + r.sanitizeRuleName(finding.SinkFunction)
	usageCount := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usageCount + 1

	ruleID := baseRuleID
	if usageCount > 0 {
		ruleID = fmt.Sprintf("%s-%d", baseRuleID, usageCount)
		r.logger.Debug("Rule ID collision detected, generated new ID with suffix",
			zap.String("base_id", baseRuleID),
			zap.String("final_id", ruleID),
		)
	}

	name := fmt.Sprintf("Path traversal via %s", finding.SinkFunction)
	description := fmt.Sprintf("A path passed to %s is derived from untrusted input without sanitization.", finding.SinkFunction)
	recommendation := "Canonicalize the path (realpath) and check it against an allowed base directory before use."
	weaknesses := make([]string, 0, len(finding.CWE))
	var helpURI *string
	for _, id := range finding.CWE {
		entry := r.cwes.GetCWE(id)
		weaknesses = append(weaknesses, fmt.Sprintf("%s: %s", entry.ID, entry.Name))
		if helpURI == nil {
			if u := cweURL(id); u != "" {
				helpURI = pString(u)
			}
		}
	}
	markdownHelp := fmt.Sprintf("**Weakness:** %s\n\n**Description:**\n%s\n\n**Recommendation:**\n%s",
		strings.Join(weaknesses, "; "), description, recommendation)

	r.log.Runs[0].Tool.Driver.Rules = append(r.log.Runs[0].Tool.Driver.Rules, &sarif.ReportingDescriptor{
		ID:               ruleID,
		Name:             pString(name),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(name)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(recommendation),
			Markdown: pString(markdownHelp),
		},
		HelpURI: helpURI,
		Properties: &sarif.PropertyBag{
			"tags":      []string{"security", "taint", "path-traversal"},
			"precision": "medium",
			"CWE":       finding.CWE,
		},
	})
	r.rulesByFingerprint[fingerprint] = ruleID
	return ruleID
}

func (r *SARIFReporter) sinkLocation(finding schemas.Finding) *sarif.Location {
	return &sarif.Location{
		PhysicalLocation: physical(finding.SinkLocation),
		Message: &sarif.Message{
			Text: pString(fmt.Sprintf("argument %d of %s", finding.ArgumentIndex, finding.SinkFunction)),
		},
	}
}

func (r *SARIFReporter) provenanceLocations(finding schemas.Finding) []*sarif.Location {
	out := make([]*sarif.Location, 0, len(finding.SourceProvenances))
	for i, p := range finding.SourceProvenances {
		id := i + 1
		out = append(out, &sarif.Location{
			ID:               &id,
			PhysicalLocation: physical(p.SourceLocation),
			Message:          &sarif.Message{Text: pString("untrusted input from " + p.SourceFunction)},
		})
	}
	return out
}

func physical(loc schemas.Location) *sarif.PhysicalLocation {
	pl := &sarif.PhysicalLocation{ArtifactLocation: &sarif.ArtifactLocation{URI: pString(loc.File)}}
	if loc.Line > 0 {
		pl.Region = &sarif.Region{StartLine: loc.Line, StartColumn: loc.Column}
	}
	return pl
}

// mapSeverityToSARIFLevel converts a finding severity to a SARIF level.
func mapSeverityToSARIFLevel(severity schemas.Severity) sarif.Level {
	switch severity {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return sarif.LevelError
	case schemas.SeverityMedium:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value.
func pString(s string) *string {
	return &s
}
