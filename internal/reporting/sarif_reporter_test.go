// internal/reporting/sarif_reporter_test.go
package reporting_test

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/reporting"
	"github.com/xkilldash9x/pathtaint/internal/reporting/sarif"
)

func decodeSARIF(t *testing.T, raw []byte) sarif.Log {
	t.Helper()
	var log sarif.Log
	require.NoError(t, jsoniter.Unmarshal(raw, &log), "output should be valid SARIF JSON")
	return log
}

func TestSARIFReporter_Initialization(t *testing.T) {
	writer := newMockWriter()
	reporter := reporting.NewSARIFReporter(writer, "v1.2.3-test")
	require.NoError(t, reporter.Close())
	assert.True(t, writer.Closed)

	log := decodeSARIF(t, writer.Buffer.Bytes())
	assert.Equal(t, reporting.SARIFVersion, log.Version)
	assert.Equal(t, reporting.SARIFSchema, log.Schema)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]
	require.NotNil(t, run.Tool)
	require.NotNil(t, run.Tool.Driver)
	assert.Equal(t, reporting.ToolName, run.Tool.Driver.Name)
	assert.Equal(t, "v1.2.3-test", *run.Tool.Driver.Version)
	require.NotNil(t, run.Results, "results encode as [] rather than null")
	assert.Empty(t, run.Results)
	assert.Empty(t, run.Tool.Driver.Rules)
	assert.Contains(t, writer.Buffer.String(), `"results": []`)
}

func TestSARIFReporter_WriteAndClose(t *testing.T) {
	writer := newMockWriter()
	reporter := reporting.NewSARIFReporter(writer, "test")
	require.NoError(t, reporter.Write(sampleEnvelope()))
	require.NoError(t, reporter.Close())

	run := decodeSARIF(t, writer.Buffer.Bytes()).Runs[0]
	require.Len(t, run.Results, 3)
	require.Len(t, run.Tool.Driver.Rules, 2, "one rule per sink function")

	first, second, third := run.Results[0], run.Results[1], run.Results[2]
	assert.Equal(t, "PATHTAINT-PATH-TRAVERSAL-FOPEN", first.RuleID)
	assert.Equal(t, first.RuleID, second.RuleID)
	assert.Equal(t, "PATHTAINT-PATH-TRAVERSAL-OPEN", third.RuleID)
	assert.Equal(t, sarif.LevelError, first.Level)
	assert.Equal(t, sampleEnvelope().Findings[0].Message, *first.Message.Text)
	assert.Equal(t, "f-1", first.PartialFingerprints["pathtaintFindingId/v1"])

	require.Len(t, first.Locations, 1)
	sink := first.Locations[0].PhysicalLocation
	assert.Equal(t, "src/main.c", *sink.ArtifactLocation.URI)
	assert.Equal(t, &sarif.Region{StartLine: 12, StartColumn: 3}, sink.Region)

	require.Len(t, second.RelatedLocations, 2)
	assert.Equal(t, 1, *second.RelatedLocations[0].ID)
	assert.Equal(t, 15, second.RelatedLocations[0].PhysicalLocation.Region.StartLine)
	assert.Equal(t, "untrusted input from read", *second.RelatedLocations[1].Message.Text)

	rule := run.Tool.Driver.Rules[0]
	assert.Equal(t, "Path traversal via fopen", *rule.Name)
	assert.Contains(t, *rule.Help.Markdown, "CWE-22: Improper Limitation of a Pathname")
	require.NotNil(t, rule.HelpURI)
	assert.Equal(t, "https://cwe.mitre.org/data/definitions/22.html", *rule.HelpURI)
	assert.ElementsMatch(t, []interface{}{schemas.CWE022}, (*rule.Properties)["CWE"])

	require.Len(t, run.Invocations, 1)
	notes := run.Invocations[0].ToolExecutionNotifications
	require.Len(t, notes, 1)
	assert.Contains(t, *notes[0].Message.Text, "rotate")
	assert.Equal(t, sarif.LevelWarning, notes[0].Level)
}

func TestSARIFReporter_RuleCollisionHandling(t *testing.T) {
	writer := newMockWriter()
	reporter := reporting.NewSARIFReporter(writer, "test")

	// Same sink, different weakness lists: distinct rules sharing a base ID.
	env := &schemas.ResultEnvelope{Findings: []schemas.Finding{
		{SinkFunction: "fopen", CWE: []string{schemas.CWE022}, Severity: schemas.SeverityHigh},
		{SinkFunction: "fopen", CWE: []string{schemas.CWE022, "CWE-73"}, Severity: schemas.SeverityMedium},
		{SinkFunction: "fopen", CWE: []string{"CWE-73", schemas.CWE022}, Severity: schemas.SeverityLow},
	}}
	require.NoError(t, reporter.Write(env))
	require.NoError(t, reporter.Close())

	run := decodeSARIF(t, writer.Buffer.Bytes()).Runs[0]
	require.Len(t, run.Tool.Driver.Rules, 2)
	assert.Equal(t, "PATHTAINT-PATH-TRAVERSAL-FOPEN", run.Results[0].RuleID)
	assert.Equal(t, "PATHTAINT-PATH-TRAVERSAL-FOPEN-1", run.Results[1].RuleID)
	assert.Equal(t, run.Results[1].RuleID, run.Results[2].RuleID, "CWE order does not change the fingerprint")
	assert.Equal(t, sarif.LevelWarning, run.Results[1].Level)
	assert.Equal(t, sarif.LevelNote, run.Results[2].Level)
}

func TestSARIFReporter_RuleIDSanitization(t *testing.T) {
	writer := newMockWriter()
	reporter := reporting.NewSARIFReporter(writer, "test")
	require.NoError(t, reporter.Write(&schemas.ResultEnvelope{Findings: []schemas.Finding{
		{SinkFunction: "__open64 (wrapper)"},
		{SinkFunction: "***"},
	}}))
	require.NoError(t, reporter.Close())

	run := decodeSARIF(t, writer.Buffer.Bytes()).Runs[0]
	assert.Equal(t, "PATHTAINT-PATH-TRAVERSAL-__OPEN64-WRAPPER", run.Results[0].RuleID)
	assert.Equal(t, "PATHTAINT-PATH-TRAVERSAL-UNKNOWN-SINK", run.Results[1].RuleID)
}

func TestSARIFReporter_IOErrors(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		writer := newMockWriter()
		writer.FailWrite = true
		reporter := reporting.NewSARIFReporter(writer, "test")
		err := reporter.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to encode SARIF output")
		assert.True(t, writer.Closed, "the writer is closed even when encoding fails")
	})

	t.Run("close failure", func(t *testing.T) {
		writer := newMockWriter()
		writer.FailClose = true
		reporter := reporting.NewSARIFReporter(writer, "test")
		err := reporter.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to close output writer")
	})
}
