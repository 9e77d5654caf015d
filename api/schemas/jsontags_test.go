package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// TestStructJSONTags uses reflection to verify that the `json` tags on struct fields
// are correct. Report consumers depend on these names.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "Finding",
			structRef: schemas.Finding{},
			expectedTags: map[string]string{
				"ID":                "id,omitempty",
				"ScanID":            "scan_id,omitempty",
				"SinkLocation":      "sink_location",
				"SinkFunction":      "sink_function",
				"ArgumentIndex":     "argument_index",
				"SourceProvenances": "source_provenances",
				"EnclosingFunction": "enclosing_function,omitempty",
				"Severity":          "severity",
				"Message":           "message",
				"CWE":               "cwe,omitempty",
				"ObservedAt":        "observed_at,omitempty",
			},
		},
		{
			name:      "Provenance",
			structRef: schemas.Provenance{},
			expectedTags: map[string]string{
				"SourceLocation": "source_location",
				"SourceFunction": "source_function",
			},
		},
		{
			name:      "Location",
			structRef: schemas.Location{},
			expectedTags: map[string]string{
				"File":   "file",
				"Line":   "line",
				"Column": "column",
			},
		},
		{
			name:      "ResultEnvelope",
			structRef: schemas.ResultEnvelope{},
			expectedTags: map[string]string{
				"ScanID":    "scan_id",
				"Timestamp": "timestamp",
				"Targets":   "targets",
				"Findings":  "findings",
				"Errors":    "errors,omitempty",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			structType := reflect.TypeOf(tt.structRef)
			actualTags := make(map[string]string)

			for i := 0; i < structType.NumField(); i++ {
				field := structType.Field(i)
				if jsonTag := field.Tag.Get("json"); jsonTag != "" {
					actualTags[field.Name] = jsonTag
				}
			}

			assert.Equal(t, tt.expectedTags, actualTags, "JSON tags for struct %s do not match expectations", tt.name)
		})
	}
}

func TestLocationOrdering(t *testing.T) {
	t.Parallel()
	a := schemas.Location{File: "a.c", Line: 10, Column: 3}
	b := schemas.Location{File: "a.c", Line: 10, Column: 7}
	c := schemas.Location{File: "b.c", Line: 1, Column: 1}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.False(t, a.Less(a))
	assert.Equal(t, "a.c:10:3", a.String())
}
