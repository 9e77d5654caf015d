// Filename: catalog/catalog_test.go
package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLookups(t *testing.T) {
	t.Parallel()
	c := Default()

	t.Run("Sources", func(t *testing.T) {
		t.Parallel()
		assert.True(t, c.IsSource("getenv"))
		assert.True(t, c.IsSource("scanf"))
		assert.True(t, c.IsSource("read"))
		assert.False(t, c.IsSource("fopen"))

		e, ok := c.Source("scanf")
		require.True(t, ok)
		assert.False(t, e.Covers(0), "the format string is not written")
		assert.True(t, e.Covers(1))
		assert.True(t, e.Covers(5))

		e, ok = c.Source("getenv")
		require.True(t, ok)
		_, hasIdx := e.Index()
		assert.False(t, hasIdx, "getenv taints its return value")
	})

	t.Run("ParamSources", func(t *testing.T) {
		t.Parallel()
		params := c.ParamSources("main")
		require.Len(t, params, 1)
		idx, _ := params[0].Index()
		assert.Equal(t, 1, idx)
		assert.Empty(t, c.ParamSources("readFile"))
	})

	t.Run("Sinks", func(t *testing.T) {
		t.Parallel()
		ok, idx := c.IsSink("fopen")
		assert.True(t, ok)
		assert.Equal(t, 0, idx)

		ok, idx = c.IsSink("openat")
		assert.True(t, ok)
		assert.Equal(t, 1, idx)

		ok, idx = c.IsSink("printf")
		assert.False(t, ok)
		assert.Equal(t, -1, idx)

		assert.Equal(t, []int{0, 1}, c.SinkArgs("rename"))
		assert.Equal(t, []int{0, 1}, c.SinkArgs("link"))
		assert.Equal(t, []int{1, 3}, c.SinkArgs("renameat"))
		assert.Equal(t, []int{0}, c.SinkArgs("fopen"))
		assert.Nil(t, c.SinkArgs("printf"))
	})

	t.Run("Sanitizers", func(t *testing.T) {
		t.Parallel()
		assert.True(t, c.IsSanitizer(LiteralOperation))
		assert.True(t, c.IsSanitizer("strtod"))
		assert.True(t, c.IsSanitizer("atoi"))
		assert.False(t, c.IsSanitizer("strcpy"))
	})

	t.Run("Propagators", func(t *testing.T) {
		t.Parallel()
		e, ok := c.Propagator("strncat")
		require.True(t, ok)
		assert.Equal(t, ModeAppend, e.Mode)

		e, ok = c.Propagator("sprintf")
		require.True(t, ok)
		assert.Equal(t, ModeCopy, e.Mode)
		assert.True(t, e.Covers(0))
		assert.False(t, e.Covers(1))

		_, ok = c.Propagator("strlen")
		assert.False(t, ok)

		e, ok = c.Propagator("realpath")
		require.True(t, ok, "realpath hands the resolved path on")
		assert.True(t, e.Covers(1))
		e, ok = c.Propagator("canonicalize_file_name")
		require.True(t, ok)
		assert.Equal(t, ModeReturn, e.Mode)
		assert.False(t, e.Covers(0))
	})

	t.Run("UnknownNamesAreNeutral", func(t *testing.T) {
		t.Parallel()
		assert.False(t, c.IsSource("frobnicate"))
		ok, _ := c.IsSink("frobnicate")
		assert.False(t, ok)
		assert.False(t, c.IsSanitizer("frobnicate"))
	})
}

func TestEntryValidation(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{name: "valid sink", entry: sink("fopen", 0, "file_open")},
		{name: "valid return source", entry: returnSource("getenv", "env")},
		{name: "missing name", entry: Entry{Role: RoleSink, ArgIndex: intPtr(0)}, wantErr: true},
		{name: "sink without index", entry: Entry{Name: "fopen", Role: RoleSink}, wantErr: true},
		{name: "negative index", entry: Entry{Name: "fopen", Role: RoleSink, ArgIndex: intPtr(-1)}, wantErr: true},
		{name: "unknown role", entry: Entry{Name: "x", Role: "wizard"}, wantErr: true},
		{name: "propagator without mode", entry: Entry{Name: "strcpy", Role: RolePropagator, ArgIndex: intPtr(0)}, wantErr: true},
		{name: "param source without index", entry: Entry{Name: "main", Role: RoleParamSource}, wantErr: true},
		{name: "return propagator", entry: Entry{Name: "resolve", Role: RolePropagator, Mode: ModeReturn}},
		{name: "return propagator with index", entry: Entry{Name: "resolve", Role: RolePropagator, ArgIndex: intPtr(0), Mode: ModeReturn}, wantErr: true},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEntry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeOverridesByNameAndRole(t *testing.T) {
	t.Parallel()
	base, err := New(sink("fopen", 0, "file_open"), sanitizer("atoi", "numeric_parse"))
	require.NoError(t, err)

	merged, err := base.Merge(
		sink("fopen", 0, "custom"),
		sink("move", 0, "custom"),
		sink("move", 2, "custom"),
		sanitizer("atoi", "custom"),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, merged.Len())

	byName := map[string][]string{}
	for _, e := range merged.Entries() {
		byName[e.Name] = append(byName[e.Name], e.Category)
	}
	assert.Equal(t, []string{"custom"}, byName["fopen"], "same sink argument replaces")
	assert.Equal(t, []string{"custom"}, byName["atoi"])
	assert.Equal(t, []int{0, 2}, merged.SinkArgs("move"), "a second sink argument adds")

	// The receiver is untouched.
	assert.Equal(t, 2, base.Len())
	assert.Nil(t, base.SinkArgs("move"))
}

func TestParseAndWriteRoundTrip(t *testing.T) {
	t.Parallel()
	doc := []byte(`
- name: load_config
  role: sink
  arg_index: 0
  category: file_open
- name: read_token
  role: source
  arg_index: 1
- name: parse_port
  role: sanitizer
`)
	entries, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "load_config", entries[0].Name)
	assert.Equal(t, RoleSink, entries[0].Role)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))
	again, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, entries, again)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("- name: x\n  role: sink\n  arg_idx: 0\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("- name: x\n  role: sink\n"))
	assert.ErrorIs(t, err, ErrInvalidEntry)

	entries, err := Parse(nil)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildWithExtensionFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: xopen\n  role: sink\n  arg_index: 0\n- name: symlink\n  role: sink\n  arg_index: 0\n"), 0o600))

	c, err := Build(true, path)
	require.NoError(t, err)
	ok, _ := c.IsSink("xopen")
	assert.True(t, ok)
	assert.Equal(t, []int{0, 1}, c.SinkArgs("symlink"), "an extension adds a path argument to a default sink")
	assert.True(t, c.IsSource("getenv"))

	onlyExtra, err := Build(false, path)
	require.NoError(t, err)
	assert.Equal(t, 2, onlyExtra.Len())

	_, err = Build(true, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
