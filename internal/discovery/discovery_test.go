// internal/discovery/discovery_test.go
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("int main(void) { return 0; }\n"), 0o600))
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestFind_Walk(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root,
		"main.c", "util.h", "README.md", "lib/io.c", "lib/io.o",
		".git/hooks/sample.c", "vendor/.cache/x.c", "tests/testdata/case.c",
	)

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "defaults skip hidden directories",
			want: []string{"lib/io.c", "main.c", "tests/testdata/case.c", "util.h"},
		},
		{
			name: "skip testdata",
			opts: Options{SkipTestdata: true},
			want: []string{"lib/io.c", "main.c", "util.h"},
		},
		{
			name: "include hidden",
			opts: Options{IncludeHidden: true, SkipTestdata: true},
			want: []string{".git/hooks/sample.c", "lib/io.c", "main.c", "util.h", "vendor/.cache/x.c"},
		},
		{
			name: "sources only with exclusions",
			opts: Options{Extensions: []string{".c"}, Exclude: []string{"lib", "*_test.c"}},
			want: []string{"main.c", "tests/testdata/case.c"},
		},
	}
	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Find(context.Background(), []string{root}, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel(t, root, got))
		})
	}
}

func TestFind_FilesAndDuplicates(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, "a.c", "b.c", "notes.txt")

	got, err := Find(context.Background(), []string{
		filepath.Join(root, "b.c"),
		root,
		filepath.Join(root, "a.c"),
		filepath.Join(root, "notes.txt"),
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.c", "b.c"}, rel(t, root, got))
}

func TestFind_Errors(t *testing.T) {
	t.Parallel()
	_, err := Find(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrNoRoots)

	_, err = Find(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Find(context.Background(), []string{t.TempDir()}, Options{Exclude: []string{"[bad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Find(ctx, []string{t.TempDir()}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFind_GitTracked(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, "src/main.c", "src/parse.h", "docs/example.c", "src/testdata/fixture.c")

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for _, f := range []string{"src/main.c", "src/parse.h", "docs/example.c", "src/testdata/fixture.c"} {
		_, err := wt.Add(f)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)

	// Present on disk but never committed.
	writeTree(t, root, "src/scratch.c")

	got, err := Find(context.Background(), []string{root}, Options{GitTracked: true, SkipTestdata: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/example.c", "src/main.c", "src/parse.h"}, rel(t, root, got))

	sub, err := Find(context.Background(), []string{filepath.Join(root, "src")}, Options{GitTracked: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.c", "parse.h", "testdata/fixture.c"}, rel(t, filepath.Join(root, "src"), sub))

	_, err = Find(context.Background(), []string{t.TempDir()}, Options{GitTracked: true})
	require.Error(t, err, "a directory outside any repository cannot be listed")
}
