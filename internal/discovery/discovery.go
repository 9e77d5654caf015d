// internal/discovery/discovery.go
// Package discovery finds the C files a scan should analyze, either by
// walking directories or by listing what a git repository tracks at HEAD.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/mitchellh/go-homedir"
)

// ErrNoRoots is returned when Find is called without any path.
var ErrNoRoots = errors.New("no paths to scan")

// Find returns the sorted, de-duplicated C files under roots. A root may be a
// file or a directory; "~" is expanded.
func Find(ctx context.Context, roots []string, opts Options) ([]string, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	opts.SetDefaults()
	scope, err := newPathScope(opts)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expanded, err := homedir.Expand(root)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", root, err)
		}
		info, err := os.Stat(expanded)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", expanded, err)
		}

		switch {
		case !info.IsDir():
			// An explicitly named file is kept whatever its directory.
			if scope.keepFile(expanded) {
				add(expanded)
			}
		case opts.GitTracked:
			tracked, err := trackedFiles(ctx, expanded, scope)
			if err != nil {
				return nil, err
			}
			for _, f := range tracked {
				add(f)
			}
		default:
			if err := walk(ctx, expanded, scope, add); err != nil {
				return nil, err
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func walk(ctx context.Context, root string, scope *pathScope, add func(string)) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !scope.enterDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && scope.keepFile(path) {
			add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return nil
}

// trackedFiles lists the files of HEAD's tree that lie under root. The paths
// are joined onto root so they read the same as walked paths.
func trackedFiles(ctx context.Context, root string, scope *pathScope) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", root, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree for %s: %w", root, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD for %s: %w", root, err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD tree: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}
	repoRoot, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, err
	}
	prefix, err := filepath.Rel(repoRoot, absRoot)
	if err != nil {
		return nil, err
	}
	prefix = filepath.ToSlash(prefix)

	var out []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := f.Name
		if prefix != "." {
			if !strings.HasPrefix(rel, prefix+"/") {
				return nil
			}
			rel = strings.TrimPrefix(rel, prefix+"/")
		}
		if scope.keepTracked(filepath.FromSlash(rel)) {
			out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	return out, nil
}
