// internal/discovery/scope.go
package discovery

import (
	"fmt"
	"path/filepath"
	"strings"
)

// pathScope decides which directories to enter and which files to keep.
type pathScope struct {
	extensions    map[string]bool
	includeHidden bool
	skipTestdata  bool
	exclude       []string
}

func newPathScope(opts Options) (*pathScope, error) {
	for _, pattern := range opts.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	s := &pathScope{
		extensions:    make(map[string]bool, len(opts.Extensions)),
		includeHidden: opts.IncludeHidden,
		skipTestdata:  opts.SkipTestdata,
		exclude:       opts.Exclude,
	}
	for _, ext := range opts.Extensions {
		s.extensions[ext] = true
	}
	return s, nil
}

// enterDir reports whether a directory below a root should be walked.
func (s *pathScope) enterDir(path string) bool {
	name := filepath.Base(path)
	if !s.includeHidden && strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return false
	}
	if s.skipTestdata && name == "testdata" {
		return false
	}
	return !s.excluded(path)
}

// keepFile reports whether a file is a C source in scope.
func (s *pathScope) keepFile(path string) bool {
	if !s.extensions[filepath.Ext(path)] {
		return false
	}
	return !s.excluded(path)
}

// keepTracked applies the directory rules to every parent of a tracked file.
func (s *pathScope) keepTracked(rel string) bool {
	dir := filepath.Dir(rel)
	for dir != "." && dir != string(filepath.Separator) {
		if !s.enterDir(dir) {
			return false
		}
		dir = filepath.Dir(dir)
	}
	return s.keepFile(rel)
}

func (s *pathScope) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range s.exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}
