// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/config"
)

// fakeStoreProvider hands out a prepared store and records how often it was
// asked for one.
type fakeStoreProvider struct {
	store    schemas.Store
	err      error
	created  int
	cleanups int
}

func (p *fakeStoreProvider) Create(ctx context.Context, cfg config.Interface) (schemas.Store, func(), error) {
	p.created++
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.store, func() { p.cleanups++ }, nil
}

// executeCommand runs a fresh command tree and captures what cobra writes.
func executeCommand(t *testing.T, provider storeProvider, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	if provider == nil {
		provider = &fakeStoreProvider{}
	}
	root := newRootCommand(provider)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const vulnerableSource = `#include <stdio.h>

int main(int argc, char **argv) {
  FILE *f = fopen(argv[1], "r");
  return f == 0;
}
`

const cleanSource = `#include <stdio.h>

int main(void) {
  FILE *f = fopen("/etc/app.conf", "r");
  return f == 0;
}
`

const customSinkSource = `void open_log(const char *name);

int main(int argc, char **argv) {
  open_log(argv[1]);
  fopen(argv[2], "r");
  return 0;
}
`

const customCatalog = `- name: main
  role: param_source
  arg_index: 1
- name: open_log
  role: sink
  arg_index: 0
  category: logging
`
