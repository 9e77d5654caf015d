package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pathtaint/cmd"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   int
		stderr string
	}{
		{name: "success", err: nil, want: exitOK},
		{name: "interrupted", err: fmt.Errorf("scan failed: %w", context.Canceled), want: exitOK, stderr: "interrupted"},
		{name: "findings", err: fmt.Errorf("%w: 3", cmd.ErrFindingsDetected), want: exitFindings, stderr: "findings detected: 3"},
		{name: "failure", err: errors.New("bad config"), want: exitError, stderr: "Error: bad config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.want, exitCode(tt.err, &buf))
			if tt.stderr == "" {
				assert.Empty(t, buf.String())
			} else {
				assert.Contains(t, buf.String(), tt.stderr)
			}
		})
	}
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes the panic log", func(t *testing.T) {
		var written []byte
		var path string
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			path, written = name, data
			return nil
		}
		status := -1
		osExit = func(code int) { status = code }

		func() {
			defer handlePanic()
			panic("index out of range")
		}()

		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, string(written), "panic: index out of range")
		assert.Contains(t, string(written), "goroutine")
		assert.Equal(t, exitError, status)
	})

	t.Run("log write failure still exits", func(t *testing.T) {
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
		status := -1
		osExit = func(code int) { status = code }

		func() {
			defer handlePanic()
			panic("boom")
		}()
		assert.Equal(t, exitError, status)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		called := false
		osExit = func(int) { called = true }
		func() {
			defer handlePanic()
		}()
		require.False(t, called)
	})
}
