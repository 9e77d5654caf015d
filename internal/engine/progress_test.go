package engine_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pathtaint/internal/engine"
)

func TestNewProgressBar(t *testing.T) {
	var buf bytes.Buffer
	progress := engine.NewProgressBar(&buf)
	progress(1, 2, "/src/a.c")
	assert.Contains(t, buf.String(), "a.c")
	assert.Contains(t, buf.String(), "1/2")
	progress(2, 2, "/src/b.c")
	assert.NotEmpty(t, buf.String())
}
