// Filename: frontend/irfile.go
package frontend

import (
	"context"
	"fmt"
	"os"

	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

// IRExtension is the suffix of translation units stored as JSON.
const IRExtension = ".json"

// IRLoader reads translation units that were lowered ahead of time, by
// `pathtaint ir` or by another front-end, and stored as JSON.
type IRLoader struct{}

// ParseFile decodes the translation unit stored at path.
func (IRLoader) ParseFile(ctx context.Context, path string) (*ir.TranslationUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer f.Close()
	return ir.Decode(f)
}
