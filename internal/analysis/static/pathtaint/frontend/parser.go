// Filename: frontend/parser.go
// Package frontend lowers C source into the ir form using the tree-sitter C
// grammar. It resolves block scopes so that every declaration becomes a unique
// symbol, and it never fails on syntax it does not understand: such regions
// are kept as unknown nodes whose operands still carry data.
package frontend

import (
	"context"
	"fmt"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

// Parser turns C files into translation units. Tree-sitter parsers are not
// safe for concurrent use, so each call borrows one from a pool.
type Parser struct {
	logger *zap.Logger
	pool   sync.Pool
}

// NewParser creates a pooled C front-end.
func NewParser(logger *zap.Logger) *Parser {
	p := &Parser{logger: logger.Named("c_frontend")}
	p.pool.New = func() interface{} {
		parser := sitter.NewParser()
		parser.SetLanguage(c.GetLanguage())
		return parser
	}
	return p
}

// ParseFile reads and lowers a file from disk.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ir.TranslationUnit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.ParseSource(ctx, path, src)
}

// ParseSource lowers in-memory C source. filename is only used for locations.
func (p *Parser) ParseSource(ctx context.Context, filename string, src []byte) (*ir.TranslationUnit, error) {
	parser := p.pool.Get().(*sitter.Parser)
	defer func() {
		parser.Reset()
		p.pool.Put(parser)
	}()

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	tu := &ir.TranslationUnit{File: filename}
	if root.HasError() {
		tu.ParseErrors = countErrors(root)
		p.logger.Warn("Tree-sitter detected syntax errors; analysis may be incomplete",
			zap.String("file", filename),
			zap.Int("error_regions", tu.ParseErrors),
		)
	}

	l := &lowerer{file: filename, src: src}
	l.collectFunctions(root, tu)

	p.logger.Debug("Lowered translation unit",
		zap.String("file", filename),
		zap.Int("functions", len(tu.Functions)),
	)
	return tu, nil
}

func countErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Type() == "ERROR" || n.IsMissing() {
		count++
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		count += countErrors(n.Child(i))
	}
	return count
}
