// Filename: frontend/lower.go
package frontend

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

// lowerer converts one syntax tree. Scope state is reset per function.
type lowerer struct {
	file    string
	src     []byte
	scopes  []map[string]string
	counter int
}

// declInfo describes what a declarator introduces.
type declInfo struct {
	name     string
	array    bool
	function bool
	node     *sitter.Node
}

var declaratorTypes = map[string]bool{
	"identifier":               true,
	"init_declarator":          true,
	"pointer_declarator":       true,
	"array_declarator":         true,
	"function_declarator":      true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

func (l *lowerer) loc(n *sitter.Node) ir.Location {
	if n == nil {
		return ir.Location{File: l.file}
	}
	p := n.StartPoint()
	return ir.Location{File: l.file, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func (l *lowerer) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(l.src)
}

// -- Scopes --

func (l *lowerer) pushScope() { l.scopes = append(l.scopes, map[string]string{}) }
func (l *lowerer) popScope()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *lowerer) declare(name string) string {
	l.counter++
	sym := fmt.Sprintf("%s#%d", name, l.counter)
	if len(l.scopes) > 0 {
		l.scopes[len(l.scopes)-1][name] = sym
	}
	return sym
}

// resolve maps a spelling to the innermost declaration. Names declared outside
// any function (globals, macros, callees) resolve to themselves.
func (l *lowerer) resolve(name string) string {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if sym, ok := l.scopes[i][name]; ok {
			return sym
		}
	}
	return name
}

// -- Top level --

func (l *lowerer) collectFunctions(n *sitter.Node, tu *ir.TranslationUnit) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			if fn := l.lowerFunction(child); fn != nil {
				tu.Functions = append(tu.Functions, fn)
			}
		case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "linkage_specification", "declaration_list", "ERROR":
			l.collectFunctions(child, tu)
		}
	}
}

func (l *lowerer) lowerFunction(n *sitter.Node) *ir.Function {
	fdecl := findFunctionDeclarator(n.ChildByFieldName("declarator"))
	if fdecl == nil {
		return nil
	}
	info := l.declarator(fdecl.ChildByFieldName("declarator"))
	if info.name == "" {
		return nil
	}

	l.scopes = nil
	l.counter = 0
	l.pushScope()
	defer l.popScope()

	fn := &ir.Function{Name: info.name, Loc: l.loc(n)}
	fn.Params = l.lowerParams(fdecl.ChildByFieldName("parameters"))

	body := n.ChildByFieldName("body")
	if body != nil {
		// The outermost block shares the parameter scope.
		fn.Body = l.lowerChildren(body)
	}
	return fn
}

func findFunctionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "attributed_declarator":
			n = n.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			n = n.NamedChild(0)
		default:
			return nil
		}
	}
	return nil
}

func (l *lowerer) lowerParams(list *sitter.Node) []ir.Param {
	if list == nil {
		return nil
	}
	var params []ir.Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		pd := list.NamedChild(i)
		if pd.Type() != "parameter_declaration" {
			continue
		}
		d := pd.ChildByFieldName("declarator")
		if d == nil {
			// `f(void)` declares no parameters; other unnamed parameters still
			// hold a position.
			if list.NamedChildCount() == 1 && l.text(pd.ChildByFieldName("type")) == "void" {
				return nil
			}
			params = append(params, ir.Param{Symbol: fmt.Sprintf("$param%d", len(params)), Loc: l.loc(pd)})
			continue
		}
		info := l.declarator(d)
		params = append(params, ir.Param{
			Symbol:  l.declare(info.name),
			Name:    info.name,
			Loc:     l.loc(pd),
			IsArray: info.array,
		})
	}
	return params
}

// declarator unwraps pointer, array and init declarators down to the name.
func (l *lowerer) declarator(n *sitter.Node) declInfo {
	var info declInfo
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier":
			info.name = l.text(n)
			return info
		case "init_declarator", "pointer_declarator", "attributed_declarator":
			n = n.ChildByFieldName("declarator")
		case "array_declarator":
			info.array = true
			n = n.ChildByFieldName("declarator")
		case "function_declarator":
			info.function = true
			n = n.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			n = n.NamedChild(0)
		default:
			return info
		}
	}
	return info
}

// -- Statements --

func (l *lowerer) lowerChildren(n *sitter.Node) []*ir.Stmt {
	var out []*ir.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, l.lowerStmt(n.NamedChild(i))...)
	}
	return out
}

// lowerBody lowers a statement that forms the body of a control construct.
func (l *lowerer) lowerBody(n *sitter.Node) []*ir.Stmt {
	if n == nil {
		return nil
	}
	return l.lowerStmt(n)
}

func (l *lowerer) lowerStmt(n *sitter.Node) []*ir.Stmt {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "comment", "break_statement", "continue_statement", "goto_statement", ";",
		"type_definition", "struct_specifier", "enum_specifier", "union_specifier",
		"preproc_include", "preproc_def", "preproc_function_def", "preproc_call":
		return nil

	case "compound_statement":
		l.pushScope()
		body := l.lowerChildren(n)
		l.popScope()
		return []*ir.Stmt{{Kind: ir.StmtBlock, Loc: l.loc(n), Body: body}}

	case "declaration":
		return l.lowerDeclaration(n)

	case "expression_statement":
		if n.NamedChildCount() == 0 {
			return nil
		}
		return []*ir.Stmt{{Kind: ir.StmtExpr, Loc: l.loc(n), Value: l.lowerExpr(n.NamedChild(0))}}

	case "return_statement":
		s := &ir.Stmt{Kind: ir.StmtReturn, Loc: l.loc(n)}
		if n.NamedChildCount() > 0 {
			s.Value = l.lowerExpr(n.NamedChild(0))
		}
		return []*ir.Stmt{s}

	case "if_statement":
		cond := l.lowerExpr(n.ChildByFieldName("condition"))
		then := l.lowerBody(n.ChildByFieldName("consequence"))
		var otherwise []*ir.Stmt
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			if alt.Type() == "else_clause" {
				alt = alt.NamedChild(0)
			}
			otherwise = l.lowerBody(alt)
		}
		return []*ir.Stmt{{Kind: ir.StmtBranch, Loc: l.loc(n), Value: cond, Arms: [][]*ir.Stmt{then, otherwise}}}

	case "while_statement", "do_statement":
		cond := l.lowerExpr(n.ChildByFieldName("condition"))
		body := l.lowerBody(n.ChildByFieldName("body"))
		return []*ir.Stmt{{Kind: ir.StmtLoop, Loc: l.loc(n), Value: cond, Body: body}}

	case "for_statement":
		return l.lowerFor(n)

	case "switch_statement":
		return l.lowerSwitch(n)

	case "labeled_statement", "case_statement":
		var out []*ir.Stmt
		value := n.ChildByFieldName("value")
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "statement_identifier" || sameNode(child, value) {
				continue
			}
			out = append(out, l.lowerStmt(child)...)
		}
		return out

	case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
		var out []*ir.Stmt
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "identifier" || child.Type() == "preproc_arg" || sameNode(child, n.ChildByFieldName("condition")) {
				continue
			}
			out = append(out, l.lowerStmt(child)...)
		}
		return out
	}

	// Anything else is kept with its operands so that data still flows.
	return []*ir.Stmt{{Kind: ir.StmtUnknown, Loc: l.loc(n), Value: l.lowerExpr(n)}}
}

func (l *lowerer) lowerDeclaration(n *sitter.Node) []*ir.Stmt {
	var out []*ir.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if !declaratorTypes[d.Type()] {
			continue
		}
		info := l.declarator(d)
		if info.function || info.name == "" {
			// Local prototypes declare no storage.
			continue
		}
		// The declared name is in scope within its own initializer.
		sym := l.declare(info.name)
		s := &ir.Stmt{Kind: ir.StmtDecl, Loc: l.loc(d), Symbol: sym, Name: info.name, IsArray: info.array}
		if d.Type() == "init_declarator" {
			s.Value = l.lowerExpr(d.ChildByFieldName("value"))
		}
		out = append(out, s)
	}
	return out
}

func (l *lowerer) lowerFor(n *sitter.Node) []*ir.Stmt {
	l.pushScope()
	defer l.popScope()

	var out []*ir.Stmt
	if init := n.ChildByFieldName("initializer"); init != nil {
		if init.Type() == "declaration" {
			out = append(out, l.lowerDeclaration(init)...)
		} else {
			out = append(out, &ir.Stmt{Kind: ir.StmtExpr, Loc: l.loc(init), Value: l.lowerExpr(init)})
		}
	}
	body := l.lowerBody(n.ChildByFieldName("body"))
	if update := n.ChildByFieldName("update"); update != nil {
		body = append(body, &ir.Stmt{Kind: ir.StmtExpr, Loc: l.loc(update), Value: l.lowerExpr(update)})
	}
	out = append(out, &ir.Stmt{
		Kind:  ir.StmtLoop,
		Loc:   l.loc(n),
		Value: l.lowerExpr(n.ChildByFieldName("condition")),
		Body:  body,
	})
	return []*ir.Stmt{{Kind: ir.StmtBlock, Loc: l.loc(n), Body: out}}
}

func (l *lowerer) lowerSwitch(n *sitter.Node) []*ir.Stmt {
	cond := l.lowerExpr(n.ChildByFieldName("condition"))
	body := n.ChildByFieldName("body")

	var arms [][]*ir.Stmt
	var falls []bool
	hasDefault := false
	if body != nil {
		l.pushScope()
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			if child.Type() == "comment" {
				continue
			}
			if child.Type() == "case_statement" && child.ChildByFieldName("value") == nil {
				hasDefault = true
			}
			arms = append(arms, l.lowerStmt(child))
			falls = append(falls, fallsThrough(child))
		}
		l.popScope()
	}
	if !hasDefault {
		arms = append(arms, nil)
		falls = append(falls, false)
	}
	return []*ir.Stmt{{Kind: ir.StmtBranch, Loc: l.loc(n), Value: cond, Arms: arms, FallsThrough: falls}}
}

// fallsThrough reports whether control can reach the end of a case and run
// into the next one. Only a trailing jump stops it.
func fallsThrough(n *sitter.Node) bool {
	for n != nil {
		var last *sitter.Node
		value := n.ChildByFieldName("value")
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			child := n.NamedChild(i)
			if child.Type() == "comment" || sameNode(child, value) {
				continue
			}
			last = child
			break
		}
		if last == nil {
			return true
		}
		switch last.Type() {
		case "break_statement", "return_statement", "continue_statement", "goto_statement":
			return false
		case "compound_statement", "labeled_statement":
			n = last
		default:
			return true
		}
	}
	return true
}

// -- Expressions --

func (l *lowerer) lowerExpr(n *sitter.Node) *ir.Expr {
	if n == nil {
		return nil
	}
	e := &ir.Expr{Loc: l.loc(n)}
	switch n.Type() {
	case "identifier":
		name := l.text(n)
		e.Kind, e.Name, e.Text = ir.ExprIdent, l.resolve(name), name

	case "string_literal", "concatenated_string", "raw_string_literal":
		e.Kind, e.Text = ir.ExprString, l.text(n)

	case "number_literal", "true", "false", "null":
		e.Kind, e.Text = ir.ExprNumber, l.text(n)

	case "char_literal":
		e.Kind, e.Text = ir.ExprChar, l.text(n)

	case "sizeof_expression", "alignof_expression", "offsetof_expression":
		e.Kind, e.Text = ir.ExprSizeof, l.text(n)

	case "parenthesized_expression", "condition_clause":
		if v := n.ChildByFieldName("value"); v != nil {
			return l.lowerExpr(v)
		}
		if inner := lastExprChild(n); inner != nil {
			return l.lowerExpr(inner)
		}
		e.Kind = ir.ExprUnknown

	case "call_expression":
		e.Kind = ir.ExprCall
		if fn := unwrapParens(n.ChildByFieldName("function")); fn != nil && fn.Type() == "identifier" {
			e.Name = l.text(fn)
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				a := args.NamedChild(i)
				if a.Type() == "comment" {
					continue
				}
				e.Args = append(e.Args, l.lowerExpr(a))
			}
		}

	case "binary_expression":
		e.Kind, e.Text = ir.ExprBinary, l.text(n.ChildByFieldName("operator"))
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("left")), l.lowerExpr(n.ChildByFieldName("right"))}

	case "unary_expression", "update_expression":
		e.Kind, e.Text = ir.ExprUnary, l.text(n.ChildByFieldName("operator"))
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("argument"))}

	case "pointer_expression":
		e.Kind = ir.ExprDeref
		if l.text(n.ChildByFieldName("operator")) == "&" {
			e.Kind = ir.ExprAddressOf
		}
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("argument"))}

	case "subscript_expression":
		e.Kind = ir.ExprIndex
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("argument")), l.lowerExpr(n.ChildByFieldName("index"))}

	case "field_expression":
		e.Kind, e.Name, e.Text = ir.ExprField, l.text(n.ChildByFieldName("field")), l.text(n.ChildByFieldName("operator"))
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("argument"))}

	case "cast_expression":
		e.Kind = ir.ExprCast
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("value"))}

	case "conditional_expression":
		e.Kind = ir.ExprConditional
		cond := l.lowerExpr(n.ChildByFieldName("condition"))
		then := l.lowerExpr(n.ChildByFieldName("consequence"))
		if then == nil {
			// GNU `a ?: b` yields the condition itself.
			then = cond
		}
		e.Args = []*ir.Expr{cond, then, l.lowerExpr(n.ChildByFieldName("alternative"))}

	case "assignment_expression":
		e.Kind, e.Text = ir.ExprAssign, l.text(n.ChildByFieldName("operator"))
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("left")), l.lowerExpr(n.ChildByFieldName("right"))}

	case "comma_expression":
		e.Kind = ir.ExprComma
		e.Args = []*ir.Expr{l.lowerExpr(n.ChildByFieldName("left")), l.lowerExpr(n.ChildByFieldName("right"))}

	case "primitive_type", "type_identifier", "type_descriptor", "comment":
		e.Kind, e.Text = ir.ExprUnknown, n.Type()

	default:
		e.Kind, e.Text = ir.ExprUnknown, n.Type()
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "comment" {
				continue
			}
			e.Args = append(e.Args, l.lowerExpr(child))
		}
	}
	return e
}

func unwrapParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" && n.NamedChildCount() > 0 {
		n = lastExprChild(n)
	}
	return n
}

func lastExprChild(n *sitter.Node) *sitter.Node {
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		if child := n.NamedChild(i); child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
