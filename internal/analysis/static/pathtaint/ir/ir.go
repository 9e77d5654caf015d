// Filename: ir/ir.go
// Package ir defines the intermediate form the path taint analysis consumes:
// one Function per C function, made of statements and expressions that carry
// source locations. The tree-sitter lowering in package frontend produces it,
// and other tools can supply it as JSON.
package ir

import (
	"strings"

	"github.com/xkilldash9x/pathtaint/api/schemas"
)

// Location is shared with the findings schema so that positions flow to
// reports unchanged.
type Location = schemas.Location

// ExprKind enumerates expression shapes.
type ExprKind string

const (
	ExprIdent       ExprKind = "ident"
	ExprString      ExprKind = "string"
	ExprNumber      ExprKind = "number"
	ExprChar        ExprKind = "char"
	ExprSizeof      ExprKind = "sizeof"
	ExprCall        ExprKind = "call"
	ExprBinary      ExprKind = "binary"
	ExprUnary       ExprKind = "unary"
	ExprAddressOf   ExprKind = "address_of"
	ExprDeref       ExprKind = "deref"
	ExprIndex       ExprKind = "index"
	ExprField       ExprKind = "field"
	ExprCast        ExprKind = "cast"
	ExprConditional ExprKind = "conditional"
	ExprAssign      ExprKind = "assign"
	ExprComma       ExprKind = "comma"
	// ExprUnknown keeps the operands of a construct the front-end did not
	// recognize. It propagates like any other operator.
	ExprUnknown ExprKind = "unknown"
)

// Expr is a single expression node.
//
// Operand layout in Args by kind:
//
//	call         arguments
//	binary       [left, right]
//	unary        [operand]
//	address_of   [operand]
//	deref        [operand]
//	index        [base, index]
//	field        [base]
//	cast         [operand]
//	conditional  [cond, then, else]
//	assign       [target, value]
//	comma        operands in order
//	unknown      any children
type Expr struct {
	Kind ExprKind `json:"kind"`
	Loc  Location `json:"loc"`
	// Name is the resolved symbol for identifiers, the callee for calls and
	// the member for field accesses.
	Name string `json:"name,omitempty"`
	// Text is the source spelling: identifier, literal value or operator.
	Text string  `json:"text,omitempty"`
	Args []*Expr `json:"args,omitempty"`
}

// Arg returns operand i or nil.
func (e *Expr) Arg(i int) *Expr {
	if e == nil || i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// IsLiteral reports whether the expression is a compile-time constant.
func (e *Expr) IsLiteral() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ExprString, ExprNumber, ExprChar, ExprSizeof:
		return true
	case ExprCast:
		return e.Arg(0).IsLiteral()
	}
	return false
}

// Render prints a compact C-like spelling of the expression, used to name
// parameter sources such as argv[1].
func (e *Expr) Render() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case ExprIdent, ExprString, ExprNumber, ExprChar:
		return e.Text
	case ExprIndex:
		return e.Arg(0).Render() + "[" + e.Arg(1).Render() + "]"
	case ExprField:
		return e.Arg(0).Render() + "." + e.Name
	case ExprAddressOf:
		return "&" + e.Arg(0).Render()
	case ExprDeref:
		return "*" + e.Arg(0).Render()
	case ExprCast:
		return e.Arg(0).Render()
	case ExprBinary:
		return e.Arg(0).Render() + e.Text + e.Arg(1).Render()
	case ExprCall:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = a.Render()
		}
		return e.Name + "(" + strings.Join(parts, ", ") + ")"
	}
	if e.Text != "" {
		return e.Text
	}
	return string(e.Kind)
}

// StmtKind enumerates statement shapes.
type StmtKind string

const (
	// StmtDecl declares Symbol, optionally initialized from Value.
	StmtDecl StmtKind = "decl"
	// StmtExpr evaluates Value for its effects.
	StmtExpr StmtKind = "expr"
	// StmtReturn returns Value (may be nil).
	StmtReturn StmtKind = "return"
	// StmtBlock groups Body.
	StmtBlock StmtKind = "block"
	// StmtBranch evaluates Value then runs one of Arms. if/else, switch and
	// the like lower to this; a missing else is an empty arm. A switch arm
	// marked in FallsThrough may run on into the next arm.
	StmtBranch StmtKind = "branch"
	// StmtLoop evaluates Value and runs Body zero or more times.
	StmtLoop StmtKind = "loop"
	// StmtUnknown evaluates Value and Body without further meaning.
	StmtUnknown StmtKind = "unknown"
)

// Stmt is a single statement node.
type Stmt struct {
	Kind StmtKind `json:"kind"`
	Loc  Location `json:"loc"`

	// Declarations.
	Symbol  string `json:"symbol,omitempty"`
	Name    string `json:"name,omitempty"`
	IsArray bool   `json:"is_array,omitempty"`

	Value *Expr     `json:"value,omitempty"`
	Body  []*Stmt   `json:"body,omitempty"`
	Arms  [][]*Stmt `json:"arms,omitempty"`
	// FallsThrough[i] reports whether control can leave Arms[i] by running
	// into Arms[i+1], as a switch case without break does.
	FallsThrough []bool `json:"falls_through,omitempty"`
}

// FallsInto reports whether arm i of a branch can continue into arm i+1.
func (s *Stmt) FallsInto(i int) bool {
	return s != nil && i >= 0 && i < len(s.FallsThrough) && s.FallsThrough[i]
}

// Param is a formal parameter.
type Param struct {
	Symbol  string   `json:"symbol"`
	Name    string   `json:"name"`
	Loc     Location `json:"loc"`
	IsArray bool     `json:"is_array,omitempty"`
}

// Function is one analyzable function body.
type Function struct {
	Name   string   `json:"name"`
	Loc    Location `json:"loc"`
	Params []Param  `json:"params,omitempty"`
	Body   []*Stmt  `json:"body"`
}

// TranslationUnit is all functions of one source file.
type TranslationUnit struct {
	File      string      `json:"file"`
	Functions []*Function `json:"functions"`
	// ParseErrors counts syntax error regions the front-end skipped over.
	ParseErrors int `json:"parse_errors,omitempty"`
}

// Function returns the function with the given name, or nil.
func (tu *TranslationUnit) Function(name string) *Function {
	for _, f := range tu.Functions {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}
