// Filename: pathtaint/builder.go
package pathtaint

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/pathtaint/api/schemas"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/catalog"
	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/ir"
)

// Reserved symbol prefixes. C identifiers cannot start with '$'.
const (
	symTemp    = "$tmp"
	symLiteral = "$lit"
	symSource  = "$src:"
	symReturn  = "$return"
)

// builder lowers one ir.Function into a Graph. It keeps the current version
// node of every symbol in env, so the graph is in SSA style: a write creates
// a new node keyed by (symbol, point) and a read refers to the latest one.
type builder struct {
	g         *Graph
	cat       *catalog.Catalog
	summaries map[string]*FunctionSummary
	fn        *ir.Function

	point int
	env   map[string]NodeID
	// aliases maps a pointer symbol to the buffer it points into.
	aliases map[string]string
	// mayAliases maps a pointer to the buffers it points into on some paths
	// only. Reads see the pointer's own value and the buffers; writes through
	// it are weak writes to both.
	mayAliases map[string][]string
	arrays     map[string]bool
	// untrusted holds parameters named by a param_source entry; every read of
	// them is a fresh source.
	untrusted map[string]bool
	returns   []NodeID

	// literalSanitizes makes assigning a literal a strong update. Without it
	// the old value flows into the new version.
	literalSanitizes bool
}

// BuildGraph constructs the dataflow graph of fn. summaries may be nil; calls
// to functions with a summary use it instead of conservative passthrough.
func BuildGraph(file string, fn *ir.Function, cat *catalog.Catalog, summaries map[string]*FunctionSummary) *Graph {
	b := &builder{
		g:                newGraph(file, fn.Name),
		cat:              cat,
		summaries:        summaries,
		fn:               fn,
		env:              make(map[string]NodeID),
		aliases:          make(map[string]string),
		mayAliases:       make(map[string][]string),
		arrays:           make(map[string]bool),
		untrusted:        make(map[string]bool),
		literalSanitizes: cat.IsSanitizer(catalog.LiteralOperation),
	}
	b.params()
	b.stmts(fn.Body)
	b.finishReturn()
	return b.g
}

func (b *builder) next() int {
	b.point++
	return b.point
}

func (b *builder) params() {
	untrusted := b.cat.ParamSources(b.fn.Name)
	for i, p := range b.fn.Params {
		id := b.g.node(NodeKey{Symbol: p.Symbol, Point: 0}, NodeParam, p.Loc)
		b.g.Params = append(b.g.Params, id)
		b.env[p.Symbol] = id
		b.arrays[p.Symbol] = p.IsArray
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("param%d", i)
		}
		b.g.addSource(id, schemas.Provenance{SourceLocation: p.Loc, SourceFunction: name}, i)
		for _, e := range untrusted {
			if e.Covers(i) {
				b.untrusted[p.Symbol] = true
			}
		}
	}
}

func (b *builder) finishReturn() {
	if len(b.returns) == 0 {
		return
	}
	ret := b.g.node(NodeKey{Symbol: symReturn, Point: b.next()}, NodeReturn, b.fn.Loc)
	for _, r := range b.returns {
		b.link(r, ret)
	}
	b.g.Return = ret
}

// -- Node helpers --

func (b *builder) temp(loc schemas.Location, inputs ...NodeID) NodeID {
	id := b.g.node(NodeKey{Symbol: symTemp, Point: b.next()}, NodeTemp, loc)
	for _, in := range inputs {
		b.link(in, id)
	}
	return id
}

func (b *builder) link(from, to NodeID) {
	if from == noNode {
		return
	}
	b.g.addEdge(from, to, false)
}

func (b *builder) source(loc schemas.Location, name string) NodeID {
	id := b.g.node(NodeKey{Symbol: symSource + name, Point: b.next()}, NodeSource, loc)
	b.g.addSource(id, schemas.Provenance{SourceLocation: loc, SourceFunction: name}, -1)
	return id
}

// canonical follows pointer aliases to the buffer symbol.
func (b *builder) canonical(sym string) string {
	seen := 0
	for {
		target, ok := b.aliases[sym]
		if !ok || seen > len(b.aliases) {
			return sym
		}
		sym = target
		seen++
	}
}

// current returns the latest version of a resolved symbol, creating an entry
// node for symbols never written in this function (globals, macros).
func (b *builder) current(sym string, loc schemas.Location) NodeID {
	if id, ok := b.env[sym]; ok {
		return id
	}
	id := b.g.node(NodeKey{Symbol: sym, Point: 0}, NodeVariable, loc)
	b.env[sym] = id
	return id
}

// read returns the value of a symbol as seen through its aliases.
func (b *builder) read(sym string, loc schemas.Location) NodeID {
	sym = b.canonical(sym)
	id := b.current(sym, loc)
	targets := b.mayAliases[sym]
	if len(targets) == 0 {
		return id
	}
	inputs := []NodeID{id}
	for _, t := range targets {
		inputs = append(inputs, b.current(t, loc))
	}
	return b.temp(loc, inputs...)
}

// dropAlias forgets what sym pointed into before it is re-assigned.
func (b *builder) dropAlias(sym string) {
	delete(b.aliases, sym)
	delete(b.mayAliases, sym)
}

func (b *builder) newVersion(sym string, loc schemas.Location) NodeID {
	id := b.g.node(NodeKey{Symbol: sym, Point: b.next()}, NodeVariable, loc)
	b.env[sym] = id
	return id
}

// strongWrite replaces the value of sym.
func (b *builder) strongWrite(sym string, loc schemas.Location, inputs ...NodeID) NodeID {
	id := b.newVersion(sym, loc)
	for _, in := range inputs {
		b.link(in, id)
	}
	return id
}

// weakWrite adds to the value of sym, keeping what it held before. Buffers
// sym may point into receive the inputs too.
func (b *builder) weakWrite(sym string, loc schemas.Location, inputs ...NodeID) NodeID {
	canon := b.canonical(sym)
	old := b.read(sym, loc)
	id := b.newVersion(canon, loc)
	b.link(old, id)
	for _, in := range inputs {
		b.link(in, id)
	}
	for _, t := range b.mayAliases[canon] {
		prev := b.current(t, loc)
		tv := b.newVersion(t, loc)
		b.link(prev, tv)
		for _, in := range inputs {
			b.link(in, tv)
		}
	}
	return id
}

// -- Destinations --

// baseSymbol resolves the variable an lvalue or buffer argument designates,
// looking through pointer arithmetic, casts, address-of, dereference,
// subscripts and field accesses. It returns "" when there is none.
func baseSymbol(e *ir.Expr) string {
	for e != nil {
		switch e.Kind {
		case ir.ExprIdent:
			return e.Name
		case ir.ExprCast, ir.ExprAddressOf, ir.ExprDeref, ir.ExprIndex, ir.ExprField:
			e = e.Arg(0)
		case ir.ExprBinary:
			if e.Text != "+" && e.Text != "-" {
				return ""
			}
			if s := baseSymbol(e.Arg(0)); s != "" {
				return s
			}
			e = e.Arg(1)
		case ir.ExprUnary:
			if e.Text != "++" && e.Text != "--" {
				return ""
			}
			e = e.Arg(0)
		default:
			return ""
		}
	}
	return ""
}

// isPlainTarget reports whether writing through e replaces the whole variable.
func isPlainTarget(e *ir.Expr) bool {
	for e != nil && e.Kind == ir.ExprCast {
		e = e.Arg(0)
	}
	return e != nil && e.Kind == ir.ExprIdent
}

// aliasTarget returns the local buffer a pointer expression points into, or "".
func (b *builder) aliasTarget(e *ir.Expr) string {
	for e != nil {
		switch e.Kind {
		case ir.ExprCast:
			e = e.Arg(0)
		case ir.ExprIdent:
			if b.untrusted[e.Name] {
				return ""
			}
			canon := b.canonical(e.Name)
			if b.arrays[canon] {
				return canon
			}
			return ""
		case ir.ExprAddressOf:
			if s := baseSymbol(e.Arg(0)); s != "" && !b.untrusted[s] {
				return b.canonical(s)
			}
			return ""
		case ir.ExprBinary:
			if e.Text != "+" && e.Text != "-" {
				return ""
			}
			if t := b.aliasTarget(e.Arg(0)); t != "" {
				return t
			}
			e = e.Arg(1)
		default:
			return ""
		}
	}
	return ""
}

// -- Statements --

func (b *builder) stmts(list []*ir.Stmt) {
	for _, s := range list {
		b.stmt(s)
	}
}

func (b *builder) stmt(s *ir.Stmt) {
	if s == nil {
		return
	}
	switch s.Kind {
	case ir.StmtDecl:
		b.arrays[s.Symbol] = s.IsArray
		b.dropAlias(s.Symbol)
		if s.Value == nil {
			b.strongWrite(s.Symbol, s.Loc)
			return
		}
		b.assignSymbol(s.Symbol, s.Value, s.Loc)

	case ir.StmtExpr:
		b.eval(s.Value)

	case ir.StmtReturn:
		if v := b.eval(s.Value); v != noNode {
			b.returns = append(b.returns, v)
		}

	case ir.StmtBlock:
		b.stmts(s.Body)

	case ir.StmtBranch:
		b.eval(s.Value)
		b.branch(s)

	case ir.StmtLoop:
		b.loop(s)

	default:
		b.eval(s.Value)
		b.stmts(s.Body)
		for _, arm := range s.Arms {
			b.stmts(arm)
		}
	}
}

// assignSymbol handles `sym = value` for declarations and plain assignments.
// Pointing a pointer into a local buffer aliases it instead of copying.
func (b *builder) assignSymbol(sym string, value *ir.Expr, loc schemas.Location) NodeID {
	if target := b.aliasTarget(value); target != "" && target != sym {
		b.eval(value)
		b.dropAlias(sym)
		b.aliases[sym] = target
		return b.read(target, loc)
	}
	v := b.eval(value)
	b.dropAlias(sym)
	return b.strongWrite(sym, loc, v)
}

type envSnapshot struct {
	env        map[string]NodeID
	aliases    map[string]string
	mayAliases map[string][]string
}

func newEnvSnapshot() envSnapshot {
	return envSnapshot{
		env:        make(map[string]NodeID),
		aliases:    make(map[string]string),
		mayAliases: make(map[string][]string),
	}
}

// copyInto copies the maps of s into d. Target slices are never mutated in
// place, so sharing them is safe.
func (s envSnapshot) copyInto(d envSnapshot) {
	for k, v := range s.env {
		d.env[k] = v
	}
	for k, v := range s.aliases {
		d.aliases[k] = v
	}
	for k, v := range s.mayAliases {
		d.mayAliases[k] = v
	}
}

func (b *builder) snapshot() envSnapshot {
	s := newEnvSnapshot()
	envSnapshot{env: b.env, aliases: b.aliases, mayAliases: b.mayAliases}.copyInto(s)
	return s
}

func (b *builder) restore(s envSnapshot) {
	d := newEnvSnapshot()
	s.copyInto(d)
	b.env, b.aliases, b.mayAliases = d.env, d.aliases, d.mayAliases
}

// branch builds each arm from the starting state, or from the join of the
// starting state and the previous arm when that arm falls through, and joins
// the results.
func (b *builder) branch(s *ir.Stmt) {
	if len(s.Arms) == 0 {
		return
	}
	start := b.snapshot()
	ends := make([]envSnapshot, 0, len(s.Arms))
	for i, arm := range s.Arms {
		b.restore(start)
		if i > 0 && s.FallsInto(i-1) {
			b.restore(b.join([]envSnapshot{start, ends[i-1]}))
		}
		b.stmts(arm)
		ends = append(ends, b.snapshot())
	}
	b.restore(b.join(ends))
}

// join merges the states at the end of alternative paths. Symbols with
// different versions meet in a phi node. A pointer that aliases a buffer on
// every path keeps the alias; one that does on some paths only becomes a
// may-alias whose phi takes the buffer's version from the aliasing paths and
// the pointer's own value from the others.
func (b *builder) join(ends []envSnapshot) envSnapshot {
	joined := newEnvSnapshot()
	if len(ends) == 0 {
		return joined
	}

	var pointers []string
	seenPtr := make(map[string]bool)
	for _, end := range ends {
		for p := range end.aliases {
			if !seenPtr[p] {
				seenPtr[p] = true
				pointers = append(pointers, p)
			}
		}
	}
	sort.Strings(pointers)

	// Pointers whose value is decided below rather than by the symbol loop.
	split := make(map[string]NodeID)
	for _, p := range pointers {
		first, agree := ends[0].aliases[p], true
		for _, end := range ends[1:] {
			if end.aliases[p] != first {
				agree = false
				break
			}
		}
		if agree {
			joined.aliases[p] = first
			continue
		}

		var versions []NodeID
		var targets []string
		for _, end := range ends {
			sym := p
			if t := end.aliases[p]; t != "" {
				sym = t
				targets = appendUnique(targets, t)
			}
			v, ok := end.env[sym]
			if !ok {
				v = b.g.node(NodeKey{Symbol: sym, Point: 0}, NodeVariable, b.fn.Loc)
			}
			versions = appendUniqueNode(versions, v)
		}
		for _, end := range ends {
			for _, t := range end.mayAliases[p] {
				targets = appendUnique(targets, t)
			}
		}
		sort.Strings(targets)
		joined.mayAliases[p] = targets
		split[p] = b.phi(p, versions)
	}

	symbols := make([]string, 0)
	seen := make(map[string]bool)
	for _, end := range ends {
		for sym := range end.env {
			if !seen[sym] {
				seen[sym] = true
				symbols = append(symbols, sym)
			}
		}
		for p, targets := range end.mayAliases {
			if _, ok := joined.aliases[p]; ok {
				continue
			}
			if _, ok := split[p]; ok {
				continue
			}
			merged := joined.mayAliases[p]
			for _, t := range targets {
				merged = appendUnique(merged, t)
			}
			sort.Strings(merged)
			joined.mayAliases[p] = merged
		}
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		if id, ok := split[sym]; ok {
			joined.env[sym] = id
			continue
		}
		var versions []NodeID
		for _, end := range ends {
			if id, ok := end.env[sym]; ok {
				versions = appendUniqueNode(versions, id)
			}
		}
		joined.env[sym] = b.phi(sym, versions)
	}
	for p, id := range split {
		joined.env[p] = id
	}
	return joined
}

// phi returns the single version, or a phi node over several.
func (b *builder) phi(sym string, versions []NodeID) NodeID {
	if len(versions) == 1 {
		return versions[0]
	}
	id := b.g.node(NodeKey{Symbol: sym, Point: b.next()}, NodePhi, b.g.nodes[versions[0]].Loc)
	for _, v := range versions {
		b.link(v, id)
	}
	return id
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

func appendUniqueNode(list []NodeID, id NodeID) []NodeID {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}

// loop places a phi per live symbol at the head, builds the body once and
// closes the back edges. Taint that needs several trips around the loop is
// found by the fixpoint, not by unrolling. Symbols the loop mentions get an
// entry node first, so that a global first read inside the body still has a
// head phi for its back edge.
func (b *builder) loop(s *ir.Stmt) {
	for _, name := range loopSymbols(s) {
		if b.untrusted[name] {
			continue
		}
		canon := b.canonical(name)
		b.current(canon, s.Loc)
		for _, t := range b.mayAliases[canon] {
			b.current(t, s.Loc)
		}
	}

	symbols := make([]string, 0, len(b.env))
	for sym := range b.env {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	heads := make(map[string]NodeID, len(symbols))
	for _, sym := range symbols {
		pre := b.env[sym]
		phi := b.g.node(NodeKey{Symbol: sym, Point: b.next()}, NodePhi, s.Loc)
		b.link(pre, phi)
		b.env[sym] = phi
		heads[sym] = phi
	}

	b.eval(s.Value)
	b.stmts(s.Body)

	for _, sym := range symbols {
		phi := heads[sym]
		if end := b.env[sym]; end != phi {
			b.link(end, phi)
		}
		b.env[sym] = phi
	}
}

// loopSymbols lists the identifiers a loop's condition and body mention, in
// first-seen order.
func loopSymbols(s *ir.Stmt) []string {
	var names []string
	seen := make(map[string]bool)
	var expr func(e *ir.Expr)
	expr = func(e *ir.Expr) {
		if e == nil {
			return
		}
		if e.Kind == ir.ExprIdent && e.Name != "" && !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
		for _, a := range e.Args {
			expr(a)
		}
	}
	var stmts func(list []*ir.Stmt)
	stmts = func(list []*ir.Stmt) {
		for _, st := range list {
			if st == nil {
				continue
			}
			expr(st.Value)
			stmts(st.Body)
			for _, arm := range st.Arms {
				stmts(arm)
			}
		}
	}
	expr(s.Value)
	stmts(s.Body)
	return names
}

// -- Expressions --

// eval returns the node holding the value of e, or noNode for no value.
func (b *builder) eval(e *ir.Expr) NodeID {
	if e == nil {
		return noNode
	}
	switch e.Kind {
	case ir.ExprString, ir.ExprNumber, ir.ExprChar, ir.ExprSizeof:
		return b.g.node(NodeKey{Symbol: symLiteral, Point: b.next()}, NodeLiteral, e.Loc)

	case ir.ExprIdent:
		if b.untrusted[e.Name] {
			return b.source(e.Loc, e.Render())
		}
		return b.read(e.Name, e.Loc)

	case ir.ExprIndex:
		if base := e.Arg(0); base != nil && base.Kind == ir.ExprIdent && b.untrusted[base.Name] {
			b.eval(e.Arg(1))
			return b.source(e.Loc, e.Render())
		}
		v := b.eval(e.Arg(0))
		b.eval(e.Arg(1))
		return v

	case ir.ExprCast, ir.ExprDeref, ir.ExprAddressOf, ir.ExprField:
		return b.eval(e.Arg(0))

	case ir.ExprCall:
		return b.call(e)

	case ir.ExprAssign:
		return b.assign(e)

	case ir.ExprComma:
		last := noNode
		for _, a := range e.Args {
			last = b.eval(a)
		}
		return last

	case ir.ExprConditional:
		b.eval(e.Arg(0))
		start := b.snapshot()
		then := b.eval(e.Arg(1))
		thenEnv := b.snapshot()
		b.restore(start)
		otherwise := b.eval(e.Arg(2))
		b.mergeInto(thenEnv)
		return b.temp(e.Loc, then, otherwise)

	case ir.ExprUnary:
		v := b.eval(e.Arg(0))
		if (e.Text == "++" || e.Text == "--") && isPlainTarget(e.Arg(0)) {
			return b.weakWrite(e.Arg(0).Name, e.Loc)
		}
		return b.temp(e.Loc, v)
	}

	// Binary operators and anything unrecognized: every operand flows to the
	// result.
	inputs := make([]NodeID, 0, len(e.Args))
	for _, a := range e.Args {
		inputs = append(inputs, b.eval(a))
	}
	return b.temp(e.Loc, inputs...)
}

// mergeInto joins the current state with other, as after a `?:`.
func (b *builder) mergeInto(other envSnapshot) {
	b.restore(b.join([]envSnapshot{other, b.snapshot()}))
}

func (b *builder) assign(e *ir.Expr) NodeID {
	target, value := e.Arg(0), e.Arg(1)
	if e.Text == "=" && target != nil && target.Kind == ir.ExprIdent && !b.untrusted[target.Name] {
		if value.IsLiteral() && !b.literalSanitizes {
			v := b.eval(value)
			old := b.read(target.Name, e.Loc)
			b.dropAlias(target.Name)
			return b.strongWrite(target.Name, e.Loc, old, v)
		}
		return b.assignSymbol(target.Name, value, e.Loc)
	}
	v := b.eval(value)
	sym := baseSymbol(target)
	if sym == "" {
		b.eval(target)
		return v
	}
	return b.weakWrite(sym, e.Loc, v)
}

// call applies the catalog and summary semantics of a call expression.
func (b *builder) call(e *ir.Expr) NodeID {
	args := make([]NodeID, len(e.Args))
	for i, a := range e.Args {
		args[i] = b.eval(a)
	}

	name := e.Name
	sinkArgs := b.cat.SinkArgs(name)
	for _, idx := range sinkArgs {
		if idx >= len(args) || args[idx] == noNode {
			continue
		}
		b.g.Sinks = append(b.g.Sinks, SinkSite{
			Loc:       e.Loc,
			Function:  name,
			ArgIndex:  idx,
			Node:      args[idx],
			Enclosing: b.fn.Name,
		})
	}

	if entry, ok := b.cat.Source(name); ok {
		return b.callSource(e, entry, args)
	}
	if b.cat.IsSanitizer(name) {
		id := b.g.node(NodeKey{Symbol: symTemp, Point: b.next()}, NodeTemp, e.Loc)
		for _, a := range args {
			b.g.addEdge(a, id, true)
		}
		return id
	}
	if entry, ok := b.cat.Propagator(name); ok {
		return b.callPropagator(e, entry, args)
	}
	if len(sinkArgs) > 0 {
		// A sink's result is a handle or status, not the path.
		return noNode
	}
	if summary, ok := b.summaries[name]; ok && name != "" {
		return b.callSummarized(e, summary, args)
	}
	return b.temp(e.Loc, args...)
}

func (b *builder) callSource(e *ir.Expr, entry catalog.Entry, args []NodeID) NodeID {
	src := b.source(e.Loc, e.Name)
	idx, writesArg := entry.Index()
	if !writesArg {
		return src
	}
	for i, a := range e.Args {
		if !entry.Covers(i) {
			continue
		}
		if sym := baseSymbol(a); sym != "" {
			b.weakWrite(sym, e.Loc, src)
		}
	}
	if idx == 0 && len(args) > 0 {
		// fgets and friends return their buffer.
		if sym := baseSymbol(e.Args[0]); sym != "" {
			return b.read(sym, e.Loc)
		}
	}
	return noNode
}

func (b *builder) callPropagator(e *ir.Expr, entry catalog.Entry, args []NodeID) NodeID {
	var inputs []NodeID
	for i, a := range args {
		if !entry.Covers(i) {
			inputs = append(inputs, a)
		}
	}
	result := noNode
	for i, a := range e.Args {
		if !entry.Covers(i) {
			continue
		}
		sym := baseSymbol(a)
		if sym == "" {
			continue
		}
		var v NodeID
		if entry.Mode == catalog.ModeCopy && isPlainTarget(a) && b.canonical(sym) == sym && len(b.mayAliases[sym]) == 0 {
			v = b.strongWrite(sym, e.Loc, inputs...)
		} else {
			v = b.weakWrite(sym, e.Loc, inputs...)
		}
		if result == noNode {
			result = v
		}
	}
	if result == noNode {
		return b.temp(e.Loc, inputs...)
	}
	return result
}

// callSummarized imports a callee summary: its return value and the sinks its
// parameters reach.
func (b *builder) callSummarized(e *ir.Expr, s *FunctionSummary, args []NodeID) NodeID {
	sources := make([]NodeID, 0, len(s.ReturnProvenances))
	for _, p := range s.ReturnProvenances {
		src := b.g.node(NodeKey{Symbol: symSource + p.SourceFunction, Point: b.next()}, NodeSource, p.SourceLocation)
		b.g.addSource(src, p, -1)
		sources = append(sources, src)
	}
	result := b.g.node(NodeKey{Symbol: symTemp, Point: b.next()}, NodeTemp, e.Loc)
	for _, src := range sources {
		b.link(src, result)
	}
	for i, a := range args {
		if s.ParamToReturn[i] {
			b.link(a, result)
		}
		for _, ref := range s.ParamToSinks[i] {
			if a == noNode {
				continue
			}
			b.g.Sinks = append(b.g.Sinks, SinkSite{
				Loc:       ref.Location,
				Function:  ref.Function,
				ArgIndex:  ref.ArgIndex,
				Node:      a,
				Enclosing: ref.Enclosing,
				Remote:    true,
			})
		}
	}
	return result
}
