package lsc

// Optimizer is the greedy multi-pass tree rewriter: constant folding,
// dead-code elimination, branch/loop simplification, small-trip
// unrolling, and a restricted form of inlining. Passes repeat until a
// full pass makes zero rewrites or the pass cap is reached, and running
// the optimizer twice on the same input must be idempotent — which
// holds here because a pass that finds nothing to rewrite is a no-op
// by construction.
type Optimizer struct {
	cfg        *Config
	unrollCap  int
	module     *Module
	candidates map[string]*FuncDecl
}

func NewOptimizer(cfg *Config) *Optimizer {
	return &Optimizer{cfg: cfg, unrollCap: cfg.GetInt("compiler.unroll_cap")}
}

// inlineMaxSites is the "called from ≤K sites" gate and inlineMaxNodes
// the "small body" gate for inlining candidacy.
const (
	inlineMaxSites = 3
	inlineMaxNodes = 8
)

// inlineCandidates finds free functions eligible for inlining: a single
// `return expr` body, non-recursive, non-throwing, called from few
// enough sites.
func (o *Optimizer) inlineCandidates(m *Module) map[string]*FuncDecl {
	cands := map[string]*FuncDecl{}
	for _, fn := range m.Functions {
		if len(fn.Throws) != 0 || len(fn.Body.Stmts) != 1 {
			continue
		}
		if countStmts(fn.Body.Stmts) > inlineMaxNodes {
			continue
		}
		ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
		if !ok || ret.Value == nil {
			continue
		}
		if callsName(fn.Body.Stmts, fn.Name) {
			continue
		}
		if countCallSites(m, fn.Name) > inlineMaxSites {
			continue
		}
		cands[fn.Name] = fn
	}
	return cands
}

// Run applies passes to every function body, method body, constructor
// body, and the top-level block, up to the configured pass cap. It
// returns the number of passes actually run (1 meaning the input was
// already a fixed point), useful for --verbose reporting.
func (o *Optimizer) Run(m *Module) int {
	o.module = m
	o.candidates = o.inlineCandidates(m)
	maxPasses := o.cfg.GetInt("compiler.passes")
	if maxPasses <= 0 {
		maxPasses = 4
	}
	ran := 0
	for ran < maxPasses {
		changed := false
		if rewriteBlockSlice(&m.TopLevel, o) {
			changed = true
		}
		for _, fn := range m.Functions {
			if rewriteBlockSlice(&fn.Body.Stmts, o) {
				changed = true
			}
		}
		for _, c := range m.Classes {
			for _, meth := range c.Methods {
				if rewriteBlockSlice(&meth.Body.Stmts, o) {
					changed = true
				}
			}
			if c.Constructor != nil {
				if rewriteBlockSlice(&c.Constructor.Body.Stmts, o) {
					changed = true
				}
			}
		}
		ran++
		if !changed {
			break
		}
	}
	return ran
}

// rewriteBlockSlice rewrites one statement list in place (folding,
// DCE, branch/loop simplification) and reports whether anything changed.
func rewriteBlockSlice(stmts *[]Stmt, o *Optimizer) bool {
	changed := false
	out := make([]Stmt, 0, len(*stmts))
	terminated := false
	for _, s := range *stmts {
		if terminated {
			changed = true
			continue // unreachable after return/break/continue
		}
		rewritten, ch := o.rewriteStmt(s)
		if ch {
			changed = true
		}
		out = append(out, rewritten...)
		if stmtAlwaysExits(s) {
			terminated = true
		}
	}
	if dropDeadLocals(&out) {
		changed = true
	}
	if changed || len(out) != len(*stmts) {
		*stmts = out
	}
	return changed
}

// dropDeadLocals removes declarations of pure, unreferenced locals.
// Owned handles and initializers containing calls are kept.
func dropDeadLocals(stmts *[]Stmt) bool {
	changed := false
	out := make([]Stmt, 0, len(*stmts))
	for i, s := range *stmts {
		if vd, ok := s.(*VarDeclStmt); ok && !vd.Owned {
			pure := vd.Init == nil || !exprHasCall(vd.Init)
			if pure && !referencesVar((*stmts)[i+1:], vd.Name) {
				changed = true
				continue
			}
		}
		out = append(out, s)
	}
	if changed {
		*stmts = out
	}
	return changed
}

// stmtAlwaysExits reports whether s unconditionally transfers control
// out of the remainder of its block (return/break/continue), making the
// statements after it in the same block dead.
func stmtAlwaysExits(s Stmt) bool {
	switch s.(type) {
	case *ReturnStmt, *BreakStmt, *ContinueStmt:
		return true
	}
	return false
}

// rewriteStmt rewrites a single statement, possibly expanding it into
// zero or more replacement statements (e.g. loop unrolling, `if true`
// collapsing, dead-variable elimination).
func (o *Optimizer) rewriteStmt(s Stmt) ([]Stmt, bool) {
	switch n := s.(type) {
	case *VarDeclStmt:
		changed := o.foldField(&n.Init)
		return []Stmt{n}, changed
	case *AssignStmt:
		c1 := o.foldField(&n.Target)
		c2 := o.foldField(&n.Value)
		return []Stmt{n}, c1 || c2
	case *ExprStmt:
		changed := o.foldField(&n.X)
		return []Stmt{n}, changed
	case *ReturnStmt:
		if n.Value == nil {
			return []Stmt{n}, false
		}
		changed := o.foldField(&n.Value)
		return []Stmt{n}, changed
	case *AwaitStmt:
		changed := o.foldField(&n.X)
		return []Stmt{n}, changed
	case *BlockStmt:
		changed := rewriteBlockSlice(&n.Stmts, o)
		return []Stmt{n}, changed
	case *IfStmt:
		return o.rewriteIf(n)
	case *WhileStmt:
		return o.rewriteWhile(n)
	case *ForRangeStmt:
		return o.rewriteForRange(n)
	default:
		return []Stmt{n}, false
	}
}

// foldField folds *e in place if it evaluates to a constant, reporting
// whether a rewrite happened. It also recurses into non-constant
// subexpressions so folding propagates bottom-up within one pass.
func (o *Optimizer) foldField(e *Expr) bool {
	if e == nil || *e == nil {
		return false
	}
	changed := o.foldSubexprs(*e)
	if isLiteralExpr(*e) {
		return changed
	}
	if call, ok := (*e).(*CallExpr); ok && call.Receiver == nil {
		if fn, found := o.candidates[call.CalleeName]; found && len(call.Args) == len(fn.Params) {
			ret := fn.Body.Stmts[0].(*ReturnStmt)
			subst := make(map[string]Expr, len(fn.Params))
			for i, p := range fn.Params {
				subst[p.Name] = call.Args[i]
			}
			*e = substituteExpr(ret.Value, subst)
			return true
		}
	}
	if c, ok := constOf(*e); ok {
		if folded := c.toExpr((*e).Span()); folded != nil {
			*e = folded
			return true
		}
	}
	return changed
}

func isLiteralExpr(e Expr) bool {
	switch e.(type) {
	case *IntLit, *FloatLit, *StringLit, *BoolLit:
		return true
	}
	return false
}

func (o *Optimizer) foldSubexprs(e Expr) bool {
	changed := false
	switch n := e.(type) {
	case *UnaryExpr:
		changed = o.foldField(&n.X) || changed
	case *BinaryExpr:
		changed = o.foldField(&n.L) || changed
		changed = o.foldField(&n.R) || changed
	case *CallExpr:
		changed = o.foldField(&n.Receiver) || changed
		for i := range n.Args {
			if o.foldField(&n.Args[i]) {
				changed = true
			}
		}
	case *IndexExpr:
		changed = o.foldField(&n.X) || changed
		changed = o.foldField(&n.Index) || changed
	case *MemberExpr:
		changed = o.foldField(&n.X) || changed
	case *CastExpr:
		changed = o.foldField(&n.X) || changed
	}
	return changed
}

// rewriteIf applies branch simplification: a constant
// `if true`/`if false` condition collapses to the taken branch's
// statements (or nothing, if none is taken), and a constant elif/else
// chain is pruned the same way.
func (o *Optimizer) rewriteIf(n *IfStmt) ([]Stmt, bool) {
	changed := o.foldField(&n.Cond)
	if rewriteBlockSlice(&n.Then.Stmts, o) {
		changed = true
	}
	for i := range n.Elifs {
		if o.foldField(&n.Elifs[i].Cond) {
			changed = true
		}
		if rewriteBlockSlice(&n.Elifs[i].Body.Stmts, o) {
			changed = true
		}
	}
	if n.Else != nil && rewriteBlockSlice(&n.Else.Stmts, o) {
		changed = true
	}

	if c, ok := constOf(n.Cond); ok && c.tag == TyBool {
		if c.b {
			return n.Then.Stmts, true
		}
		return o.firstTakenBranch(n.Elifs, n.Else), true
	}
	return []Stmt{n}, changed
}

func (o *Optimizer) firstTakenBranch(elifs []ElifClause, els *BlockStmt) []Stmt {
	if len(elifs) == 0 {
		if els != nil {
			return els.Stmts
		}
		return nil
	}
	head := elifs[0]
	if c, ok := constOf(head.Cond); ok && c.tag == TyBool {
		if c.b {
			return head.Body.Stmts
		}
		return o.firstTakenBranch(elifs[1:], els)
	}
	// Non-constant elif condition: can't statically resolve further;
	// keep it as a smaller if/elif chain.
	rest := &IfStmt{stmtBase: stmtBase{span: head.Cond.Span()}, Cond: head.Cond, Then: head.Body, Elifs: elifs[1:], Else: els}
	return []Stmt{rest}
}

// rewriteWhile drops loops whose condition folds to a constant `false`.
func (o *Optimizer) rewriteWhile(n *WhileStmt) ([]Stmt, bool) {
	changed := o.foldField(&n.Cond)
	if rewriteBlockSlice(&n.Body.Stmts, o) {
		changed = true
	}
	if c, ok := constOf(n.Cond); ok && c.tag == TyBool && !c.b {
		return nil, true
	}
	return []Stmt{n}, changed
}

// rewriteForRange implements the zero-step and small-trip-count rules.
func (o *Optimizer) rewriteForRange(n *ForRangeStmt) ([]Stmt, bool) {
	changed := o.foldField(&n.Start)
	changed = o.foldField(&n.End) || changed
	if n.Step != nil && o.foldField(&n.Step) {
		changed = true
	}
	if rewriteBlockSlice(&n.Body.Stmts, o) {
		changed = true
	}

	if n.Step != nil && isConstZero(n.Step) {
		// "for-range with constant step == 0 is replaced with an empty
		// block (safe termination), not an error".
		return nil, true
	}
	if n.Parallel {
		// parallel-for is never unrolled: its iterations are a runtime
		// concurrency concept, not a compile-time sequence.
		return []Stmt{n}, changed
	}

	startC, sok := constOf(n.Start)
	endC, eok := constOf(n.End)
	if !sok || !eok || startC.tag != TyI64 || endC.tag != TyI64 {
		return []Stmt{n}, changed
	}
	step := int64(1)
	if n.Step != nil {
		stepC, ok := constOf(n.Step)
		if !ok || stepC.tag != TyI64 {
			return []Stmt{n}, changed
		}
		step = stepC.i
	}
	if step <= 0 {
		return []Stmt{n}, changed
	}
	trip := (endC.i - startC.i + step - 1) / step
	if trip < 0 {
		trip = 0
	}
	if trip > int64(o.unrollCap) {
		return []Stmt{n}, changed
	}

	var out []Stmt
	for i := int64(0); i < trip; i++ {
		val := startC.i + i*step
		subst := map[string]Expr{n.Var: &IntLit{exprBase: exprBase{span: n.Span(), typ: I64}, Value: val}}
		out = append(out, substituteStmts(n.Body.Stmts, subst)...)
	}
	return out, true
}
