package lsc

// This file collects the small AST traversal/clone helpers shared by
// the semantic analyzer and the optimizer, built from what the
// optimizer's unrolling/inlining and the parallel-for validation
// require.

// cloneExpr returns a deep, independent copy of e. Used by loop
// unrolling to stamp out one Body per iteration and by
// inlining to substitute parameters without aliasing the callee's AST.
func cloneExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *IntLit:
		c := *n
		return &c
	case *FloatLit:
		c := *n
		return &c
	case *StringLit:
		c := *n
		return &c
	case *BoolLit:
		c := *n
		return &c
	case *VarRef:
		c := *n
		return &c
	case *UnaryExpr:
		c := *n
		c.X = cloneExpr(n.X)
		return &c
	case *BinaryExpr:
		c := *n
		c.L = cloneExpr(n.L)
		c.R = cloneExpr(n.R)
		return &c
	case *CallExpr:
		c := *n
		c.Receiver = cloneExpr(n.Receiver)
		c.Args = make([]Expr, len(n.Args))
		for i, a := range n.Args {
			c.Args[i] = cloneExpr(a)
		}
		return &c
	case *IndexExpr:
		c := *n
		c.X = cloneExpr(n.X)
		c.Index = cloneExpr(n.Index)
		return &c
	case *MemberExpr:
		c := *n
		c.X = cloneExpr(n.X)
		return &c
	case *CastExpr:
		c := *n
		c.X = cloneExpr(n.X)
		return &c
	case *RangeExpr:
		c := *n
		c.Start = cloneExpr(n.Start)
		c.End = cloneExpr(n.End)
		c.Step = cloneExpr(n.Step)
		return &c
	default:
		return e
	}
}

func cloneStmt(s Stmt) Stmt {
	if s == nil {
		return nil
	}
	switch n := s.(type) {
	case *BlockStmt:
		return cloneBlock(n)
	case *VarDeclStmt:
		c := *n
		c.Init = cloneExpr(n.Init)
		c.Symbol = nil
		return &c
	case *AssignStmt:
		c := *n
		c.Target = cloneExpr(n.Target)
		c.Value = cloneExpr(n.Value)
		return &c
	case *IfStmt:
		c := *n
		c.Cond = cloneExpr(n.Cond)
		c.Then = cloneBlock(n.Then)
		c.Elifs = make([]ElifClause, len(n.Elifs))
		for i, e := range n.Elifs {
			c.Elifs[i] = ElifClause{Cond: cloneExpr(e.Cond), Body: cloneBlock(e.Body)}
		}
		if n.Else != nil {
			c.Else = cloneBlock(n.Else)
		}
		return &c
	case *WhileStmt:
		c := *n
		c.Cond = cloneExpr(n.Cond)
		c.Body = cloneBlock(n.Body)
		return &c
	case *ForRangeStmt:
		c := *n
		c.Start = cloneExpr(n.Start)
		c.End = cloneExpr(n.End)
		c.Step = cloneExpr(n.Step)
		c.Body = cloneBlock(n.Body)
		c.Symbol = nil
		return &c
	case *ReturnStmt:
		c := *n
		c.Value = cloneExpr(n.Value)
		return &c
	case *BreakStmt:
		c := *n
		return &c
	case *ContinueStmt:
		c := *n
		return &c
	case *ExprStmt:
		c := *n
		c.X = cloneExpr(n.X)
		return &c
	case *MarkerStmt:
		c := *n
		return &c
	case *SpawnStmt:
		c := *n
		if call, ok := cloneExpr(n.Call).(*CallExpr); ok {
			c.Call = call
		}
		return &c
	case *AwaitStmt:
		c := *n
		c.X = cloneExpr(n.X)
		return &c
	default:
		return s
	}
}

func cloneBlock(b *BlockStmt) *BlockStmt {
	if b == nil {
		return nil
	}
	c := &BlockStmt{stmtBase: b.stmtBase}
	c.Stmts = make([]Stmt, len(b.Stmts))
	for i, s := range b.Stmts {
		c.Stmts[i] = cloneStmt(s)
	}
	return c
}

// substituteExpr returns a clone of e with every VarRef named in subst
// replaced by the given expression (used by the optimizer's inliner and
// its loop-unroller to bind parameters/the loop variable to constants).
func substituteExpr(e Expr, subst map[string]Expr) Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *VarRef:
		if repl, ok := subst[n.Name]; ok {
			return cloneExpr(repl)
		}
		c := *n
		return &c
	case *UnaryExpr:
		c := *n
		c.X = substituteExpr(n.X, subst)
		return &c
	case *BinaryExpr:
		c := *n
		c.L = substituteExpr(n.L, subst)
		c.R = substituteExpr(n.R, subst)
		return &c
	case *CallExpr:
		c := *n
		c.Receiver = substituteExpr(n.Receiver, subst)
		c.Args = make([]Expr, len(n.Args))
		for i, a := range n.Args {
			c.Args[i] = substituteExpr(a, subst)
		}
		return &c
	case *IndexExpr:
		c := *n
		c.X = substituteExpr(n.X, subst)
		c.Index = substituteExpr(n.Index, subst)
		return &c
	case *MemberExpr:
		c := *n
		c.X = substituteExpr(n.X, subst)
		return &c
	case *CastExpr:
		c := *n
		c.X = substituteExpr(n.X, subst)
		return &c
	default:
		return cloneExpr(e)
	}
}

func substituteStmts(stmts []Stmt, subst map[string]Expr) []Stmt {
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = substituteStmt(s, subst)
	}
	return out
}

func substituteStmt(s Stmt, subst map[string]Expr) Stmt {
	switch n := s.(type) {
	case *BlockStmt:
		c := &BlockStmt{stmtBase: n.stmtBase, Stmts: substituteStmts(n.Stmts, subst)}
		return c
	case *VarDeclStmt:
		c := *n
		c.Init = substituteExpr(n.Init, subst)
		return &c
	case *AssignStmt:
		c := *n
		c.Target = substituteExpr(n.Target, subst)
		c.Value = substituteExpr(n.Value, subst)
		return &c
	case *IfStmt:
		c := *n
		c.Cond = substituteExpr(n.Cond, subst)
		c.Then = &BlockStmt{stmtBase: n.Then.stmtBase, Stmts: substituteStmts(n.Then.Stmts, subst)}
		c.Elifs = make([]ElifClause, len(n.Elifs))
		for i, e := range n.Elifs {
			c.Elifs[i] = ElifClause{Cond: substituteExpr(e.Cond, subst), Body: &BlockStmt{stmtBase: e.Body.stmtBase, Stmts: substituteStmts(e.Body.Stmts, subst)}}
		}
		if n.Else != nil {
			c.Else = &BlockStmt{stmtBase: n.Else.stmtBase, Stmts: substituteStmts(n.Else.Stmts, subst)}
		}
		return &c
	case *WhileStmt:
		c := *n
		c.Cond = substituteExpr(n.Cond, subst)
		c.Body = &BlockStmt{stmtBase: n.Body.stmtBase, Stmts: substituteStmts(n.Body.Stmts, subst)}
		return &c
	case *ForRangeStmt:
		c := *n
		c.Start = substituteExpr(n.Start, subst)
		c.End = substituteExpr(n.End, subst)
		c.Step = substituteExpr(n.Step, subst)
		c.Body = &BlockStmt{stmtBase: n.Body.stmtBase, Stmts: substituteStmts(n.Body.Stmts, subst)}
		return &c
	case *ReturnStmt:
		c := *n
		c.Value = substituteExpr(n.Value, subst)
		return &c
	case *ExprStmt:
		c := *n
		c.X = substituteExpr(n.X, subst)
		return &c
	case *AwaitStmt:
		c := *n
		c.X = substituteExpr(n.X, subst)
		return &c
	default:
		return cloneStmt(s)
	}
}

// countStmts gives a shallow size metric for a function body, used by
// the optimizer's inlining-candidacy threshold. It counts statements at every
// nesting depth rather than building a full node count, which is cheap
// and tracks node count closely enough for this use.
func countStmts(stmts []Stmt) int {
	n := 0
	for _, s := range stmts {
		n++
		switch v := s.(type) {
		case *BlockStmt:
			n += countStmts(v.Stmts)
		case *IfStmt:
			n += countStmts(v.Then.Stmts)
			for _, e := range v.Elifs {
				n += countStmts(e.Body.Stmts)
			}
			if v.Else != nil {
				n += countStmts(v.Else.Stmts)
			}
		case *WhileStmt:
			n += countStmts(v.Body.Stmts)
		case *ForRangeStmt:
			n += countStmts(v.Body.Stmts)
		}
	}
	return n
}

// callsName reports whether name is called anywhere within stmts,
// directly or in a nested block — used to reject recursive inlining
// candidates.
func callsName(stmts []Stmt, name string) bool {
	found := false
	var walkExpr func(e Expr)
	walkExpr = func(e Expr) {
		if e == nil || found {
			return
		}
		switch n := e.(type) {
		case *CallExpr:
			if n.CalleeName == name {
				found = true
				return
			}
			walkExpr(n.Receiver)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *UnaryExpr:
			walkExpr(n.X)
		case *BinaryExpr:
			walkExpr(n.L)
			walkExpr(n.R)
		case *IndexExpr:
			walkExpr(n.X)
			walkExpr(n.Index)
		case *MemberExpr:
			walkExpr(n.X)
		case *CastExpr:
			walkExpr(n.X)
		}
	}
	var walkStmts func(ss []Stmt)
	walkStmts = func(ss []Stmt) {
		for _, s := range ss {
			if found {
				return
			}
			switch v := s.(type) {
			case *BlockStmt:
				walkStmts(v.Stmts)
			case *VarDeclStmt:
				walkExpr(v.Init)
			case *AssignStmt:
				walkExpr(v.Target)
				walkExpr(v.Value)
			case *IfStmt:
				walkExpr(v.Cond)
				walkStmts(v.Then.Stmts)
				for _, e := range v.Elifs {
					walkExpr(e.Cond)
					walkStmts(e.Body.Stmts)
				}
				if v.Else != nil {
					walkStmts(v.Else.Stmts)
				}
			case *WhileStmt:
				walkExpr(v.Cond)
				walkStmts(v.Body.Stmts)
			case *ForRangeStmt:
				walkExpr(v.Start)
				walkExpr(v.End)
				walkExpr(v.Step)
				walkStmts(v.Body.Stmts)
			case *ReturnStmt:
				walkExpr(v.Value)
			case *ExprStmt:
				walkExpr(v.X)
			case *AwaitStmt:
				walkExpr(v.X)
			}
		}
	}
	walkStmts(stmts)
	return found
}

// countCallSites counts call expressions targeting name across every
// function body and the top-level block in m (used by the optimizer's
// "called from ≤K sites" inlining gate).
func countCallSites(m *Module, name string) int {
	count := 0
	var walkExpr func(e Expr)
	walkExpr = func(e Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *CallExpr:
			if n.CalleeName == name {
				count++
			}
			walkExpr(n.Receiver)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *UnaryExpr:
			walkExpr(n.X)
		case *BinaryExpr:
			walkExpr(n.L)
			walkExpr(n.R)
		case *IndexExpr:
			walkExpr(n.X)
			walkExpr(n.Index)
		case *MemberExpr:
			walkExpr(n.X)
		case *CastExpr:
			walkExpr(n.X)
		}
	}
	var walkStmts func(ss []Stmt)
	walkStmts = func(ss []Stmt) {
		for _, s := range ss {
			switch v := s.(type) {
			case *BlockStmt:
				walkStmts(v.Stmts)
			case *VarDeclStmt:
				walkExpr(v.Init)
			case *AssignStmt:
				walkExpr(v.Target)
				walkExpr(v.Value)
			case *IfStmt:
				walkExpr(v.Cond)
				walkStmts(v.Then.Stmts)
				for _, e := range v.Elifs {
					walkExpr(e.Cond)
					walkStmts(e.Body.Stmts)
				}
				if v.Else != nil {
					walkStmts(v.Else.Stmts)
				}
			case *WhileStmt:
				walkExpr(v.Cond)
				walkStmts(v.Body.Stmts)
			case *ForRangeStmt:
				walkExpr(v.Start)
				walkExpr(v.End)
				walkExpr(v.Step)
				walkStmts(v.Body.Stmts)
			case *ReturnStmt:
				walkExpr(v.Value)
			case *ExprStmt:
				walkExpr(v.X)
			case *AwaitStmt:
				walkExpr(v.X)
			}
		}
	}
	walkStmts(m.TopLevel)
	for _, fn := range m.Functions {
		walkStmts(fn.Body.Stmts)
	}
	for _, c := range m.Classes {
		for _, meth := range c.Methods {
			walkStmts(meth.Body.Stmts)
		}
		if c.Constructor != nil {
			walkStmts(c.Constructor.Body.Stmts)
		}
	}
	return count
}

// referencesVar reports whether name is read or written anywhere in
// stmts — used by the optimizer's dead-local-elimination rule.
func referencesVar(stmts []Stmt, name string) bool {
	found := false
	var walkExpr func(e Expr)
	walkExpr = func(e Expr) {
		if e == nil || found {
			return
		}
		switch n := e.(type) {
		case *VarRef:
			if n.Name == name {
				found = true
			}
		case *UnaryExpr:
			walkExpr(n.X)
		case *BinaryExpr:
			walkExpr(n.L)
			walkExpr(n.R)
		case *CallExpr:
			walkExpr(n.Receiver)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *IndexExpr:
			walkExpr(n.X)
			walkExpr(n.Index)
		case *MemberExpr:
			walkExpr(n.X)
		case *CastExpr:
			walkExpr(n.X)
		}
	}
	var walkStmts func(ss []Stmt)
	walkStmts = func(ss []Stmt) {
		for _, s := range ss {
			if found {
				return
			}
			switch v := s.(type) {
			case *BlockStmt:
				walkStmts(v.Stmts)
			case *VarDeclStmt:
				walkExpr(v.Init)
			case *AssignStmt:
				walkExpr(v.Target)
				walkExpr(v.Value)
			case *IfStmt:
				walkExpr(v.Cond)
				walkStmts(v.Then.Stmts)
				for _, e := range v.Elifs {
					walkExpr(e.Cond)
					walkStmts(e.Body.Stmts)
				}
				if v.Else != nil {
					walkStmts(v.Else.Stmts)
				}
			case *WhileStmt:
				walkExpr(v.Cond)
				walkStmts(v.Body.Stmts)
			case *ForRangeStmt:
				walkExpr(v.Start)
				walkExpr(v.End)
				walkExpr(v.Step)
				walkStmts(v.Body.Stmts)
			case *ReturnStmt:
				walkExpr(v.Value)
			case *ExprStmt:
				walkExpr(v.X)
			case *AwaitStmt:
				walkExpr(v.X)
			}
		}
	}
	walkStmts(stmts)
	return found
}
