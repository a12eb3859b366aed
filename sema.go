package lsc

import "fmt"

// Analyzer walks a module AST and performs, in one pass: global symbol
// collection, type resolution, call resolution (including
// generic-helper specialization), throws checking, owned-handle
// tracking, parallel-for validation, and constant-zero-divisor
// rejection. It is created fresh per compilation and threaded
// explicitly rather than kept as package state.
type Analyzer struct {
	diags  *Diagnostics
	cfg    *Config
	symtab *SymbolTable

	classByName map[string]*ClassDecl
	classByID   map[int32]*ClassDecl
	funcByName  map[string]*FuncDecl
	hasFlags    bool

	// per-function state, reset in analyzeFunc/analyzeTopLevel
	curThrows        []string
	parallelBoundary int // -1 when not inside a parallel-for body
	moved            map[string]bool
}

func NewAnalyzer(diags *Diagnostics, cfg *Config) *Analyzer {
	return &Analyzer{
		diags:       diags,
		cfg:         cfg,
		symtab:      NewSymbolTable(),
		classByName: map[string]*ClassDecl{},
		classByID:   map[int32]*ClassDecl{},
		funcByName:  map[string]*FuncDecl{},
	}
}

// Analyze annotates m in place. Call HasErrors on the Diagnostics
// collector afterward to decide whether to proceed to the optimizer.
func (a *Analyzer) Analyze(m *Module) {
	a.hasFlags = len(m.Flags) > 0
	a.collectClasses(m)
	a.resolveBases(m)
	a.resolveTypeRefs(m)
	a.collectFunctions(m)

	for _, fn := range m.Functions {
		a.analyzeFunc(fn, nil)
	}
	for _, c := range m.Classes {
		selfType := Type{Tag: TyClass, ClassID: c.ClassID}
		for _, meth := range c.Methods {
			a.analyzeFunc(meth, &selfType)
		}
		if c.Constructor != nil {
			a.analyzeFunc(c.Constructor, &selfType)
		}
	}

	if len(m.TopLevel) > 0 {
		a.curThrows = nil
		a.parallelBoundary = -1
		a.moved = map[string]bool{}
		a.symtab.PushScope()
		a.analyzeStmts(m.TopLevel)
		m.TopLevelOwned = a.symtab.PopScope()
	}
}

// ---- Pass 1: global symbol collection ----

func (a *Analyzer) collectClasses(m *Module) {
	var nextID int32
	for _, c := range m.Classes {
		if prev, ok := a.classByName[c.Name]; ok {
			a.diags.AddError(NewNameErrorPrev(
				fmt.Sprintf("class %q redeclared", c.Name), c.Span(), prev.Span()))
			continue
		}
		c.ClassID = nextID
		c.BaseID = -1
		a.classByName[c.Name] = c
		a.classByID[c.ClassID] = c
		nextID++
	}
}

func (a *Analyzer) resolveBases(m *Module) {
	for _, c := range m.Classes {
		if c.BaseName == "" {
			continue
		}
		base, ok := a.classByName[c.BaseName]
		if !ok {
			a.diags.AddError(NewNameError(
				fmt.Sprintf("base class %q not found", c.BaseName), c.Span()))
			continue
		}
		c.BaseID = base.ClassID
	}
}

// resolveTypeRef maps a parser-produced class placeholder (ClassID -1,
// name carried out of band) to the collected class's real id. Builtin
// types pass through untouched.
func (a *Analyzer) resolveTypeRef(t Type, span Span) Type {
	if t.Tag != TyClass || t.ClassID >= 0 || len(t.Throws) != 1 {
		return t
	}
	name := t.Throws[0]
	c, ok := a.classByName[name]
	if !ok {
		a.diags.AddError(NewNameError(fmt.Sprintf("unknown type %q", name), span))
		return Unresolved
	}
	return Type{Tag: TyClass, ClassID: c.ClassID}
}

// resolveTypeRefs rewrites every annotation position that may carry a
// class placeholder: parameter and result types, field types. Variable
// declarations resolve lazily in analyzeVarDecl, which sees the scope.
func (a *Analyzer) resolveTypeRefs(m *Module) {
	fixFn := func(fn *FuncDecl) {
		for i := range fn.Params {
			fn.Params[i].Type = a.resolveTypeRef(fn.Params[i].Type, fn.Span())
		}
		fn.ResultType = a.resolveTypeRef(fn.ResultType, fn.Span())
	}
	for _, fn := range m.Functions {
		fixFn(fn)
	}
	for _, c := range m.Classes {
		for _, f := range c.Fields {
			f.Type = a.resolveTypeRef(f.Type, f.Span())
		}
		for _, meth := range c.Methods {
			fixFn(meth)
		}
		if c.Constructor != nil {
			fixFn(c.Constructor)
		}
	}
}

func (a *Analyzer) collectFunctions(m *Module) {
	for _, fn := range m.Functions {
		sym := &Symbol{
			Name: fn.Name,
			Type: Function(paramTypes(fn.Params), fn.ResultType, fn.Throws),
			Kind: SymFunction, Storage: StorageGlobal, DeclSpan: fn.Span(),
		}
		if prev := a.symtab.DeclareGlobal(sym); prev != nil {
			a.diags.AddError(NewNameErrorPrev(
				fmt.Sprintf("function %q redeclared", fn.Name), fn.Span(), prev.DeclSpan))
			continue
		}
		fn.Symbol = sym
		a.funcByName[fn.Name] = fn
	}
	for _, c := range m.Classes {
		for _, meth := range c.Methods {
			meth.Symbol = &Symbol{
				Name: meth.Name,
				Type: Function(paramTypes(meth.Params), meth.ResultType, meth.Throws),
				Kind: SymClassMethod, Storage: StorageGlobal, DeclSpan: meth.Span(),
			}
		}
	}
}

func paramTypes(params []Param) []Type {
	out := make([]Type, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

// ---- Pass 2: per-function body analysis ----

func (a *Analyzer) analyzeFunc(fn *FuncDecl, selfType *Type) {
	a.curThrows = fn.Throws
	a.parallelBoundary = -1
	a.moved = map[string]bool{}
	a.symtab.PushScope()

	if selfType != nil {
		a.symtab.Declare(&Symbol{Name: "self", Type: *selfType, Kind: SymVariable, Storage: StorageParameter})
	}
	for i := range fn.Params {
		p := &fn.Params[i]
		if p.Type.Tag == TyUnresolved {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("parameter %q needs a type annotation", p.Name), fn.Span()))
		}
		sym := &Symbol{Name: p.Name, Type: p.Type, Kind: SymParameter, Storage: StorageParameter, DeclSpan: fn.Span()}
		if prev := a.symtab.Declare(sym); prev != nil {
			a.diags.AddError(NewNameErrorPrev(
				fmt.Sprintf("parameter %q shadows an earlier declaration", p.Name), fn.Span(), prev.DeclSpan))
		}
	}

	a.analyzeStmts(fn.Body.Stmts)
	fn.Body.OwnedLocals = a.symtab.PopScope()
}

// ---- Statements ----

func (a *Analyzer) analyzeStmts(stmts []Stmt) {
	for _, s := range stmts {
		a.analyzeStmt(s)
	}
}

func (a *Analyzer) analyzeBlock(b *BlockStmt) {
	a.symtab.PushScope()
	a.analyzeStmts(b.Stmts)
	b.OwnedLocals = a.symtab.PopScope()
}

func (a *Analyzer) analyzeStmt(s Stmt) {
	switch n := s.(type) {
	case *VarDeclStmt:
		a.analyzeVarDecl(n)
	case *AssignStmt:
		a.analyzeAssign(n)
	case *IfStmt:
		a.checkDivZero(n.Cond)
		a.analyzeExpr(n.Cond)
		a.analyzeBlock(n.Then)
		for i := range n.Elifs {
			a.checkDivZero(n.Elifs[i].Cond)
			a.analyzeExpr(n.Elifs[i].Cond)
			a.analyzeBlock(n.Elifs[i].Body)
		}
		if n.Else != nil {
			a.analyzeBlock(n.Else)
		}
	case *WhileStmt:
		a.checkDivZero(n.Cond)
		a.analyzeExpr(n.Cond)
		a.analyzeBlock(n.Body)
	case *ForRangeStmt:
		a.analyzeForRange(n)
	case *ReturnStmt:
		a.analyzeReturn(n)
	case *BreakStmt:
		if a.parallelBoundary >= 0 {
			a.diags.AddError(NewParallelLoopConstraintError(
				"break is not allowed inside a parallel for body", n.Span()))
		}
	case *ContinueStmt:
		if a.parallelBoundary >= 0 {
			a.diags.AddError(NewParallelLoopConstraintError(
				"continue is not allowed inside a parallel for body", n.Span()))
		}
	case *ExprStmt:
		a.checkDivZero(n.X)
		a.analyzeExpr(n.X)
	case *MarkerStmt:
		// .format()/.freeConsole()/.stateSpeed() need no type analysis.
	case *SpawnStmt:
		a.analyzeExpr(n.Call)
		if n.Target != "" {
			// The spawned task handle's lifetime is closed by `await`,
			// not by scope-exit release, so it is not `Owned`.
			a.symtab.Declare(&Symbol{Name: n.Target, Type: Handle, Kind: SymVariable, Storage: StorageLocal, DeclSpan: n.Span()})
		}
	case *AwaitStmt:
		a.analyzeExpr(n.X)
	case *BlockStmt:
		a.analyzeBlock(n)
	}
}

func (a *Analyzer) analyzeVarDecl(n *VarDeclStmt) {
	var initType Type
	if n.Init != nil {
		a.checkDivZero(n.Init)
		initType = a.analyzeExpr(n.Init)
	}
	if n.DeclaredType != nil {
		resolved := a.resolveTypeRef(*n.DeclaredType, n.Span())
		n.DeclaredType = &resolved
	}
	switch {
	case n.DeclaredType != nil && n.Init != nil:
		if !n.DeclaredType.Equal(initType) {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("declared type %s does not match initializer type %s", n.DeclaredType, initType), n.Span()))
		}
		n.ResolvedType = *n.DeclaredType
	case n.DeclaredType != nil:
		n.ResolvedType = *n.DeclaredType
	case n.Init != nil:
		n.ResolvedType = initType
	default:
		n.ResolvedType = Unresolved
	}
	sym := &Symbol{
		Name: n.Name, Type: n.ResolvedType, Kind: SymVariable, Storage: StorageLocal,
		Const: n.Const, Owned: n.Owned, DeclSpan: n.Span(),
	}
	if n.Owned {
		sym.FreeFn = ownedFreeFn(n.Init)
	}
	if prev := a.symtab.Declare(sym); prev != nil && prev.DeclDepth == a.symtab.Depth() {
		a.diags.AddError(NewNameErrorPrev(
			fmt.Sprintf("%q redeclared in the same scope", n.Name), n.Span(), prev.DeclSpan))
	}
	n.Symbol = sym
	// Transferring a moved owned local straight into a new declaration's
	// initializer is itself a move, not a use-after-move.
	if n.Init != nil {
		if ref, ok := n.Init.(*VarRef); ok && ref.Symbol != nil && ref.Symbol.Owned {
			a.markMoved(ref.Symbol)
		}
	}
}

func (a *Analyzer) analyzeAssign(n *AssignStmt) {
	a.checkDivZero(n.Value)
	targetType := a.analyzeExpr(n.Target)
	valueType := a.analyzeExpr(n.Value)

	if ref, ok := n.Target.(*VarRef); ok && ref.Symbol != nil {
		if ref.Symbol.Const {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("cannot assign to const variable %q", ref.Symbol.Name), n.Span()))
		}
		if a.parallelBoundary >= 0 && ref.Symbol.DeclDepth < a.parallelBoundary {
			a.diags.AddError(NewParallelLoopConstraintError(
				fmt.Sprintf("parallel for body may not assign to outer-scope variable %q", ref.Symbol.Name), n.Span()))
		}
		if a.symtab.IsOutsideCurrentScope(ref.Symbol) {
			if vref, ok := n.Value.(*VarRef); ok && vref.Symbol != nil && vref.Symbol.Owned {
				a.markMoved(vref.Symbol)
			}
		}
	}

	if n.Op != "=" {
		op := n.Op[:len(n.Op)-1]
		if !targetType.IsNumeric() && !(op == "+" && targetType.Tag == TyStr) {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("compound assignment %s requires a numeric (or string for +=) target", n.Op), n.Span()))
		} else if !targetType.Equal(valueType) {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("compound assignment %s: type mismatch %s vs %s", n.Op, targetType, valueType), n.Span()))
		}
	} else if targetType.Tag != TyUnresolved && !targetType.Equal(valueType) {
		a.diags.AddError(NewTypeError(
			fmt.Sprintf("cannot assign %s to %s", valueType, targetType), n.Span()))
	}
}

func (a *Analyzer) analyzeForRange(n *ForRangeStmt) {
	a.checkDivZero(n.Start)
	a.checkDivZero(n.End)
	startType := a.analyzeExpr(n.Start)
	a.analyzeExpr(n.End)
	if n.Step != nil {
		a.checkDivZero(n.Step)
		a.analyzeExpr(n.Step)
	}
	loopType := startType
	if loopType.Tag == TyUnresolved {
		loopType = I64
	}

	a.symtab.PushScope()
	sym := &Symbol{Name: n.Var, Type: loopType, Kind: SymVariable, Storage: StorageLocal, Const: true, DeclSpan: n.Span()}
	a.symtab.Declare(sym)
	n.Symbol = sym

	prevBoundary := a.parallelBoundary
	if n.Parallel {
		a.parallelBoundary = a.symtab.Depth()
	}
	a.analyzeStmts(n.Body.Stmts)
	n.Body.OwnedLocals = a.symtab.PopScope()
	a.parallelBoundary = prevBoundary
}

func (a *Analyzer) analyzeReturn(n *ReturnStmt) {
	if n.Value == nil {
		return
	}
	a.checkDivZero(n.Value)
	a.analyzeExpr(n.Value)
	if ref, ok := n.Value.(*VarRef); ok && ref.Symbol != nil && ref.Symbol.Owned {
		a.markMoved(ref.Symbol)
	}
}

// markMoved flags sym as moved and starts tracking it
// for use-after-move detection.
func (a *Analyzer) markMoved(sym *Symbol) {
	sym.Moved = true
	if a.moved != nil {
		a.moved[sym.Name] = true
	}
}

// ---- Expressions ----

func (a *Analyzer) analyzeExpr(e Expr) Type {
	switch n := e.(type) {
	case *IntLit:
		return I64
	case *FloatLit:
		return F64
	case *StringLit:
		return Str
	case *BoolLit:
		return Bool
	case *VarRef:
		return a.analyzeVarRef(n)
	case *UnaryExpr:
		return a.analyzeUnary(n)
	case *BinaryExpr:
		return a.analyzeBinary(n)
	case *CallExpr:
		return a.analyzeCall(n)
	case *IndexExpr:
		a.analyzeExpr(n.X)
		a.analyzeExpr(n.Index)
		n.SetType(I64)
		return I64
	case *MemberExpr:
		return a.analyzeMember(n)
	case *CastExpr:
		a.analyzeExpr(n.X)
		n.SetType(n.To)
		return n.To
	}
	return Unresolved
}

func (a *Analyzer) analyzeVarRef(n *VarRef) Type {
	sym, ok := a.symtab.Lookup(n.Name)
	if !ok {
		a.diags.AddError(NewNameError(fmt.Sprintf("undefined name %q", n.Name), n.Span()))
		n.SetType(Unresolved)
		return Unresolved
	}
	if a.moved != nil && a.moved[n.Name] {
		a.diags.AddError(NewOwnedHandleEscapeError(
			fmt.Sprintf("handle %q used after it was moved", n.Name), n.Span()))
	}
	n.Symbol = sym
	n.SetType(sym.Type)
	return sym.Type
}

func (a *Analyzer) analyzeUnary(n *UnaryExpr) Type {
	xt := a.analyzeExpr(n.X)
	var rt Type
	switch n.Op {
	case "not":
		rt = Bool
	case "-", "+":
		rt = xt
	case "++", "--":
		rt = xt
	default:
		rt = xt
	}
	n.SetType(rt)
	return rt
}

var comparisonOpSet = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (a *Analyzer) analyzeBinary(n *BinaryExpr) Type {
	lt := a.analyzeExpr(n.L)
	rt := a.analyzeExpr(n.R)
	var rtype Type
	switch {
	case n.Op == "and" || n.Op == "or":
		rtype = Bool
	case comparisonOpSet[n.Op]:
		rtype = Bool
		if lt.Tag != TyUnresolved && rt.Tag != TyUnresolved && !lt.Equal(rt) {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("cannot compare %s with %s", lt, rt), n.Span()))
		}
	case n.Op == "+" && lt.Tag == TyStr && rt.Tag == TyStr:
		rtype = Str
	default:
		rtype = lt
		if lt.Tag != TyUnresolved && rt.Tag != TyUnresolved && !lt.Equal(rt) {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("operator %s: type mismatch %s vs %s", n.Op, lt, rt), n.Span()))
		} else if lt.Tag != TyUnresolved && !lt.IsNumeric() {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("operator %s requires numeric operands, got %s", n.Op, lt), n.Span()))
		}
	}
	n.SetType(rtype)
	return rtype
}

func (a *Analyzer) analyzeCall(n *CallExpr) Type {
	argTypes := make([]Type, len(n.Args))
	for i, arg := range n.Args {
		a.checkDivZero(arg)
		argTypes[i] = a.analyzeExpr(arg)
	}
	if n.Receiver != nil {
		a.analyzeExpr(n.Receiver)
		return a.analyzeMethodCall(n, argTypes)
	}

	if printHelpers[n.CalleeName] {
		if len(n.Args) != 1 {
			a.diags.AddError(NewTypeError(fmt.Sprintf("%s takes exactly one argument", n.CalleeName), n.Span()))
		}
		n.Callee = &Symbol{Name: n.CalleeName, Kind: SymFunction, Type: Function(argTypes, Void, nil)}
		n.SetType(Void)
		return Void
	}
	if _, ok := genericHelpers[n.CalleeName]; ok {
		return a.analyzeGenericHelper(n, argTypes)
	}
	if w, ok := widenHelpers[n.CalleeName]; ok {
		if len(argTypes) == 1 && argTypes[0].Tag != w.from {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("%s expects a %s argument, got %s", n.CalleeName, Type{Tag: w.from}, argTypes[0]), n.Span()))
		}
		result := Type{Tag: w.to}
		n.Callee = &Symbol{Name: n.CalleeName, Kind: SymFunction, Type: Function(argTypes, result, nil)}
		n.SetType(result)
		return result
	}
	if sig, ok := cliHelpers[n.CalleeName]; ok {
		if !a.hasFlags {
			a.diags.AddError(NewNameError(
				fmt.Sprintf("%s requires at least one `flag` declaration in the module", n.CalleeName), n.Span()))
		}
		n.Callee = &Symbol{Name: n.CalleeName, Kind: SymFunction, Type: sig}
		n.SetType(*sig.Result)
		return *sig.Result
	}
	if fn, ok := a.funcByName[n.CalleeName]; ok {
		return a.analyzeUserCall(n, fn, argTypes)
	}
	if c, ok := a.classByName[n.CalleeName]; ok {
		return a.analyzeCtorCall(n, c, argTypes)
	}
	// Opaque host-library call: the compiler is
	// responsible for its lifetime contract, not its signature.
	result := Handle
	if isHostFreeCall(n.CalleeName) {
		result = Void
	}
	n.Callee = &Symbol{Name: n.CalleeName, Kind: SymFunction, Type: Function(argTypes, result, nil)}
	n.SetType(result)
	return result
}

func (a *Analyzer) analyzeGenericHelper(n *CallExpr, argTypes []Type) Type {
	want := genericHelpers[n.CalleeName]
	if len(n.Args) != want {
		a.diags.AddError(NewTypeError(
			fmt.Sprintf("%s expects %d argument(s)", n.CalleeName, want), n.Span()))
		n.SetType(Unresolved)
		return Unresolved
	}
	elemType := argTypes[0]
	for _, t := range argTypes[1:] {
		if elemType.Tag != TyUnresolved && t.Tag != TyUnresolved && !t.Equal(elemType) {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("%s: argument type mismatch %s vs %s", n.CalleeName, elemType, t), n.Span()))
		}
	}
	if !elemType.IsNumeric() {
		a.diags.AddError(NewTypeError(
			fmt.Sprintf("%s requires numeric arguments, got %s", n.CalleeName, elemType), n.Span()))
	}
	n.SpecializedName = specializedHelperName(n.CalleeName, elemType)
	n.Callee = &Symbol{Name: n.SpecializedName, Kind: SymFunction, Type: Function(argTypes, elemType, nil)}
	n.SetType(elemType)
	return elemType
}

func (a *Analyzer) analyzeUserCall(n *CallExpr, fn *FuncDecl, argTypes []Type) Type {
	if len(argTypes) != len(fn.Params) {
		a.diags.AddError(NewTypeError(
			fmt.Sprintf("%q expects %d argument(s), got %d", fn.Name, len(fn.Params), len(argTypes)), n.Span()))
	} else {
		for i, p := range fn.Params {
			if p.Type.Tag != TyUnresolved && argTypes[i].Tag != TyUnresolved && !p.Type.Equal(argTypes[i]) {
				a.diags.AddError(NewTypeError(
					fmt.Sprintf("%q argument %d: expected %s, got %s", fn.Name, i+1, p.Type, argTypes[i]), n.Span()))
			}
		}
	}
	a.checkThrows(fn.Throws, n.Span())
	n.Callee = fn.Symbol
	n.SetType(fn.ResultType)
	return fn.ResultType
}

// analyzeCtorCall types `ClassName(args)` as a constructor invocation
// producing a value of the class's type.
func (a *Analyzer) analyzeCtorCall(n *CallExpr, c *ClassDecl, argTypes []Type) Type {
	selfType := Type{Tag: TyClass, ClassID: c.ClassID}
	if c.Constructor == nil {
		if len(argTypes) != 0 {
			a.diags.AddError(NewTypeError(
				fmt.Sprintf("class %q has no constructor but was called with %d argument(s)", c.Name, len(argTypes)), n.Span()))
		}
	} else if len(argTypes) != len(c.Constructor.Params) {
		a.diags.AddError(NewTypeError(
			fmt.Sprintf("%q constructor expects %d argument(s), got %d", c.Name, len(c.Constructor.Params), len(argTypes)), n.Span()))
	} else {
		for i, p := range c.Constructor.Params {
			if p.Type.Tag != TyUnresolved && argTypes[i].Tag != TyUnresolved && !p.Type.Equal(argTypes[i]) {
				a.diags.AddError(NewTypeError(
					fmt.Sprintf("%q constructor argument %d: expected %s, got %s", c.Name, i+1, p.Type, argTypes[i]), n.Span()))
			}
		}
	}
	n.Callee = &Symbol{Name: c.Name, Kind: SymFunction, Type: Function(argTypes, selfType, nil)}
	n.SetType(selfType)
	return selfType
}

func (a *Analyzer) analyzeMethodCall(n *CallExpr, argTypes []Type) Type {
	recvType := n.Receiver.Type()
	class := a.classByID[recvType.ClassID]
	if class == nil {
		a.diags.AddError(NewTypeError(
			fmt.Sprintf("method call %q requires a class-typed receiver", n.CalleeName), n.Span()))
		n.SetType(Unresolved)
		return Unresolved
	}
	meth := a.lookupMethod(class, n.CalleeName)
	if meth == nil {
		a.diags.AddError(NewNameError(
			fmt.Sprintf("class %q has no method %q", class.Name, n.CalleeName), n.Span()))
		n.SetType(Unresolved)
		return Unresolved
	}
	return a.analyzeUserCall(n, meth, argTypes)
}

func (a *Analyzer) lookupMethod(class *ClassDecl, name string) *FuncDecl {
	for c := class; c != nil; {
		for _, m := range c.Methods {
			if m.Name == name {
				return m
			}
		}
		if c.BaseID < 0 {
			return nil
		}
		c = a.classByID[c.BaseID]
	}
	return nil
}

func (a *Analyzer) lookupField(class *ClassDecl, name string) *FieldDecl {
	for c := class; c != nil; {
		for _, f := range c.Fields {
			if f.Name == name {
				return f
			}
		}
		if c.BaseID < 0 {
			return nil
		}
		c = a.classByID[c.BaseID]
	}
	return nil
}

func (a *Analyzer) analyzeMember(n *MemberExpr) Type {
	xt := a.analyzeExpr(n.X)
	if xt.Tag == TyClass {
		if class := a.classByID[xt.ClassID]; class != nil {
			if f := a.lookupField(class, n.Name); f != nil {
				n.SetType(f.Type)
				return f.Type
			}
			a.diags.AddError(NewNameError(
				fmt.Sprintf("class %q has no field %q", class.Name, n.Name), n.Span()))
		}
		n.SetType(Unresolved)
		return Unresolved
	}
	// Opaque host-object field access; default to i64 since
	// no static element type is known without a generics system.
	n.SetType(I64)
	return I64
}

// checkThrows enforces the throws contract: a call to a throwing callee is
// only legal when the enclosing function's own declared throws-set is a
// superset of the callee's.
func (a *Analyzer) checkThrows(callee []string, span Span) {
	if len(callee) == 0 {
		return
	}
	declared := map[string]bool{}
	for _, t := range a.curThrows {
		declared[t] = true
	}
	for _, t := range callee {
		if !declared[t] {
			a.diags.AddError(NewThrowsContractError(
				fmt.Sprintf("call may throw %q, which the enclosing function does not declare", t), span))
			return
		}
	}
}

// checkDivZero rejects every constant `x / 0` / `x % 0` anywhere in e,
// not only when the whole expression is constant.
func (a *Analyzer) checkDivZero(e Expr) {
	bin, ok := e.(*BinaryExpr)
	if !ok {
		switch n := e.(type) {
		case *UnaryExpr:
			a.checkDivZero(n.X)
		case *CastExpr:
			a.checkDivZero(n.X)
		case *CallExpr:
			for _, arg := range n.Args {
				a.checkDivZero(arg)
			}
		case *IndexExpr:
			a.checkDivZero(n.X)
			a.checkDivZero(n.Index)
		}
		return
	}
	a.checkDivZero(bin.L)
	a.checkDivZero(bin.R)
	if (bin.Op == "/" || bin.Op == "%") && isConstZero(bin.R) {
		a.diags.AddError(NewConstDivByZeroError(
			fmt.Sprintf("division by constant zero (%s 0)", bin.Op), bin.Span()))
	}
}
