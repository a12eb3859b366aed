package lsc

import (
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

//go:embed c/runtime.c
var cRuntimeContent embed.FS

// EntryKind is how the compiled program's entry point was resolved.
type EntryKind int

const (
	EntryTopLevel EntryKind = iota
	EntryMain
	EntrySingleFunc
)

// Entry is the resolved program entry for --build/--run.
type Entry struct {
	Kind EntryKind
	Fn   *FuncDecl // nil for EntryTopLevel
}

// GenCOptions controls the C backend.
type GenCOptions struct {
	// Entry is the resolved entry point the emitted main() dispatches to.
	Entry Entry
}

// GenC lowers the optimized module AST to a single self-contained C
// translation unit: embedded runtime prelude, extern
// prototypes for every host-library symbol the program references,
// class structs (with a function-pointer vtable when any method is
// virtual), one C function per LineScript function, spawn thunks, and a
// main() built from the resolved entry.
func GenC(m *Module, opt GenCOptions) (string, error) {
	g := newCEmitter(m, opt)
	g.collectHostCalls()
	g.collectSpawnSites()
	g.writePrelude()
	g.writeRuntime()
	g.writeHostPrototypes()
	g.writeFlagTable()
	g.writeClasses()
	g.writeFuncPrototypes()
	g.writeSpawnThunks()
	g.writeFuncs()
	g.writeMain()
	return g.out.String(), nil
}

// emitScope tracks one lexical block during emission so owned-handle
// releases can be replayed on every exit path.
type emitScope struct {
	owned  []*Symbol // reverse declaration order, from sema
	isLoop bool
}

type cEmitter struct {
	module *Module
	opt    GenCOptions
	out    *outputWriter

	classByID   map[int32]*ClassDecl
	hostProtos  map[string]Type
	spawnSites  map[*SpawnStmt]int
	spawnOrder  []*SpawnStmt
	scopes      []emitScope
	fnHasSpeed  bool
	tmpCounter  int
}

func newCEmitter(m *Module, opt GenCOptions) *cEmitter {
	byID := map[int32]*ClassDecl{}
	for _, c := range m.Classes {
		byID[c.ClassID] = c
	}
	return &cEmitter{
		module:     m,
		opt:        opt,
		out:        newOutputWriter("    "),
		classByID:  byID,
		hostProtos: map[string]Type{},
		spawnSites: map[*SpawnStmt]int{},
	}
}

func (g *cEmitter) nextTmp() string {
	g.tmpCounter++
	return fmt.Sprintf("lsc_t%d", g.tmpCounter)
}

// ---- collection pre-passes ----

// collectHostCalls records every callee that is neither a user function,
// a class constructor, nor part of the compiler-known builtin surface.
// Their prototypes are synthesized from the resolved argument types at
// the first call site.
func (g *cEmitter) collectHostCalls() {
	userFns := map[string]bool{}
	for _, fn := range g.module.Functions {
		userFns[fn.Name] = true
	}
	classes := map[string]bool{}
	for _, c := range g.module.Classes {
		classes[c.Name] = true
	}
	record := func(call *CallExpr) {
		if call.Receiver != nil || call.Callee == nil {
			return
		}
		name := call.CalleeName
		if userFns[name] || classes[name] {
			return
		}
		if printHelpers[name] {
			return
		}
		if _, ok := genericHelpers[name]; ok {
			return
		}
		if _, ok := widenHelpers[name]; ok {
			return
		}
		if _, ok := cliHelpers[name]; ok {
			return
		}
		if _, seen := g.hostProtos[name]; !seen {
			g.hostProtos[name] = call.Callee.Type
		}
	}
	g.walkModuleExprs(func(e Expr) {
		switch n := e.(type) {
		case *CallExpr:
			record(n)
		case *IndexExpr:
			// Host-container element reads lower to lsc_index.
			g.hostProtos["lsc_index"] = Function([]Type{Handle, I64}, I64, nil)
		case *MemberExpr:
			if n.X.Type().Tag != TyClass {
				g.hostProtos["lsc_member"] = Function([]Type{Handle, Str}, I64, nil)
			}
		}
	})
	g.walkModuleStmts(func(s Stmt) {
		if a, ok := s.(*AssignStmt); ok {
			if _, isIdx := a.Target.(*IndexExpr); isIdx {
				g.hostProtos["lsc_index_set"] = Function([]Type{Handle, I64, I64}, Void, nil)
			}
		}
	})
	// Owned-handle release calls are host symbols too, even when no
	// explicit call site exists in the source.
	g.walkOwned(func(sym *Symbol) {
		if sym.FreeFn != "" {
			if _, seen := g.hostProtos[sym.FreeFn]; !seen {
				g.hostProtos[sym.FreeFn] = Function([]Type{Handle}, Void, nil)
			}
		}
	})
}

func (g *cEmitter) collectSpawnSites() {
	g.walkModuleStmts(func(s Stmt) {
		if sp, ok := s.(*SpawnStmt); ok {
			if _, seen := g.spawnSites[sp]; !seen {
				g.spawnSites[sp] = len(g.spawnOrder)
				g.spawnOrder = append(g.spawnOrder, sp)
			}
		}
	})
}

// ---- emission stages ----

func (g *cEmitter) writePrelude() {
	g.out.writel("/*")
	g.out.writel(" * Auto-generated C translation unit by lsc.")
	g.out.writel(" * Do not edit; regenerate from the LineScript sources.")
	g.out.writel(" */")
	g.out.writel("")
}

func (g *cEmitter) writeRuntime() {
	data, err := cRuntimeContent.ReadFile("c/runtime.c")
	if err != nil {
		panic(err.Error())
	}
	g.out.writel("/* ---- BEGIN embedded runtime: runtime.c ---- */")
	g.out.writel(string(data))
	g.out.writel("/* ---- END embedded runtime: runtime.c ---- */")
	g.out.writel("")
	g.out.writel("/* ---- BEGIN generated program ---- */")
	g.out.writel("")
}

func (g *cEmitter) writeHostPrototypes() {
	if len(g.hostProtos) == 0 {
		return
	}
	names := make([]string, 0, len(g.hostProtos))
	for n := range g.hostProtos {
		names = append(names, n)
	}
	sort.Strings(names)
	g.out.writel("/* Host library symbols (resolved at link time). */")
	for _, name := range names {
		sig := g.hostProtos[name]
		params := make([]string, len(sig.Params))
		for i, p := range sig.Params {
			params[i] = g.cType(p)
		}
		if len(params) == 0 {
			params = []string{"void"}
		}
		ret := "lsc_handle"
		if sig.Result != nil {
			ret = g.cType(*sig.Result)
		}
		g.out.writel(fmt.Sprintf("extern %s %s(%s);", ret, sanitizeCIdent(name), strings.Join(params, ", ")))
	}
	g.out.writel("")
}

func (g *cEmitter) writeFlagTable() {
	if len(g.module.Flags) == 0 {
		return
	}
	g.out.writel("/* Flags declared by the module's `flag` blocks. */")
	g.out.writeil("static LscFlag g_flags[] = {")
	g.out.indent()
	for _, f := range g.module.Flags {
		g.out.writeil(fmt.Sprintf("{ %s, 0, NULL, 0, {0} },", cStringLit(f.Name)))
	}
	g.out.unindent()
	g.out.writel("};")
	g.out.writel("")
}

// hierarchyRoot walks base links to the root class of c's hierarchy.
func (g *cEmitter) hierarchyRoot(c *ClassDecl) *ClassDecl {
	for c.BaseID >= 0 {
		base := g.classByID[c.BaseID]
		if base == nil {
			break
		}
		c = base
	}
	return c
}

// hierarchyHasVirtual reports whether any class sharing c's root
// declares a virtual method, which decides vtable emission.
func (g *cEmitter) hierarchyHasVirtual(c *ClassDecl) bool {
	root := g.hierarchyRoot(c)
	for _, other := range g.module.Classes {
		if g.hierarchyRoot(other) != root {
			continue
		}
		for _, meth := range other.Methods {
			if meth.Virtual || meth.Override {
				return true
			}
		}
	}
	return false
}

// virtualMethods returns the ordered union of virtual method names
// across c's hierarchy root and everything derived from it.
func (g *cEmitter) virtualMethods(c *ClassDecl) []*FuncDecl {
	root := g.hierarchyRoot(c)
	var out []*FuncDecl
	seen := map[string]bool{}
	for _, other := range g.module.Classes {
		if g.hierarchyRoot(other) != root {
			continue
		}
		for _, meth := range other.Methods {
			if (meth.Virtual || meth.Override) && !seen[meth.Name] {
				seen[meth.Name] = true
				out = append(out, meth)
			}
		}
	}
	return out
}

// allFields returns c's fields flattened root-first, so a derived
// struct is layout-compatible with a pointer to its base.
func (g *cEmitter) allFields(c *ClassDecl) []*FieldDecl {
	var chain []*ClassDecl
	for cur := c; cur != nil; {
		chain = append([]*ClassDecl{cur}, chain...)
		if cur.BaseID < 0 {
			break
		}
		cur = g.classByID[cur.BaseID]
	}
	var out []*FieldDecl
	for _, cur := range chain {
		out = append(out, cur.Fields...)
	}
	return out
}

// resolveVirtual finds the most-derived implementation of name at or
// above c in the hierarchy.
func (g *cEmitter) resolveVirtual(c *ClassDecl, name string) (*ClassDecl, *FuncDecl) {
	for cur := c; cur != nil; {
		for _, meth := range cur.Methods {
			if meth.Name == name {
				return cur, meth
			}
		}
		if cur.BaseID < 0 {
			return nil, nil
		}
		cur = g.classByID[cur.BaseID]
	}
	return nil, nil
}

func (g *cEmitter) classCName(c *ClassDecl) string { return "ls_" + sanitizeCIdent(c.Name) }

func (g *cEmitter) writeClasses() {
	for _, c := range g.module.Classes {
		cn := g.classCName(c)
		hasVt := g.hierarchyHasVirtual(c)
		root := g.hierarchyRoot(c)
		rootName := g.classCName(root)

		// vtable type is declared once, on the hierarchy root.
		if hasVt && c == root {
			g.out.writeil(fmt.Sprintf("typedef struct %s_vtable {", rootName))
			g.out.indent()
			for _, meth := range g.virtualMethods(c) {
				params := []string{"void *self"}
				for _, p := range meth.Params {
					params = append(params, g.cType(p.Type))
				}
				g.out.writeil(fmt.Sprintf("%s (*%s)(%s);", g.cType(meth.ResultType), cSafeName(meth.Name), strings.Join(params, ", ")))
			}
			g.out.unindent()
			g.out.writel(fmt.Sprintf("} %s_vtable;", rootName))
			g.out.writel("")
		}

		g.out.writeil(fmt.Sprintf("typedef struct %s {", cn))
		g.out.indent()
		if hasVt {
			g.out.writeil(fmt.Sprintf("const %s_vtable *vt;", rootName))
		}
		fields := g.allFields(c)
		if !hasVt && len(fields) == 0 {
			g.out.writeil("char lsc_empty;")
		}
		for _, f := range fields {
			g.out.writeil(fmt.Sprintf("%s %s;", g.cType(f.Type), cSafeName(f.Name)))
		}
		g.out.unindent()
		g.out.writel(fmt.Sprintf("} %s;", cn))
		g.out.writel("")
	}

	// Method prototypes must precede the vtable instances that point at
	// them, and the vtables must precede the constructors that install
	// them.
	for _, c := range g.module.Classes {
		for _, meth := range c.Methods {
			g.out.writel(g.methodSignature(c, meth) + ";")
		}
		g.out.writel(g.ctorInitSignature(c) + ";")
		g.out.writel(g.ctorNewSignature(c) + ";")
	}
	g.out.writel("")

	for _, c := range g.module.Classes {
		if !g.hierarchyHasVirtual(c) {
			continue
		}
		cn := g.classCName(c)
		rootName := g.classCName(g.hierarchyRoot(c))
		g.out.writeil(fmt.Sprintf("static const %s_vtable %s_vt = {", rootName, cn))
		g.out.indent()
		for _, meth := range g.virtualMethods(c) {
			impl, fn := g.resolveVirtual(c, meth.Name)
			if impl == nil {
				g.out.writeil(fmt.Sprintf(".%s = NULL,", cSafeName(meth.Name)))
				continue
			}
			params := []string{"void *"}
			for _, p := range fn.Params {
				params = append(params, g.cType(p.Type))
			}
			cast := fmt.Sprintf("(%s (*)(%s))", g.cType(fn.ResultType), strings.Join(params, ", "))
			g.out.writeil(fmt.Sprintf(".%s = %s%s_%s,", cSafeName(meth.Name), cast, g.classCName(impl), sanitizeCIdent(fn.Name)))
		}
		g.out.unindent()
		g.out.writel("};")
		g.out.writel("")
	}
}

func (g *cEmitter) methodSignature(c *ClassDecl, meth *FuncDecl) string {
	params := []string{fmt.Sprintf("%s *self", g.classCName(c))}
	for _, p := range meth.Params {
		params = append(params, fmt.Sprintf("%s %s", g.cType(p.Type), cSafeName(p.Name)))
	}
	return fmt.Sprintf("static %s %s_%s(%s)", g.cType(meth.ResultType), g.classCName(c), sanitizeCIdent(meth.Name), strings.Join(params, ", "))
}

func (g *cEmitter) ctorInitSignature(c *ClassDecl) string {
	params := []string{fmt.Sprintf("%s *self", g.classCName(c))}
	if c.Constructor != nil {
		for _, p := range c.Constructor.Params {
			params = append(params, fmt.Sprintf("%s %s", g.cType(p.Type), cSafeName(p.Name)))
		}
	}
	return fmt.Sprintf("static void %s_init(%s)", g.classCName(c), strings.Join(params, ", "))
}

func (g *cEmitter) ctorNewSignature(c *ClassDecl) string {
	var params []string
	if c.Constructor != nil {
		for _, p := range c.Constructor.Params {
			params = append(params, fmt.Sprintf("%s %s", g.cType(p.Type), cSafeName(p.Name)))
		}
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	return fmt.Sprintf("static %s *%s_make(%s)", g.classCName(c), g.classCName(c), strings.Join(params, ", "))
}

func (g *cEmitter) funcCName(name string) string { return "ls_" + sanitizeCIdent(name) }

func (g *cEmitter) funcSignature(fn *FuncDecl) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %s", g.cType(p.Type), cSafeName(p.Name))
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	return fmt.Sprintf("static %s %s(%s)", g.cType(fn.ResultType), g.funcCName(fn.Name), strings.Join(params, ", "))
}

func (g *cEmitter) writeFuncPrototypes() {
	if len(g.module.Functions) == 0 {
		return
	}
	for _, fn := range g.module.Functions {
		g.out.writel(g.funcSignature(fn) + ";")
	}
	g.out.writel("")
}

func (g *cEmitter) writeSpawnThunks() {
	for idx, sp := range g.spawnOrder {
		call := sp.Call
		if len(call.Args) > 0 {
			g.out.writeil(fmt.Sprintf("typedef struct lsc_spawn_args_%d {", idx))
			g.out.indent()
			for i, arg := range call.Args {
				g.out.writeil(fmt.Sprintf("%s a%d;", g.cType(arg.Type()), i))
			}
			g.out.unindent()
			g.out.writel(fmt.Sprintf("} lsc_spawn_args_%d;", idx))
		}
		g.out.writeil(fmt.Sprintf("static void *lsc_spawn_thunk_%d(void *p) {", idx))
		g.out.indent()
		callee := g.spawnCalleeName(call)
		if len(call.Args) == 0 {
			g.out.writeil("(void)p;")
			g.out.writeil(fmt.Sprintf("%s();", callee))
		} else {
			g.out.writeil(fmt.Sprintf("lsc_spawn_args_%d *a = (lsc_spawn_args_%d *)p;", idx, idx))
			args := make([]string, len(call.Args))
			for i := range call.Args {
				args[i] = fmt.Sprintf("a->a%d", i)
			}
			g.out.writeil(fmt.Sprintf("%s(%s);", callee, strings.Join(args, ", ")))
			g.out.writeil("free(a);")
		}
		g.out.writeil("return NULL;")
		g.out.unindent()
		g.out.writel("}")
		g.out.writel("")
	}
}

func (g *cEmitter) spawnCalleeName(call *CallExpr) string {
	for _, fn := range g.module.Functions {
		if fn.Name == call.CalleeName {
			return g.funcCName(fn.Name)
		}
	}
	return sanitizeCIdent(call.CalleeName)
}

func (g *cEmitter) writeFuncs() {
	for _, fn := range g.module.Functions {
		g.out.writeil(g.funcSignature(fn) + " {")
		g.emitFuncBody(fn)
		g.out.writel("}")
		g.out.writel("")
	}
	for _, c := range g.module.Classes {
		g.writeClassImpl(c)
	}
}

func (g *cEmitter) writeClassImpl(c *ClassDecl) {
	cn := g.classCName(c)
	hasVt := g.hierarchyHasVirtual(c)

	for _, meth := range c.Methods {
		g.out.writeil(g.methodSignature(c, meth) + " {")
		g.emitFuncBody(meth)
		g.out.writel("}")
		g.out.writel("")
	}

	g.out.writeil(g.ctorInitSignature(c) + " {")
	g.out.indent()
	if ctor := c.Constructor; ctor != nil {
		if c.BaseID >= 0 && len(ctor.BaseArgs) > 0 {
			base := g.classByID[c.BaseID]
			args := []string{fmt.Sprintf("(%s *)self", g.classCName(base))}
			for _, a := range ctor.BaseArgs {
				args = append(args, g.expr(a))
			}
			g.out.writeil(fmt.Sprintf("%s_init(%s);", g.classCName(base), strings.Join(args, ", ")))
		}
		g.pushScope(emitScope{owned: ctor.Body.OwnedLocals})
		g.fnHasSpeed = blockUsesSpeed(ctor.Body.Stmts)
		if g.fnHasSpeed {
			g.out.writeil("lsc_i64 lsc_fn_entry_us = lsc_now_us();")
		}
		g.stmts(ctor.Body.Stmts)
		g.emitFallthroughFrees(ctor.Body.Stmts)
		g.popScope()
	} else {
		g.out.writeil("(void)self;")
	}
	g.out.unindent()
	g.out.writel("}")
	g.out.writel("")

	g.out.writeil(g.ctorNewSignature(c) + " {")
	g.out.indent()
	g.out.writeil(fmt.Sprintf("%s *self = (%s *)calloc(1, sizeof(%s));", cn, cn, cn))
	g.out.writeil("if (!self) { fprintf(stderr, \"out of memory\\n\"); abort(); }")
	if hasVt {
		g.out.writeil(fmt.Sprintf("self->vt = &%s_vt;", cn))
	}
	var args []string
	args = append(args, "self")
	if c.Constructor != nil {
		for _, p := range c.Constructor.Params {
			args = append(args, cSafeName(p.Name))
		}
	}
	g.out.writeil(fmt.Sprintf("%s_init(%s);", cn, strings.Join(args, ", ")))
	g.out.writeil("return self;")
	g.out.unindent()
	g.out.writel("}")
	g.out.writel("")
}

// emitFuncBody emits one function/method body at indent level 1,
// including the.stateSpeed() entry timestamp and the scope-exit
// releases for the body's owned handles.
func (g *cEmitter) emitFuncBody(fn *FuncDecl) {
	g.out.indent()
	g.pushScope(emitScope{owned: fn.Body.OwnedLocals})
	g.fnHasSpeed = blockUsesSpeed(fn.Body.Stmts)
	if g.fnHasSpeed {
		g.out.writeil("lsc_i64 lsc_fn_entry_us = lsc_now_us();")
	}
	g.stmts(fn.Body.Stmts)
	g.emitFallthroughFrees(fn.Body.Stmts)
	g.popScope()
	g.out.unindent()
}

func (g *cEmitter) writeMain() {
	g.out.writeil("int main(int argc, char **argv) {")
	g.out.indent()
	if len(g.module.Flags) > 0 {
		g.out.writeil("lsc_cli_init(argc, argv, g_flags, (int)(sizeof(g_flags)/sizeof(g_flags[0])));")
	} else {
		g.out.writeil("(void)argc;")
		g.out.writeil("(void)argv;")
	}
	switch g.opt.Entry.Kind {
	case EntryTopLevel:
		g.pushScope(emitScope{owned: g.module.TopLevelOwned})
		g.fnHasSpeed = blockUsesSpeed(g.module.TopLevel)
		if g.fnHasSpeed {
			g.out.writeil("lsc_i64 lsc_fn_entry_us = lsc_now_us();")
		}
		g.stmts(g.module.TopLevel)
		g.emitFallthroughFrees(g.module.TopLevel)
		g.popScope()
		g.out.writeil("return 0;")
	default:
		fn := g.opt.Entry.Fn
		if fn.ResultType.IsInteger() {
			g.out.writeil(fmt.Sprintf("return (int)%s();", g.funcCName(fn.Name)))
		} else {
			g.out.writeil(fmt.Sprintf("%s();", g.funcCName(fn.Name)))
			g.out.writeil("return 0;")
		}
	}
	g.out.unindent()
	g.out.writel("}")
}

// ---- scope / release tracking ----

func (g *cEmitter) pushScope(s emitScope) { g.scopes = append(g.scopes, s) }
func (g *cEmitter) popScope()             { g.scopes = g.scopes[:len(g.scopes)-1] }

func (g *cEmitter) emitScopeFrees(s emitScope) {
	for _, sym := range s.owned {
		if sym.FreeFn == "" {
			continue
		}
		g.out.writeil(fmt.Sprintf("%s(%s);", sanitizeCIdent(sym.FreeFn), cSafeName(sym.Name)))
	}
}

// emitFreesForReturn replays every active scope's releases, innermost
// first, before a return leaves the function.
func (g *cEmitter) emitFreesForReturn() {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		g.emitScopeFrees(g.scopes[i])
	}
}

// emitFreesForLoopExit replays releases for every scope inside the
// nearest enclosing loop body, inclusive.
func (g *cEmitter) emitFreesForLoopExit() {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		g.emitScopeFrees(g.scopes[i])
		if g.scopes[i].isLoop {
			return
		}
	}
}

// ---- statements ----

func (g *cEmitter) stmts(stmts []Stmt) {
	for _, s := range stmts {
		g.stmt(s)
	}
}

func (g *cEmitter) stmt(s Stmt) {
	switch n := s.(type) {
	case *VarDeclStmt:
		if n.Init != nil {
			g.out.writeil(fmt.Sprintf("%s %s = %s;", g.cType(n.ResolvedType), cSafeName(n.Name), g.expr(n.Init)))
		} else {
			g.out.writeil(fmt.Sprintf("%s %s = %s;", g.cType(n.ResolvedType), cSafeName(n.Name), g.zeroValue(n.ResolvedType)))
		}
	case *AssignStmt:
		g.emitAssign(n)
	case *IfStmt:
		g.out.writeil(fmt.Sprintf("if (%s) {", g.expr(n.Cond)))
		g.emitBlock(n.Then, false)
		for _, e := range n.Elifs {
			g.out.writeil(fmt.Sprintf("} else if (%s) {", g.expr(e.Cond)))
			g.emitBlock(e.Body, false)
		}
		if n.Else != nil {
			g.out.writeil("} else {")
			g.emitBlock(n.Else, false)
		}
		g.out.writeil("}")
	case *WhileStmt:
		g.out.writeil(fmt.Sprintf("while (%s) {", g.expr(n.Cond)))
		g.emitBlock(n.Body, true)
		g.out.writeil("}")
	case *ForRangeStmt:
		g.emitForRange(n)
	case *ReturnStmt:
		g.emitReturn(n)
	case *BreakStmt:
		g.emitFreesForLoopExit()
		g.out.writeil("break;")
	case *ContinueStmt:
		g.emitFreesForLoopExit()
		g.out.writeil("continue;")
	case *ExprStmt:
		g.out.writeil(g.expr(n.X) + ";")
	case *MarkerStmt:
		g.emitMarker(n)
	case *SpawnStmt:
		g.emitSpawn(n)
	case *AwaitStmt:
		g.out.writeil(fmt.Sprintf("lsc_await(%s);", g.expr(n.X)))
	case *BlockStmt:
		g.out.writeil("{")
		g.emitBlock(n, false)
		g.out.writeil("}")
	}
}

func (g *cEmitter) emitBlock(b *BlockStmt, isLoop bool) {
	g.out.indent()
	g.pushScope(emitScope{owned: b.OwnedLocals, isLoop: isLoop})
	g.stmts(b.Stmts)
	g.emitFallthroughFrees(b.Stmts)
	g.popScope()
	g.out.unindent()
}

// emitFallthroughFrees releases the innermost scope's handles on the
// normal fall-through path. A block ending in return/break/continue
// already replayed its releases at the transfer point.
func (g *cEmitter) emitFallthroughFrees(stmts []Stmt) {
	if len(stmts) > 0 && stmtAlwaysExits(stmts[len(stmts)-1]) {
		return
	}
	g.emitScopeFrees(g.scopes[len(g.scopes)-1])
}

func (g *cEmitter) emitAssign(n *AssignStmt) {
	if idx, ok := n.Target.(*IndexExpr); ok && n.Op == "=" {
		g.out.writeil(fmt.Sprintf("lsc_index_set(%s, %s, %s);", g.expr(idx.X), g.expr(idx.Index), g.expr(n.Value)))
		return
	}
	target := g.lvalue(n.Target)
	value := g.expr(n.Value)
	switch n.Op {
	case "=":
		g.out.writeil(fmt.Sprintf("%s = %s;", target, value))
	case "**=", "^=":
		pow := "lsc_pow_i64"
		if n.Target.Type().IsFloat() {
			pow = "lsc_pow_f64"
		}
		g.out.writeil(fmt.Sprintf("%s = %s(%s, %s);", target, pow, target, value))
	case "+=":
		if n.Target.Type().Tag == TyStr {
			g.out.writeil(fmt.Sprintf("%s = lsc_str_concat(%s, %s);", target, target, value))
			return
		}
		g.out.writeil(fmt.Sprintf("%s += %s;", target, value))
	default:
		g.out.writeil(fmt.Sprintf("%s %s %s;", target, n.Op, value))
	}
}

func (g *cEmitter) emitForRange(n *ForRangeStmt) {
	if n.Parallel && n.Step != nil {
		g.emitParallelSteppedRange(n)
		return
	}
	loopVar := cSafeName(n.Var)
	ct := g.cType(n.Symbol.Type)
	endTmp := g.nextTmp()
	g.out.writeil("{")
	g.out.indent()
	g.out.writeil(fmt.Sprintf("%s %s = %s;", ct, endTmp, g.expr(n.End)))

	var header string
	if n.Step == nil {
		header = fmt.Sprintf("for (%s %s = %s; %s < %s; %s++) {", ct, loopVar, g.expr(n.Start), loopVar, endTmp, loopVar)
	} else {
		stepTmp := g.nextTmp()
		g.out.writeil(fmt.Sprintf("%s %s = %s;", ct, stepTmp, g.expr(n.Step)))
		// A zero step yields zero iterations, not a hang: neither
		// direction's guard admits the first trip.
		cond := fmt.Sprintf("%s > 0 ? %s < %s : (%s < 0 && %s > %s)", stepTmp, loopVar, endTmp, stepTmp, loopVar, endTmp)
		header = fmt.Sprintf("for (%s %s = %s; %s; %s += %s) {", ct, loopVar, g.expr(n.Start), cond, loopVar, stepTmp)
	}

	if n.Parallel {
		g.out.writel("#ifdef _OPENMP")
		g.out.writel("#pragma omp parallel for simd")
		g.out.writel("#endif")
	} else if loopIsVectorizable(n.Body.Stmts) {
		g.out.writel("#pragma clang loop vectorize(enable) interleave(enable)")
	}
	g.out.writeil(header)
	g.emitBlock(n.Body, true)
	g.out.writeil("}")
	g.out.unindent()
	g.out.writeil("}")
}

// emitParallelSteppedRange lowers a stepped parallel loop through a
// precomputed trip count. OpenMP's for construct requires a canonical
// loop form (plain relational test, constant-stride increment), so the
// serial form's ternary guard cannot sit under the omp pragma; the
// induction variable runs 0..trip and the user's loop variable is
// derived per iteration. A zero step still yields zero trips.
func (g *cEmitter) emitParallelSteppedRange(n *ForRangeStmt) {
	loopVar := cSafeName(n.Var)
	ct := g.cType(n.Symbol.Type)
	base := g.nextTmp()
	startTmp := base + "_start"
	endTmp := base + "_end"
	stepTmp := base + "_step"
	tripTmp := base + "_trip"
	iterTmp := base + "_i"

	g.out.writeil("{")
	g.out.indent()
	g.out.writeil(fmt.Sprintf("%s %s = %s;", ct, startTmp, g.expr(n.Start)))
	g.out.writeil(fmt.Sprintf("%s %s = %s;", ct, endTmp, g.expr(n.End)))
	g.out.writeil(fmt.Sprintf("%s %s = %s;", ct, stepTmp, g.expr(n.Step)))
	g.out.writeil(fmt.Sprintf("%s %s = 0;", ct, tripTmp))
	g.out.writeil(fmt.Sprintf("if (%s > 0 && %s > %s) {", stepTmp, endTmp, startTmp))
	g.out.indent()
	g.out.writeil(fmt.Sprintf("%s = (%s - %s + %s - 1) / %s;", tripTmp, endTmp, startTmp, stepTmp, stepTmp))
	g.out.unindent()
	g.out.writeil(fmt.Sprintf("} else if (%s < 0 && %s < %s) {", stepTmp, endTmp, startTmp))
	g.out.indent()
	g.out.writeil(fmt.Sprintf("%s = (%s - %s + (-%s) - 1) / (-%s);", tripTmp, startTmp, endTmp, stepTmp, stepTmp))
	g.out.unindent()
	g.out.writeil("}")
	g.out.writel("#ifdef _OPENMP")
	g.out.writel("#pragma omp parallel for simd")
	g.out.writel("#endif")
	g.out.writeil(fmt.Sprintf("for (%s %s = 0; %s < %s; %s++) {", ct, iterTmp, iterTmp, tripTmp, iterTmp))
	g.out.indent()
	g.out.writeil(fmt.Sprintf("%s %s = %s + %s * %s;", ct, loopVar, startTmp, iterTmp, stepTmp))
	g.out.unindent()
	g.emitBlock(n.Body, true)
	g.out.writeil("}")
	g.out.unindent()
	g.out.writeil("}")
}

func (g *cEmitter) emitReturn(n *ReturnStmt) {
	if n.Value == nil {
		g.emitFreesForReturn()
		g.out.writeil("return;")
		return
	}
	if !g.scopesHaveOwned() {
		g.out.writeil(fmt.Sprintf("return %s;", g.expr(n.Value)))
		return
	}
	// Evaluate before releasing so the returned value may still read
	// owned handles; moved handles were already pruned by the analyzer.
	tmp := g.nextTmp()
	g.out.writeil("{")
	g.out.indent()
	g.out.writeil(fmt.Sprintf("%s %s = %s;", g.cType(n.Value.Type()), tmp, g.expr(n.Value)))
	g.emitFreesForReturn()
	g.out.writeil(fmt.Sprintf("return %s;", tmp))
	g.out.unindent()
	g.out.writeil("}")
}

func (g *cEmitter) scopesHaveOwned() bool {
	for _, s := range g.scopes {
		if len(s.owned) > 0 {
			return true
		}
	}
	return false
}

func (g *cEmitter) emitMarker(n *MarkerStmt) {
	switch n.Name {
	case "format":
		g.out.writeil("lsc_console_format();")
	case "freeConsole":
		g.out.writeil("lsc_free_console();")
	case "stateSpeed":
		g.out.writeil(`printf("speed_us=%lld\n", (long long)(lsc_now_us() - lsc_fn_entry_us));`)
	}
}

func (g *cEmitter) emitSpawn(n *SpawnStmt) {
	idx := g.spawnSites[n]
	argExpr := "NULL"
	if len(n.Call.Args) > 0 {
		tmp := g.nextTmp()
		g.out.writeil(fmt.Sprintf("lsc_spawn_args_%d *%s = (lsc_spawn_args_%d *)malloc(sizeof(lsc_spawn_args_%d));", idx, tmp, idx, idx))
		g.out.writeil(fmt.Sprintf("if (!%s) { fprintf(stderr, \"out of memory\\n\"); abort(); }", tmp))
		for i, arg := range n.Call.Args {
			g.out.writeil(fmt.Sprintf("%s->a%d = %s;", tmp, i, g.expr(arg)))
		}
		argExpr = tmp
	}
	call := fmt.Sprintf("lsc_spawn(lsc_spawn_thunk_%d, %s)", idx, argExpr)
	if n.Target != "" {
		g.out.writeil(fmt.Sprintf("lsc_handle %s = %s;", cSafeName(n.Target), call))
	} else {
		g.out.writeil(call + ";")
	}
}

// ---- expressions ----

func (g *cEmitter) lvalue(e Expr) string {
	switch n := e.(type) {
	case *VarRef:
		return cSafeName(n.Name)
	case *MemberExpr:
		return fmt.Sprintf("%s->%s", g.expr(n.X), cSafeName(n.Name))
	default:
		return g.expr(e)
	}
}

func (g *cEmitter) expr(e Expr) string {
	switch n := e.(type) {
	case *IntLit:
		return formatCInt(n.Value)
	case *FloatLit:
		return formatCFloat(n.Value)
	case *StringLit:
		return cStringLit(n.Value)
	case *BoolLit:
		if n.Value {
			return "true"
		}
		return "false"
	case *VarRef:
		return cSafeName(n.Name)
	case *UnaryExpr:
		if n.Postfix {
			return fmt.Sprintf("%s%s", g.expr(n.X), n.Op)
		}
		op := n.Op
		if op == "not" {
			op = "!"
		}
		return fmt.Sprintf("(%s%s)", op, g.expr(n.X))
	case *BinaryExpr:
		return g.binary(n)
	case *CallExpr:
		return g.call(n)
	case *IndexExpr:
		return fmt.Sprintf("lsc_index(%s, %s)", g.expr(n.X), g.expr(n.Index))
	case *MemberExpr:
		if n.X.Type().Tag == TyClass {
			return fmt.Sprintf("%s->%s", g.expr(n.X), cSafeName(n.Name))
		}
		return fmt.Sprintf("lsc_member(%s, %s)", g.expr(n.X), cStringLit(n.Name))
	case *CastExpr:
		return fmt.Sprintf("(%s)(%s)", g.cType(n.To), g.expr(n.X))
	default:
		return "0"
	}
}

func (g *cEmitter) binary(n *BinaryExpr) string {
	l, r := g.expr(n.L), g.expr(n.R)
	switch n.Op {
	case "and":
		return fmt.Sprintf("(%s && %s)", l, r)
	case "or":
		return fmt.Sprintf("(%s || %s)", l, r)
	case "**", "^":
		if n.L.Type().IsFloat() {
			return fmt.Sprintf("lsc_pow_f64(%s, %s)", l, r)
		}
		return fmt.Sprintf("lsc_pow_i64(%s, %s)", l, r)
	case "+":
		if n.L.Type().Tag == TyStr {
			return fmt.Sprintf("lsc_str_concat(%s, %s)", l, r)
		}
	case "==", "!=", "<", "<=", ">", ">=":
		if n.L.Type().Tag == TyStr {
			if n.Op == "==" {
				return fmt.Sprintf("lsc_str_eq(%s, %s)", l, r)
			}
			if n.Op == "!=" {
				return fmt.Sprintf("(!lsc_str_eq(%s, %s))", l, r)
			}
			return fmt.Sprintf("(lsc_str_cmp(%s, %s) %s 0)", l, r, n.Op)
		}
	}
	return fmt.Sprintf("(%s %s %s)", l, n.Op, r)
}

func (g *cEmitter) call(n *CallExpr) string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = g.expr(a)
	}
	joined := strings.Join(args, ", ")

	if n.Receiver != nil {
		return g.methodCall(n, args)
	}
	if printHelpers[n.CalleeName] {
		suffix := printSuffix(n.Args[0].Type())
		return fmt.Sprintf("lsc_%s_%s(%s)", n.CalleeName, suffix, joined)
	}
	if n.SpecializedName != "" {
		return fmt.Sprintf("%s(%s)", n.SpecializedName, joined)
	}
	if _, ok := widenHelpers[n.CalleeName]; ok {
		return fmt.Sprintf("%s(%s)", n.CalleeName, joined)
	}
	if _, ok := cliHelpers[n.CalleeName]; ok {
		return fmt.Sprintf("%s(%s)", n.CalleeName, joined)
	}
	for _, fn := range g.module.Functions {
		if fn.Name == n.CalleeName {
			return fmt.Sprintf("%s(%s)", g.funcCName(fn.Name), joined)
		}
	}
	for _, c := range g.module.Classes {
		if c.Name == n.CalleeName {
			return fmt.Sprintf("%s_make(%s)", g.classCName(c), joined)
		}
	}
	return fmt.Sprintf("%s(%s)", sanitizeCIdent(n.CalleeName), joined)
}

func (g *cEmitter) methodCall(n *CallExpr, args []string) string {
	recv := g.expr(n.Receiver)
	recvType := n.Receiver.Type()
	class := g.classByID[recvType.ClassID]
	if class == nil {
		return fmt.Sprintf("%s(%s)", sanitizeCIdent(n.CalleeName), strings.Join(append([]string{recv}, args...), ", "))
	}
	impl, meth := g.resolveVirtual(class, n.CalleeName)
	callArgs := strings.Join(append([]string{recv}, args...), ", ")
	if meth != nil && (meth.Virtual || meth.Override) && !meth.Final {
		// Indirect call through the vtable.
		return fmt.Sprintf("%s->vt->%s(%s)", recv, cSafeName(n.CalleeName), callArgs)
	}
	if impl == nil {
		impl = class
	}
	return fmt.Sprintf("%s_%s(%s)", g.classCName(impl), sanitizeCIdent(n.CalleeName), callArgs)
}

// ---- type/lexeme rendering ----

func (g *cEmitter) cType(t Type) string {
	switch t.Tag {
	case TyVoid:
		return "void"
	case TyBool:
		return "lsc_bool"
	case TyI32:
		return "lsc_i32"
	case TyI64:
		return "lsc_i64"
	case TyF32:
		return "lsc_f32"
	case TyF64:
		return "lsc_f64"
	case TyStr:
		return "lsc_str"
	case TyHandle:
		return "lsc_handle"
	case TyClass:
		if c := g.classByID[t.ClassID]; c != nil {
			return g.classCName(c) + " *"
		}
		return "void *"
	default:
		return "lsc_i64"
	}
}

func (g *cEmitter) zeroValue(t Type) string {
	switch t.Tag {
	case TyBool:
		return "false"
	case TyF32, TyF64:
		return "0.0"
	case TyStr:
		return "\"\""
	case TyClass:
		return "NULL"
	default:
		return "0"
	}
}

func printSuffix(t Type) string {
	switch t.Tag {
	case TyBool:
		return "bool"
	case TyF32, TyF64:
		return "f64"
	case TyStr:
		return "str"
	default:
		return "i64"
	}
}

func formatCInt(v int64) string {
	return fmt.Sprintf("%dLL", v)
}

func formatCFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func cStringLit(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func sanitizeCIdent(s string) string {
	if s == "" {
		return "X"
	}
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if i == 0 {
			if r == '_' || unicode.IsLetter(r) {
				b.WriteRune(r)
				continue
			}
			if unicode.IsDigit(r) {
				b.WriteRune('_')
				b.WriteRune(r)
				continue
			}
			b.WriteRune('_')
			continue
		}
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// cSafeName sanitizes a bare local/parameter/field name, stepping
// around C reserved words. Prefixed names (ls_*, lsc_*) never collide
// and use sanitizeCIdent directly.
func cSafeName(s string) string {
	out := sanitizeCIdent(s)
	if cReservedWords[out] {
		out += "_"
	}
	return out
}

var cReservedWords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true, "main": true, "free": true,
}

// ---- shared AST walks ----

// blockUsesSpeed reports whether stmts contain a `.stateSpeed()` marker
// at any nesting depth, which makes the enclosing function record its
// entry timestamp.
func blockUsesSpeed(stmts []Stmt) bool {
	found := false
	walkStmtsDeep(stmts, func(s Stmt) {
		if m, ok := s.(*MarkerStmt); ok && m.Name == "stateSpeed" {
			found = true
		}
	})
	return found
}

// loopIsVectorizable gates the clang loop-annotation pragma:
// straight-line counted bodies only, no calls and no nested control
// flow.
func loopIsVectorizable(stmts []Stmt) bool {
	eligible := true
	for _, s := range stmts {
		switch n := s.(type) {
		case *AssignStmt:
			if exprHasCall(n.Target) || exprHasCall(n.Value) {
				eligible = false
			}
		case *VarDeclStmt:
			if n.Init != nil && exprHasCall(n.Init) {
				eligible = false
			}
		case *ExprStmt:
			if exprHasCall(n.X) {
				eligible = false
			}
		default:
			eligible = false
		}
	}
	return eligible && len(stmts) > 0
}

func exprHasCall(e Expr) bool {
	found := false
	walkExprDeep(e, func(x Expr) {
		if _, ok := x.(*CallExpr); ok {
			found = true
		}
	})
	return found
}

func walkExprDeep(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *UnaryExpr:
		walkExprDeep(n.X, visit)
	case *BinaryExpr:
		walkExprDeep(n.L, visit)
		walkExprDeep(n.R, visit)
	case *CallExpr:
		walkExprDeep(n.Receiver, visit)
		for _, a := range n.Args {
			walkExprDeep(a, visit)
		}
	case *IndexExpr:
		walkExprDeep(n.X, visit)
		walkExprDeep(n.Index, visit)
	case *MemberExpr:
		walkExprDeep(n.X, visit)
	case *CastExpr:
		walkExprDeep(n.X, visit)
	case *RangeExpr:
		walkExprDeep(n.Start, visit)
		walkExprDeep(n.End, visit)
		walkExprDeep(n.Step, visit)
	}
}

func walkStmtsDeep(stmts []Stmt, visit func(Stmt)) {
	for _, s := range stmts {
		if s == nil {
			continue
		}
		visit(s)
		switch n := s.(type) {
		case *BlockStmt:
			walkStmtsDeep(n.Stmts, visit)
		case *IfStmt:
			walkStmtsDeep(n.Then.Stmts, visit)
			for _, e := range n.Elifs {
				walkStmtsDeep(e.Body.Stmts, visit)
			}
			if n.Else != nil {
				walkStmtsDeep(n.Else.Stmts, visit)
			}
		case *WhileStmt:
			walkStmtsDeep(n.Body.Stmts, visit)
		case *ForRangeStmt:
			walkStmtsDeep(n.Body.Stmts, visit)
		}
	}
}

func (g *cEmitter) walkModuleStmts(visit func(Stmt)) {
	walkStmtsDeep(g.module.TopLevel, visit)
	for _, fn := range g.module.Functions {
		walkStmtsDeep(fn.Body.Stmts, visit)
	}
	for _, c := range g.module.Classes {
		for _, meth := range c.Methods {
			walkStmtsDeep(meth.Body.Stmts, visit)
		}
		if c.Constructor != nil {
			walkStmtsDeep(c.Constructor.Body.Stmts, visit)
		}
	}
}

func (g *cEmitter) walkModuleExprs(visit func(Expr)) {
	g.walkModuleStmts(func(s Stmt) {
		switch n := s.(type) {
		case *VarDeclStmt:
			walkExprDeep(n.Init, visit)
		case *AssignStmt:
			walkExprDeep(n.Target, visit)
			walkExprDeep(n.Value, visit)
		case *IfStmt:
			walkExprDeep(n.Cond, visit)
			for _, e := range n.Elifs {
				walkExprDeep(e.Cond, visit)
			}
		case *WhileStmt:
			walkExprDeep(n.Cond, visit)
		case *ForRangeStmt:
			walkExprDeep(n.Start, visit)
			walkExprDeep(n.End, visit)
			walkExprDeep(n.Step, visit)
		case *ReturnStmt:
			walkExprDeep(n.Value, visit)
		case *ExprStmt:
			walkExprDeep(n.X, visit)
		case *SpawnStmt:
			walkExprDeep(n.Call, visit)
		case *AwaitStmt:
			walkExprDeep(n.X, visit)
		}
	})
}

func (g *cEmitter) walkOwned(visit func(*Symbol)) {
	emit := func(b *BlockStmt) {
		for _, sym := range b.OwnedLocals {
			visit(sym)
		}
	}
	for _, sym := range g.module.TopLevelOwned {
		visit(sym)
	}
	g.walkModuleStmts(func(s Stmt) {
		if b, ok := s.(*BlockStmt); ok {
			emit(b)
		}
	})
	for _, fn := range g.module.Functions {
		emit(fn.Body)
	}
	for _, c := range g.module.Classes {
		for _, meth := range c.Methods {
			emit(meth.Body)
		}
		if c.Constructor != nil {
			emit(c.Constructor.Body)
		}
	}
}
