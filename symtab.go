package lsc

import "github.com/samber/lo"

// SymbolKind classifies what a Symbol names.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymConstant
	SymFunction
	SymParameter
	SymClassField
	SymClassMethod
)

// StorageClass is where a Symbol lives.
type StorageClass int

const (
	StorageLocal StorageClass = iota
	StorageParameter
	StorageGlobal
)

// Symbol is one named entity: its type, kind, storage, mutability, and
// ownership.
type Symbol struct {
	Name     string
	Type     Type
	Kind     SymbolKind
	Storage  StorageClass
	Const    bool
	Owned    bool
	Moved    bool // set once ownership transfers out
	DeclSpan Span

	// DeclDepth is the scope stack depth (1 = global) this symbol was
	// declared at, stamped by Declare/DeclareGlobal. Used by parallel-for
	// validation to reject assignment to a variable
	// declared outside the loop body, at any nesting depth within it.
	DeclDepth int

	// FreeFn is the release function the C backend emits at scope exit
	// for an owned handle, derived from the constructor call that
	// initialized it.
	FreeFn string
}

// scope is one level of the lexical scope stack: a name→symbol map plus
// the ordered list of owned-handle symbols declared directly in it, for
// deterministic reverse-order teardown.
type scope struct {
	symbols map[string]*Symbol
	owned   []*Symbol
}

func newScope() *scope {
	return &scope{symbols: make(map[string]*Symbol)}
}

// SymbolTable is the ordered scope stack used during semantic analysis.
// It is created fresh per compilation and threaded explicitly through
// the analyzer rather than kept as package-level state.
type SymbolTable struct {
	global *scope
	stack  []*scope
}

func NewSymbolTable() *SymbolTable {
	g := newScope()
	return &SymbolTable{global: g, stack: []*scope{g}}
}

func (st *SymbolTable) PushScope() { st.stack = append(st.stack, newScope()) }

// PopScope removes the innermost scope and returns its still-owned
// handles in reverse declaration order, ready to be lowered to
// `*_free` calls at the scope's exit point.
func (st *SymbolTable) PopScope() []*Symbol {
	top := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	live := lo.Filter(top.owned, func(s *Symbol, _ int) bool { return !s.Moved })
	return lo.Reverse(live)
}

// Declare adds a new symbol to the innermost scope. It returns the
// previously declared symbol with the same name in the innermost scope,
// if any, for duplicate-declaration diagnostics.
func (st *SymbolTable) Declare(sym *Symbol) *Symbol {
	top := st.stack[len(st.stack)-1]
	prev := top.symbols[sym.Name]
	sym.DeclDepth = len(st.stack)
	top.symbols[sym.Name] = sym
	if sym.Owned {
		top.owned = append(top.owned, sym)
	}
	return prev
}

// DeclareGlobal adds sym directly to the outermost (global) scope,
// regardless of which scope is currently innermost — used for the
// module-wide pre-pass that makes every free-function name visible
// before any body is analyzed.
func (st *SymbolTable) DeclareGlobal(sym *Symbol) *Symbol {
	prev := st.global.symbols[sym.Name]
	sym.DeclDepth = 1
	st.global.symbols[sym.Name] = sym
	return prev
}

// Lookup walks from the innermost scope outward.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for i := len(st.stack) - 1; i >= 0; i-- {
		if sym, ok := st.stack[i].symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal looks up name only in the innermost scope.
func (st *SymbolTable) LookupLocal(name string) (*Symbol, bool) {
	top := st.stack[len(st.stack)-1]
	sym, ok := top.symbols[name]
	return sym, ok
}

// IsOutsideCurrentScope reports whether sym was declared in a scope
// strictly outside the innermost one — used by owned-handle tracking,
// where assigning an owned local to an outer-scope variable moves it.
func (st *SymbolTable) IsOutsideCurrentScope(sym *Symbol) bool {
	top := st.stack[len(st.stack)-1]
	_, inTop := top.symbols[sym.Name]
	return !inTop
}

// Depth returns the number of scopes currently pushed, including global.
func (st *SymbolTable) Depth() int { return len(st.stack) }
