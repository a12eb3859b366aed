package lsc

// Node is the common interface implemented by every AST node: declarations,
// statements, expressions, and class members.
type Node interface {
	Span() Span
}

// Decl is a top-level declaration: function, class, or a module-scope
// variable.
type Decl interface {
	Node
	declNode()
}

// Stmt is any statement inside a function/method body or a top-level
// statement block.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is any expression. Every Expr gets a concrete ResolvedType after
// semantic analysis.
type Expr interface {
	Node
	exprNode()
	Type() Type
	SetType(Type)
}

type exprBase struct {
	span Span
	typ  Type
}

func (e *exprBase) Span() Span     { return e.span }
func (e *exprBase) Type() Type     { return e.typ }
func (e *exprBase) SetType(t Type) { e.typ = t }
func (*exprBase) exprNode()        {}

type stmtBase struct{ span Span }

func (s *stmtBase) Span() Span { return s.span }
func (*stmtBase) stmtNode()    {}

type declBase struct{ span Span }

func (d *declBase) Span() Span { return d.span }
func (*declBase) declNode()    {}

// ---- Module ----

// Module is the concatenation, in command-line order, of every input
// file's top-level items.
type Module struct {
	Files     []string
	TopLevel  []Stmt
	Functions []*FuncDecl
	Classes   []*ClassDecl
	Flags     []*FlagDecl

	// TopLevelOwned is populated by the semantic analyzer with the
	// still-owned handles declared directly among TopLevel, in
	// reverse declaration order — the implicit entry is its own scope,
	// just like a function body.
	TopLevelOwned []*Symbol
}

// ---- Declarations ----

type Param struct {
	Name string
	Type Type
	Span Span
}

type FuncDecl struct {
	declBase
	Name       string
	Params     []Param
	ResultType Type
	Throws     []string
	Body       *BlockStmt

	// Receiver is non-empty when this FuncDecl is a class method.
	Receiver  string // class name, or "" for a free function
	Virtual   bool
	Override  bool
	Final     bool
	Access    Access
	IsCtor    bool
	BaseArgs  []Expr // constructor's `: Base(args)` initializer list

	// set by the semantic analyzer
	Symbol *Symbol
}

type Access int

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return "public"
	}
}

type FieldDecl struct {
	declBase
	Name   string
	Type   Type
	Access Access
}

type ClassDecl struct {
	declBase
	Name        string
	BaseName    string // "" if no `extends`
	Fields      []*FieldDecl
	Methods     []*FuncDecl
	Constructor *FuncDecl // nil if absent

	// resolved during semantic analysis
	ClassID int32
	BaseID  int32 // -1 if no base
}

// FlagDecl is a source-declared `flag name() do ... end` block. It
// registers the flag name for `cli_has`/`cli_value` introspection. The
// body is parsed and kept here, but it is not analyzed and neither
// backend emits it, so it never runs.
type FlagDecl struct {
	declBase
	Name string
	Body *BlockStmt
}

// ---- Statements ----

type BlockStmt struct {
	stmtBase
	Stmts []Stmt

	// OwnedLocals is populated by the semantic analyzer with the
	// still-owned handles declared directly in this block, in reverse
	// declaration order, which is the order they are released at scope
	// exit.
	OwnedLocals []*Symbol
}

type VarDeclStmt struct {
	stmtBase
	Name          string
	Const         bool
	Owned         bool
	DeclaredType  *Type // nil if omitted (inferred from Init)
	Init          Expr  // nil only if DeclaredType != nil
	ResolvedType  Type
	Symbol        *Symbol
}

type AssignStmt struct {
	stmtBase
	Target Expr
	Op     string // "=", "+=", "-=", "*=", "/=", "%=", "^=", "**="
	Value  Expr
}

type ElifClause struct {
	Cond Expr
	Body *BlockStmt
}

type IfStmt struct {
	stmtBase
	Cond  Expr
	Then  *BlockStmt
	Elifs []ElifClause
	Else  *BlockStmt // nil if absent
}

type WhileStmt struct {
	stmtBase
	Cond Expr
	Body *BlockStmt
}

type ForRangeStmt struct {
	stmtBase
	Var      string
	Start    Expr
	End      Expr
	Step     Expr // nil if omitted (defaults to constant 1)
	Parallel bool
	Body     *BlockStmt

	// Symbol is the loop variable's symbol, scoped to Body.
	Symbol *Symbol
}

type ReturnStmt struct {
	stmtBase
	Value Expr // nil for bare `return` in a void function
}

type BreakStmt struct{ stmtBase }
type ContinueStmt struct{ stmtBase }

type ExprStmt struct {
	stmtBase
	X Expr
}

// MarkerStmt is one of the scoped markers `.format()`, `.freeConsole()`,
// `.stateSpeed()`.
type MarkerStmt struct {
	stmtBase
	Name string
}

type SpawnStmt struct {
	stmtBase
	Target string // variable bound to the spawned task handle, "" if discarded
	Call   *CallExpr
}

type AwaitStmt struct {
	stmtBase
	X Expr
}

// ---- Expressions ----

type IntLit struct {
	exprBase
	Value int64
}

type FloatLit struct {
	exprBase
	Value float64
}

type StringLit struct {
	exprBase
	Value string
}

type BoolLit struct {
	exprBase
	Value bool
}

type VarRef struct {
	exprBase
	Name   string
	Symbol *Symbol
}

type UnaryExpr struct {
	exprBase
	Op string // "not", "-", "+", postfix "++"/"--"
	X  Expr
	Postfix bool
}

type BinaryExpr struct {
	exprBase
	Op   string
	L, R Expr
}

type CallExpr struct {
	exprBase
	CalleeName string
	Receiver   Expr // non-nil for `obj.method(args)` method calls
	Args       []Expr

	// Callee is the resolved callee symbol, set by the semantic
	// analyzer.
	Callee *Symbol
	// SpecializedName is set when a generic helper (max/min/abs/
	// clamp) is expanded to its type-specialized variant, e.g.
	// "max_i64".
	SpecializedName string
}

type IndexExpr struct {
	exprBase
	X     Expr
	Index Expr
}

type MemberExpr struct {
	exprBase
	X    Expr
	Name string
}

type CastExpr struct {
	exprBase
	X    Expr
	To   Type
}

// RangeExpr appears only in a for-range header: `start..end [step e]`.
type RangeExpr struct {
	exprBase
	Start Expr
	End   Expr
	Step  Expr
}
