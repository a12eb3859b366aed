package lsc

import "fmt"

// Parser turns one file's token stream into a module fragment: its
// top-level statements, function declarations, and class declarations,
// later concatenated with other files' fragments in command-line order
// by MergeModules.
type Parser struct {
	file  FileID
	toks  []Token
	pos   int
	diags *Diagnostics
}

func NewParser(file FileID, toks []Token, diags *Diagnostics) *Parser {
	return &Parser{file: file, toks: toks, diags: diags}
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) isKw(word string) bool {
	t := p.cur()
	return t.Kind == TokKeyword && t.Lexeme == word
}

func (p *Parser) isOp(op string) bool {
	t := p.cur()
	return t.Kind == TokOperator && t.Lexeme == op
}

func (p *Parser) isPunct(s string) bool {
	t := p.cur()
	return t.Kind == TokPunct && t.Lexeme == s
}

func (p *Parser) skipNewlines() {
	for p.cur().Kind == TokNewline {
		p.advance()
	}
}

// skipTerminator consumes every consecutive newline after a statement,
// or nothing if the next token is `end`/`elif`/`else`/EOF (the block
// closer implicitly terminates the prior statement).
func (p *Parser) skipTerminator() {
	for p.cur().Kind == TokNewline {
		p.advance()
	}
}

func (p *Parser) errHere(msg string) {
	p.diags.AddError(NewSyntaxError(msg, p.cur().Span))
}

// recover skips tokens until a statement terminator or `end`, so one
// bad statement doesn't stop the whole phase from reporting further
// errors.
func (p *Parser) recover() {
	for !p.atEOF() && p.cur().Kind != TokNewline && !p.isKw("end") {
		p.advance()
	}
}

func (p *Parser) expectPunct(s string) bool {
	if p.isPunct(s) {
		p.advance()
		return true
	}
	p.errHere(fmt.Sprintf("expected %q", s))
	return false
}

func (p *Parser) expectKw(word string) bool {
	if p.isKw(word) {
		p.advance()
		return true
	}
	p.errHere(fmt.Sprintf("expected %q", word))
	return false
}

func (p *Parser) expectIdent() (string, bool) {
	if p.cur().Kind == TokIdent {
		name := p.cur().Lexeme
		p.advance()
		return name, true
	}
	p.errHere("expected identifier")
	return "", false
}

// ---- Top level ----

// ParseFragment parses one file into a module fragment.
func (p *Parser) ParseFragment() *Module {
	m := &Module{}
	p.skipNewlines()
	for !p.atEOF() {
		switch {
		case p.isKw("class"):
			if c := p.parseClass(); c != nil {
				m.Classes = append(m.Classes, c)
			}
		case p.isKw("flag"):
			if f := p.parseFlag(); f != nil {
				m.Flags = append(m.Flags, f)
			}
		case p.looksLikeFuncDecl():
			if fn := p.parseFuncDecl(""); fn != nil {
				m.Functions = append(m.Functions, fn)
			}
		default:
			if s := p.parseStmt(); s != nil {
				m.TopLevel = append(m.TopLevel, s)
			}
		}
		p.skipNewlines()
	}
	return m
}

// looksLikeFuncDecl reports whether the parser is positioned at a
// function declaration: an `fn`/`func` keyword, or `identifier (...)`
// followed by `->`, `throws`, or (after newlines) `do`. A call
// statement such as `println(x)` is not a declaration.
func (p *Parser) looksLikeFuncDecl() bool {
	save := p.pos
	defer func() { p.pos = save }()
	if p.isKw("fn") || p.isKw("func") {
		return true
	}
	if p.cur().Kind != TokIdent {
		return false
	}
	p.advance()
	if !p.isPunct("(") {
		return false
	}
	for depth := 0; !p.atEOF(); p.advance() {
		if p.isPunct("(") {
			depth++
		} else if p.isPunct(")") {
			depth--
			if depth == 0 {
				p.advance()
				break
			}
		}
	}
	if p.isOp("->") || p.isKw("throws") {
		return true
	}
	p.skipNewlines()
	return p.isKw("do")
}

func (p *Parser) parseFlag() *FlagDecl {
	start := p.cur().Span
	p.advance() // 'flag'
	name, ok := p.expectIdent()
	if !ok {
		p.recover()
		return nil
	}
	p.expectPunct("(")
	p.expectPunct(")")
	p.skipNewlines()
	p.expectKw("do")
	body := p.parseBlockUntil("end")
	p.expectKw("end")
	return &FlagDecl{declBase: declBase{span: start}, Name: name, Body: body}
}

func (p *Parser) parseFuncDecl(receiver string) *FuncDecl {
	start := p.cur().Span
	if p.isKw("fn") || p.isKw("func") {
		p.advance()
	}
	name, ok := p.expectIdent()
	if !ok {
		p.recover()
		return nil
	}
	params := p.parseParamList()
	result := Void
	if p.isOp("->") {
		p.advance()
		result = p.parseTypeName()
	}
	var throws []string
	if p.isKw("throws") {
		p.advance()
		for {
			id, ok := p.expectIdent()
			if !ok {
				break
			}
			throws = append(throws, id)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	p.skipNewlines()
	p.expectKw("do")
	body := p.parseBlockUntil("end")
	p.expectKw("end")
	return &FuncDecl{
		declBase:   declBase{span: start},
		Name:       name,
		Params:     params,
		ResultType: result,
		Throws:     throws,
		Body:       body,
		Receiver:   receiver,
	}
}

func (p *Parser) parseParamList() []Param {
	var params []Param
	p.expectPunct("(")
	for !p.isPunct(")") && !p.atEOF() {
		name, ok := p.expectIdent()
		if !ok {
			break
		}
		typ := Unresolved
		if p.isPunct(":") {
			p.advance()
			typ = p.parseTypeName()
		}
		params = append(params, Param{Name: name, Type: typ})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(")")
	return params
}

var builtinTypeNames = map[string]Type{
	"void": Void, "bool": Bool, "i32": I32, "i64": I64,
	"f32": F32, "f64": F64, "str": Str, "handle": Handle,
}

func (p *Parser) parseTypeName() Type {
	name, ok := p.expectIdent()
	if !ok {
		return Unresolved
	}
	if t, ok := builtinTypeNames[name]; ok {
		return t
	}
	// Unresolved class reference; the semantic analyzer fills in
	// ClassID once every class name is known.
	return Type{Tag: TyClass, ClassID: -1, Throws: []string{name}}
}

func (p *Parser) parseClass() *ClassDecl {
	start := p.cur().Span
	p.advance() // 'class'
	name, ok := p.expectIdent()
	if !ok {
		p.recover()
		return nil
	}
	base := ""
	if p.isKw("extends") {
		p.advance()
		base, _ = p.expectIdent()
	}
	p.skipNewlines()
	p.expectKw("do")
	cd := &ClassDecl{declBase: declBase{span: start}, Name: name, BaseName: base, BaseID: -1}
	seen := map[string]bool{}
	for !p.isKw("end") && !p.atEOF() {
		p.skipNewlines()
		if p.isKw("end") {
			break
		}
		access := AccessPublic
		switch {
		case p.isKw("public"):
			p.advance()
		case p.isKw("protected"):
			access = AccessProtected
			p.advance()
		case p.isKw("private"):
			access = AccessPrivate
			p.advance()
		}
		virtual, override, final := false, false, false
		for p.isKw("virtual") || p.isKw("override") || p.isKw("final") {
			switch p.cur().Lexeme {
			case "virtual":
				virtual = true
			case "override":
				override = true
			case "final":
				final = true
			}
			p.advance()
		}
		switch {
		case p.isKw("constructor"):
			ctorSpan := p.cur().Span
			p.advance()
			params := p.parseParamList()
			var baseArgs []Expr
			if p.isPunct(":") {
				p.advance()
				p.expectIdent() // base class name, informational only
				p.expectPunct("(")
				for !p.isPunct(")") && !p.atEOF() {
					baseArgs = append(baseArgs, p.parseExpr())
					if p.isPunct(",") {
						p.advance()
						continue
					}
					break
				}
				p.expectPunct(")")
			}
			p.skipNewlines()
			p.expectKw("do")
			body := p.parseBlockUntil("end")
			p.expectKw("end")
			cd.Constructor = &FuncDecl{
				declBase: declBase{span: ctorSpan}, Name: "constructor",
				Params: params, Body: body, Receiver: name, IsCtor: true,
				BaseArgs: baseArgs, Access: access,
			}
		case p.looksLikeFuncDecl():
			fn := p.parseFuncDecl(name)
			if fn != nil {
				fn.Virtual, fn.Override, fn.Final, fn.Access = virtual, override, final, access
				if seen[fn.Name] {
					p.diags.AddError(NewNameError(
						fmt.Sprintf("duplicate member %q in class %q", fn.Name, name), fn.Span()))
				}
				seen[fn.Name] = true
				cd.Methods = append(cd.Methods, fn)
			}
		default:
			fieldSpan := p.cur().Span
			fname, ok := p.expectIdent()
			if !ok {
				p.recover()
				p.skipTerminator()
				continue
			}
			ftype := Unresolved
			if p.isPunct(":") {
				p.advance()
				ftype = p.parseTypeName()
			}
			if seen[fname] {
				p.diags.AddError(NewNameError(
					fmt.Sprintf("duplicate member %q in class %q", fname, name), fieldSpan))
			}
			seen[fname] = true
			cd.Fields = append(cd.Fields, &FieldDecl{
				declBase: declBase{span: fieldSpan}, Name: fname, Type: ftype, Access: access,
			})
		}
		p.skipTerminator()
	}
	p.expectKw("end")
	return cd
}

// ---- Statements ----

func (p *Parser) parseBlockUntil(closer string) *BlockStmt {
	start := p.cur().Span
	blk := &BlockStmt{stmtBase: stmtBase{span: start}}
	p.skipNewlines()
	for !p.isKw(closer) && !p.isKw("elif") && !p.isKw("else") && !p.atEOF() {
		if s := p.parseStmt(); s != nil {
			blk.Stmts = append(blk.Stmts, s)
		}
		p.skipTerminator()
	}
	return blk
}

func (p *Parser) parseStmt() Stmt {
	switch {
	case p.isKw("declare"):
		return p.parseVarDecl()
	case p.isKw("if"):
		return p.parseIf()
	case p.isKw("while"):
		return p.parseWhile()
	case p.isKw("for"):
		return p.parseForRange(false)
	case p.isKw("parallel"):
		p.advance()
		p.expectKw("for")
		return p.parseForRangeBody(true)
	case p.isKw("return"):
		return p.parseReturn()
	case p.isKw("break"):
		s := p.cur().Span
		p.advance()
		return &BreakStmt{stmtBase{s}}
	case p.isKw("continue"):
		s := p.cur().Span
		p.advance()
		return &ContinueStmt{stmtBase{s}}
	case p.isKw("spawn"):
		return p.parseSpawn()
	case p.isKw("await"):
		s := p.cur().Span
		p.advance()
		x := p.parseExpr()
		return &AwaitStmt{stmtBase{s}, x}
	case p.cur().Kind == TokMarker && isScopedMarker(p.cur().Lexeme):
		s := p.cur().Span
		name := p.cur().Lexeme
		p.advance()
		if p.isPunct("(") {
			p.advance()
			p.expectPunct(")")
		}
		return &MarkerStmt{stmtBase{s}, name}
	default:
		return p.parseExprOrAssignStmt()
	}
}

func isScopedMarker(name string) bool {
	return name == "format" || name == "freeConsole" || name == "stateSpeed"
}

func (p *Parser) parseVarDecl() Stmt {
	start := p.cur().Span
	p.advance() // 'declare'
	isConst, owned := false, false
	for {
		if p.isKw("const") {
			isConst = true
			p.advance()
			continue
		}
		if p.isKw("owned") {
			owned = true
			p.advance()
			continue
		}
		break
	}
	name, ok := p.expectIdent()
	if !ok {
		p.recover()
		return nil
	}
	var declared *Type
	if p.isPunct(":") {
		p.advance()
		t := p.parseTypeName()
		declared = &t
	}
	var init Expr
	if p.isOp("=") {
		p.advance()
		init = p.parseExpr()
	}
	if declared == nil && init == nil {
		p.diags.AddError(NewSyntaxError(
			fmt.Sprintf("declaration of %q needs a type annotation or an initializer", name), start))
	}
	return &VarDeclStmt{stmtBase: stmtBase{start}, Name: name, Const: isConst, Owned: owned, DeclaredType: declared, Init: init}
}

func (p *Parser) parseIf() Stmt {
	start := p.cur().Span
	p.advance() // 'if'
	cond := p.parseExpr()
	p.skipNewlines()
	p.expectKw("do")
	then := p.parseBlockUntil("end")
	stmt := &IfStmt{stmtBase: stmtBase{start}, Cond: cond, Then: then}
	for p.isKw("elif") {
		p.advance()
		c := p.parseExpr()
		p.skipNewlines()
		p.expectKw("do")
		b := p.parseBlockUntil("end")
		stmt.Elifs = append(stmt.Elifs, ElifClause{Cond: c, Body: b})
	}
	if p.isKw("else") {
		p.advance()
		p.skipNewlines()
		stmt.Else = p.parseBlockUntil("end")
	}
	p.expectKw("end")
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	start := p.cur().Span
	p.advance()
	cond := p.parseExpr()
	p.skipNewlines()
	p.expectKw("do")
	body := p.parseBlockUntil("end")
	p.expectKw("end")
	return &WhileStmt{stmtBase{start}, cond, body}
}

func (p *Parser) parseForRange(_ bool) Stmt {
	p.advance() // 'for'
	return p.parseForRangeBody(false)
}

func (p *Parser) parseForRangeBody(parallel bool) Stmt {
	start := p.cur().Span
	name, ok := p.expectIdent()
	if !ok {
		p.recover()
		return nil
	}
	p.expectKw("in")
	startExpr := p.parseExpr()
	if !p.isOp("..") {
		p.errHere("expected `..` in for-range")
	} else {
		p.advance()
	}
	endExpr := p.parseExpr()
	var step Expr
	if p.isKw("step") {
		p.advance()
		step = p.parseExpr()
	}
	p.skipNewlines()
	p.expectKw("do")
	body := p.parseBlockUntil("end")
	p.expectKw("end")
	return &ForRangeStmt{
		stmtBase: stmtBase{start}, Var: name, Start: startExpr, End: endExpr,
		Step: step, Parallel: parallel, Body: body,
	}
}

func (p *Parser) parseReturn() Stmt {
	start := p.cur().Span
	p.advance()
	var val Expr
	if p.cur().Kind != TokNewline && !p.isKw("end") && !p.atEOF() {
		val = p.parseExpr()
	}
	return &ReturnStmt{stmtBase{start}, val}
}

func (p *Parser) parseSpawn() Stmt {
	start := p.cur().Span
	p.advance() // 'spawn'
	target := ""
	save := p.pos
	if p.cur().Kind == TokIdent && p.toks[p.pos+1].Kind == TokOperator && p.toks[p.pos+1].Lexeme == "=" {
		target = p.cur().Lexeme
		p.advance()
		p.advance()
	} else {
		p.pos = save
	}
	x := p.parseExpr()
	call, ok := x.(*CallExpr)
	if !ok {
		p.diags.AddError(NewSyntaxError("spawn requires a call expression", start))
		return &SpawnStmt{stmtBase{start}, target, &CallExpr{exprBase: exprBase{span: start}}}
	}
	return &SpawnStmt{stmtBase{start}, target, call}
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true, "^=": true, "**=": true,
}

func (p *Parser) parseExprOrAssignStmt() Stmt {
	start := p.cur().Span
	x := p.parseExpr()
	if p.cur().Kind == TokOperator && assignOps[p.cur().Lexeme] {
		op := p.cur().Lexeme
		p.advance()
		val := p.parseExpr()
		return &AssignStmt{stmtBase: stmtBase{start}, Target: x, Op: op, Value: val}
	}
	if u, ok := x.(*UnaryExpr); ok && u.Postfix {
		return &ExprStmt{stmtBase{start}, x}
	}
	return &ExprStmt{stmtBase{start}, x}
}

// ---- Expressions (Pratt / precedence climbing) ----

func (p *Parser) parseExpr() Expr { return p.parseOr() }

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for p.isKw("or") {
		op := p.cur()
		p.advance()
		right := p.parseAnd()
		left = &BinaryExpr{exprBase: exprBase{span: Join(left.Span(), right.Span())}, Op: op.Lexeme, L: left, R: right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseComparison()
	for p.isKw("and") {
		op := p.cur()
		p.advance()
		right := p.parseComparison()
		left = &BinaryExpr{exprBase: exprBase{span: Join(left.Span(), right.Span())}, Op: op.Lexeme, L: left, R: right}
	}
	return left
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	for p.cur().Kind == TokOperator && comparisonOps[p.cur().Lexeme] {
		op := p.cur()
		p.advance()
		right := p.parseAdditive()
		left = &BinaryExpr{exprBase: exprBase{span: Join(left.Span(), right.Span())}, Op: op.Lexeme, L: left, R: right}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.cur().Kind == TokOperator && (p.cur().Lexeme == "+" || p.cur().Lexeme == "-") {
		op := p.cur()
		p.advance()
		right := p.parseMultiplicative()
		left = &BinaryExpr{exprBase: exprBase{span: Join(left.Span(), right.Span())}, Op: op.Lexeme, L: left, R: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parsePower()
	for p.cur().Kind == TokOperator && (p.cur().Lexeme == "*" || p.cur().Lexeme == "/" || p.cur().Lexeme == "%") {
		op := p.cur()
		p.advance()
		right := p.parsePower()
		left = &BinaryExpr{exprBase: exprBase{span: Join(left.Span(), right.Span())}, Op: op.Lexeme, L: left, R: right}
	}
	return left
}

// parsePower implements `**`/`^` as same-tier, right-associative.
func (p *Parser) parsePower() Expr {
	left := p.parseUnary()
	if p.cur().Kind == TokOperator && (p.cur().Lexeme == "**" || p.cur().Lexeme == "^") {
		op := p.cur()
		p.advance()
		right := p.parsePower()
		return &BinaryExpr{exprBase: exprBase{span: Join(left.Span(), right.Span())}, Op: op.Lexeme, L: left, R: right}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.isKw("not") || (p.cur().Kind == TokOperator && (p.cur().Lexeme == "-" || p.cur().Lexeme == "+")) {
		op := p.cur()
		p.advance()
		x := p.parseUnary()
		return &UnaryExpr{exprBase: exprBase{span: Join(op.Span, x.Span())}, Op: op.Lexeme, X: x}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for {
		switch {
		case p.cur().Kind == TokOperator && (p.cur().Lexeme == "++" || p.cur().Lexeme == "--"):
			op := p.cur()
			p.advance()
			x = &UnaryExpr{exprBase: exprBase{span: Join(x.Span(), op.Span)}, Op: op.Lexeme, X: x, Postfix: true}
		case p.isPunct("("):
			x = p.finishCall(x)
		case p.isPunct("["):
			p.advance()
			idx := p.parseExpr()
			end := p.cur().Span
			p.expectPunct("]")
			x = &IndexExpr{exprBase: exprBase{span: Join(x.Span(), end)}, X: x, Index: idx}
		case p.cur().Kind == TokMarker:
			name := p.cur().Lexeme
			span := p.cur().Span
			p.advance()
			x = &MemberExpr{exprBase: exprBase{span: Join(x.Span(), span)}, X: x, Name: name}
		default:
			return x
		}
	}
}

func (p *Parser) finishCall(callee Expr) Expr {
	p.advance() // '('
	var args []Expr
	for !p.isPunct(")") && !p.atEOF() {
		args = append(args, p.parseExpr())
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	end := p.cur().Span
	p.expectPunct(")")
	name := ""
	var receiver Expr
	switch c := callee.(type) {
	case *VarRef:
		name = c.Name
	case *MemberExpr:
		name = c.Name
		receiver = c.X
	default:
		p.errHere("call target must be a function name or method")
	}
	return &CallExpr{exprBase: exprBase{span: Join(callee.Span(), end)}, CalleeName: name, Receiver: receiver, Args: args}
}

func (p *Parser) parsePrimary() Expr {
	t := p.cur()
	switch t.Kind {
	case TokInt:
		p.advance()
		return &IntLit{exprBase: exprBase{span: t.Span, typ: I64}, Value: t.IntVal}
	case TokFloat:
		p.advance()
		return &FloatLit{exprBase: exprBase{span: t.Span, typ: F64}, Value: t.FltVal}
	case TokString:
		p.advance()
		return &StringLit{exprBase: exprBase{span: t.Span, typ: Str}, Value: t.StrVal}
	case TokKeyword:
		if t.Lexeme == "true" || t.Lexeme == "false" {
			p.advance()
			return &BoolLit{exprBase: exprBase{span: t.Span, typ: Bool}, Value: t.Lexeme == "true"}
		}
	case TokIdent:
		p.advance()
		return &VarRef{exprBase: exprBase{span: t.Span}, Name: t.Lexeme}
	case TokPunct:
		if t.Lexeme == "(" {
			p.advance()
			x := p.parseExpr()
			p.expectPunct(")")
			return x
		}
	}
	p.errHere("expected expression")
	p.advance()
	return &IntLit{exprBase: exprBase{span: t.Span, typ: I64}, Value: 0}
}

// MergeModules concatenates N file fragments, in command-line order,
// into one module AST.
func MergeModules(files []string, fragments []*Module) *Module {
	m := &Module{Files: files}
	for _, f := range fragments {
		m.TopLevel = append(m.TopLevel, f.TopLevel...)
		m.Functions = append(m.Functions, f.Functions...)
		m.Classes = append(m.Classes, f.Classes...)
		m.Flags = append(m.Flags, f.Flags...)
	}
	return m
}
