package lsc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) (*Module, *Diagnostics) {
	t.Helper()
	diags := NewDiagnostics(false)
	toks := NewLexer(0, []byte(src), diags).Tokenize()
	frag := NewParser(0, toks, diags).ParseFragment()
	return MergeModules([]string{"test.lsc"}, []*Module{frag}), diags
}

func TestParseFuncDecl(t *testing.T) {
	m, diags := parseSource(t, `
add(a: i64, b: i64) -> i64 do
	return a + b
end
`)
	require.False(t, diags.HasErrors())
	require.Len(t, m.Functions, 1)

	fn := m.Functions[0]
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, I64, fn.Params[0].Type)
	assert.Equal(t, I64, fn.ResultType)
	require.Len(t, fn.Body.Stmts, 1)
	_, ok := fn.Body.Stmts[0].(*ReturnStmt)
	assert.True(t, ok)
}

func TestParseFuncKeywordOptional(t *testing.T) {
	for _, src := range []string{
		"fn f() do end",
		"func f() do end",
		"f() do end",
	} {
		m, diags := parseSource(t, src)
		require.False(t, diags.HasErrors(), src)
		require.Len(t, m.Functions, 1, src)
		assert.Equal(t, "f", m.Functions[0].Name)
		assert.Equal(t, Void, m.Functions[0].ResultType)
	}
}

func TestParseThrowsClause(t *testing.T) {
	m, diags := parseSource(t, `
fetch() -> str throws NetworkDown, Timeout do
	return ""
end
`)
	require.False(t, diags.HasErrors())
	assert.Equal(t, []string{"NetworkDown", "Timeout"}, m.Functions[0].Throws)
}

func TestParseVarDecl(t *testing.T) {
	m, diags := parseSource(t, `
declare x = 1
declare const y: i64 = 2
declare owned h = canvas_new(3)
declare z: f64
`)
	require.False(t, diags.HasErrors())
	require.Len(t, m.TopLevel, 4)

	v0 := m.TopLevel[0].(*VarDeclStmt)
	assert.Nil(t, v0.DeclaredType)
	assert.NotNil(t, v0.Init)

	v1 := m.TopLevel[1].(*VarDeclStmt)
	assert.True(t, v1.Const)
	assert.Equal(t, I64, *v1.DeclaredType)

	v2 := m.TopLevel[2].(*VarDeclStmt)
	assert.True(t, v2.Owned)

	v3 := m.TopLevel[3].(*VarDeclStmt)
	assert.Equal(t, F64, *v3.DeclaredType)
	assert.Nil(t, v3.Init)
}

func TestParseVarDeclNeedsTypeOrInit(t *testing.T) {
	_, diags := parseSource(t, "declare x")
	require.True(t, diags.HasErrors())
	assert.Equal(t, "SyntaxError", diags.Items()[0].Kind)
}

func TestParsePrecedence(t *testing.T) {
	m, diags := parseSource(t, "declare x = 1 + 2 * 3")
	require.False(t, diags.HasErrors())

	add := m.TopLevel[0].(*VarDeclStmt).Init.(*BinaryExpr)
	assert.Equal(t, "+", add.Op)
	mul := add.R.(*BinaryExpr)
	assert.Equal(t, "*", mul.Op)
}

func TestParsePowerRightAssociative(t *testing.T) {
	m, diags := parseSource(t, "declare x = 2 ** 3 ** 2")
	require.False(t, diags.HasErrors())

	outer := m.TopLevel[0].(*VarDeclStmt).Init.(*BinaryExpr)
	assert.Equal(t, "**", outer.Op)
	_, leftIsLit := outer.L.(*IntLit)
	assert.True(t, leftIsLit)
	inner := outer.R.(*BinaryExpr)
	assert.Equal(t, "**", inner.Op)
}

func TestParseComparisonBindsLooserThanAdditive(t *testing.T) {
	m, diags := parseSource(t, "declare x = 1 + 2 < 4")
	require.False(t, diags.HasErrors())

	cmp := m.TopLevel[0].(*VarDeclStmt).Init.(*BinaryExpr)
	assert.Equal(t, "<", cmp.Op)
	assert.Equal(t, "+", cmp.L.(*BinaryExpr).Op)
}

func TestParseForRange(t *testing.T) {
	m, diags := parseSource(t, `
for i in 0..10 step 2 do
	println(i)
end
`)
	require.False(t, diags.HasErrors())

	loop := m.TopLevel[0].(*ForRangeStmt)
	assert.Equal(t, "i", loop.Var)
	assert.False(t, loop.Parallel)
	assert.NotNil(t, loop.Step)
	require.Len(t, loop.Body.Stmts, 1)
}

func TestParseParallelForRange(t *testing.T) {
	m, diags := parseSource(t, `
parallel for i in 0..10 do
	work(i)
end
`)
	require.False(t, diags.HasErrors())
	assert.True(t, m.TopLevel[0].(*ForRangeStmt).Parallel)
}

func TestParseIfElifElse(t *testing.T) {
	m, diags := parseSource(t, `
if a == 1 do
	println(1)
elif a == 2 do
	println(2)
else
	println(3)
end
`)
	require.False(t, diags.HasErrors())

	stmt := m.TopLevel[0].(*IfStmt)
	require.Len(t, stmt.Elifs, 1)
	require.NotNil(t, stmt.Else)
}

func TestParseClass(t *testing.T) {
	m, diags := parseSource(t, `
class Shape do
	name: str
	virtual area() -> f64 do
		return 0.0
	end
end

class Circle extends Shape do
	private radius: f64
	constructor(r: f64): Shape() do
		self.radius = r
	end
	override area() -> f64 do
		return 3.14 * radius * radius
	end
end
`)
	require.False(t, diags.HasErrors())
	require.Len(t, m.Classes, 2)

	shape := m.Classes[0]
	assert.Equal(t, "Shape", shape.Name)
	require.Len(t, shape.Methods, 1)
	assert.True(t, shape.Methods[0].Virtual)

	circle := m.Classes[1]
	assert.Equal(t, "Shape", circle.BaseName)
	require.Len(t, circle.Fields, 1)
	assert.Equal(t, AccessPrivate, circle.Fields[0].Access)
	require.NotNil(t, circle.Constructor)
	assert.True(t, circle.Methods[0].Override)
}

func TestParseDuplicateClassMember(t *testing.T) {
	_, diags := parseSource(t, `
class Point do
	x: i64
	x: f64
end
`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, "NameError", diags.Items()[0].Kind)
}

func TestParseFlagDecl(t *testing.T) {
	m, diags := parseSource(t, `
flag beta() do
end
`)
	require.False(t, diags.HasErrors())
	require.Len(t, m.Flags, 1)
	assert.Equal(t, "beta", m.Flags[0].Name)
}

func TestParseSpawnAwait(t *testing.T) {
	m, diags := parseSource(t, `
spawn t = worker(1)
await t
spawn fire()
`)
	require.False(t, diags.HasErrors())
	require.Len(t, m.TopLevel, 3)

	sp := m.TopLevel[0].(*SpawnStmt)
	assert.Equal(t, "t", sp.Target)
	assert.Equal(t, "worker", sp.Call.CalleeName)
	_, ok := m.TopLevel[1].(*AwaitStmt)
	assert.True(t, ok)
	assert.Equal(t, "", m.TopLevel[2].(*SpawnStmt).Target)
}

func TestParseMarkers(t *testing.T) {
	m, diags := parseSource(t, `
.format()
.stateSpeed()
`)
	require.False(t, diags.HasErrors())
	assert.Equal(t, "format", m.TopLevel[0].(*MarkerStmt).Name)
	assert.Equal(t, "stateSpeed", m.TopLevel[1].(*MarkerStmt).Name)
}

func TestParseCompoundAssignments(t *testing.T) {
	m, diags := parseSource(t, `
declare x = 1
x += 2
x **= 3
`)
	require.False(t, diags.HasErrors())
	assert.Equal(t, "+=", m.TopLevel[1].(*AssignStmt).Op)
	assert.Equal(t, "**=", m.TopLevel[2].(*AssignStmt).Op)
}

func TestParseRecoversAfterBadStatement(t *testing.T) {
	_, diags := parseSource(t, `
declare = 1
declare ) = 2
`)
	// Both bad statements must be reported in a single run.
	count := 0
	for _, it := range diags.Items() {
		if it.Severity == SevError {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 2)
}

func TestMergeModulesConcatenatesInOrder(t *testing.T) {
	diags := NewDiagnostics(false)
	var frags []*Module
	for i, src := range []string{"declare a = 1", "declare b = 2"} {
		toks := NewLexer(FileID(i), []byte(src), diags).Tokenize()
		frags = append(frags, NewParser(FileID(i), toks, diags).ParseFragment())
	}
	require.False(t, diags.HasErrors())

	m := MergeModules([]string{"a.lsc", "b.lsc"}, frags)
	require.Len(t, m.TopLevel, 2)
	assert.Equal(t, "a", m.TopLevel[0].(*VarDeclStmt).Name)
	assert.Equal(t, "b", m.TopLevel[1].(*VarDeclStmt).Name)
}
