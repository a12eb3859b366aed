package lsc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func optimizeSource(t *testing.T, src string) *Module {
	t.Helper()
	m, diags := analyzeSource(t, src)
	require.False(t, diags.HasErrors())
	NewOptimizer(NewConfig()).Run(m)
	return m
}

func TestOptimizerConstantFolding(t *testing.T) {
	m := optimizeSource(t, `
declare x = 2 + 3 * 4
println(x)
`)
	lit, ok := m.TopLevel[0].(*VarDeclStmt).Init.(*IntLit)
	require.True(t, ok)
	assert.Equal(t, int64(14), lit.Value)
}

func TestOptimizerFoldsStringsAndBools(t *testing.T) {
	m := optimizeSource(t, `
declare s = "a" + "b"
declare b = true and false
declare c = 1 < 2
println(s)
println(b)
println(c)
`)
	assert.Equal(t, "ab", m.TopLevel[0].(*VarDeclStmt).Init.(*StringLit).Value)
	assert.False(t, m.TopLevel[1].(*VarDeclStmt).Init.(*BoolLit).Value)
	assert.True(t, m.TopLevel[2].(*VarDeclStmt).Init.(*BoolLit).Value)
}

func TestOptimizerPowerFolding(t *testing.T) {
	// ** is power: 1**10 folds to 1, 2**10 to 1024.
	m := optimizeSource(t, `
declare a = 1 ** 10
declare b = 2 ** 10
declare c = 2 ^ 3
println(a + b + c)
`)
	assert.Equal(t, int64(1), m.TopLevel[0].(*VarDeclStmt).Init.(*IntLit).Value)
	assert.Equal(t, int64(1024), m.TopLevel[1].(*VarDeclStmt).Init.(*IntLit).Value)
	assert.Equal(t, int64(8), m.TopLevel[2].(*VarDeclStmt).Init.(*IntLit).Value)
}

func TestOptimizerFoldingWrapsAtInt64(t *testing.T) {
	// 64-bit two's-complement semantics (no overflow trap).
	m := optimizeSource(t, `
declare x = 9223372036854775807 + 1
println(x)
`)
	lit := m.TopLevel[0].(*VarDeclStmt).Init.(*IntLit)
	assert.Equal(t, int64(-9223372036854775808), lit.Value)
}

func TestOptimizerDropsDeadLocals(t *testing.T) {
	m := optimizeSource(t, `
declare unused = 1 + 2
declare kept = host_new(3)
println(7)
`)
	// The pure local goes; the initializer with a call stays.
	require.Len(t, m.TopLevel, 2)
	assert.Equal(t, "kept", m.TopLevel[0].(*VarDeclStmt).Name)
}

func TestOptimizerIfTrueCollapse(t *testing.T) {
	m := optimizeSource(t, `
if true do
	println(1)
end
`)
	require.Len(t, m.TopLevel, 1)
	_, ok := m.TopLevel[0].(*ExprStmt)
	assert.True(t, ok)
}

func TestOptimizerIfFalsePruned(t *testing.T) {
	m := optimizeSource(t, `
if false do
	println(1)
else
	println(2)
end
`)
	require.Len(t, m.TopLevel, 1)
	call := m.TopLevel[0].(*ExprStmt).X.(*CallExpr)
	assert.Equal(t, int64(2), call.Args[0].(*IntLit).Value)
}

func TestOptimizerElifChainPruned(t *testing.T) {
	m := optimizeSource(t, `
if false do
	println(1)
elif false do
	println(2)
elif true do
	println(3)
end
`)
	require.Len(t, m.TopLevel, 1)
	call := m.TopLevel[0].(*ExprStmt).X.(*CallExpr)
	assert.Equal(t, int64(3), call.Args[0].(*IntLit).Value)
}

func TestOptimizerWhileFalseRemoved(t *testing.T) {
	m := optimizeSource(t, `
while false do
	println(1)
end
println(2)
`)
	require.Len(t, m.TopLevel, 1)
}

func TestOptimizerDeadCodeAfterReturn(t *testing.T) {
	m := optimizeSource(t, `
f() -> i64 do
	return 1
	println(2)
end
`)
	require.Len(t, m.Functions[0].Body.Stmts, 1)
	_, ok := m.Functions[0].Body.Stmts[0].(*ReturnStmt)
	assert.True(t, ok)
}

func TestOptimizerSmallTripUnrolling(t *testing.T) {
	m := optimizeSource(t, `
for i in 0..3 do
	println(i)
end
`)
	// Three straight-line statements with the loop variable bound.
	require.Len(t, m.TopLevel, 3)
	for want := int64(0); want < 3; want++ {
		call := m.TopLevel[want].(*ExprStmt).X.(*CallExpr)
		assert.Equal(t, want, call.Args[0].(*IntLit).Value)
	}
}

func TestOptimizerLargeTripNotUnrolled(t *testing.T) {
	m := optimizeSource(t, `
for i in 0..1000 do
	println(i)
end
`)
	require.Len(t, m.TopLevel, 1)
	_, ok := m.TopLevel[0].(*ForRangeStmt)
	assert.True(t, ok)
}

func TestOptimizerZeroStepLoopRemoved(t *testing.T) {
	m := optimizeSource(t, `
for i in 0..10 step 0 do
	println(i)
end
println(99)
`)
	// Safe termination with zero iterations, not an error.
	require.Len(t, m.TopLevel, 1)
	call := m.TopLevel[0].(*ExprStmt).X.(*CallExpr)
	assert.Equal(t, int64(99), call.Args[0].(*IntLit).Value)
}

func TestOptimizerParallelForNeverUnrolled(t *testing.T) {
	m := optimizeSource(t, `
parallel for i in 0..2 do
	work(i)
end
`)
	require.Len(t, m.TopLevel, 1)
	loop, ok := m.TopLevel[0].(*ForRangeStmt)
	require.True(t, ok)
	assert.True(t, loop.Parallel)
}

func TestOptimizerInlining(t *testing.T) {
	m := optimizeSource(t, `
double(x: i64) -> i64 do
	return x * 2
end
main() -> i64 do
	return double(21)
end
`)
	var mainFn *FuncDecl
	for _, fn := range m.Functions {
		if fn.Name == "main" {
			mainFn = fn
		}
	}
	require.NotNil(t, mainFn)
	ret := mainFn.Body.Stmts[0].(*ReturnStmt)
	lit, ok := ret.Value.(*IntLit)
	require.True(t, ok, "call should be inlined and folded")
	assert.Equal(t, int64(42), lit.Value)
}

func TestOptimizerNoInliningOfThrowingCallee(t *testing.T) {
	m := optimizeSource(t, `
risky() -> i64 throws Bad do
	return 1
end
main() -> i64 throws Bad do
	return risky()
end
`)
	var mainFn *FuncDecl
	for _, fn := range m.Functions {
		if fn.Name == "main" {
			mainFn = fn
		}
	}
	ret := mainFn.Body.Stmts[0].(*ReturnStmt)
	_, stillCall := ret.Value.(*CallExpr)
	assert.True(t, stillCall)
}

func TestOptimizerIdempotence(t *testing.T) {
	src := `
declare total = 0
for i in 0..4 do
	total += i * 2
end
if total > 100 do
	println("big")
else
	println(total)
end
f(a: i64) -> i64 do
	return a + 1 * 3
end
`
	m, diags := analyzeSource(t, src)
	require.False(t, diags.HasErrors())

	cfg := NewConfig()
	NewOptimizer(cfg).Run(m)
	first := PrintModule(m, false)
	passes := NewOptimizer(cfg).Run(m)
	second := PrintModule(m, false)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, passes, "second run must reach a fixed point in one pass")
}

func TestOptimizerTerminatesAtPassCap(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("compiler.passes", 2)
	m, diags := analyzeSource(t, `
declare a = 1 + 2
declare b = a
`)
	require.False(t, diags.HasErrors())
	ran := NewOptimizer(cfg).Run(m)
	assert.LessOrEqual(t, ran, 2)
}

func TestConstFoldDivByZeroNotFolded(t *testing.T) {
	// The analyzer rejects constant zero divisors; the folder itself
	// must simply refuse, never panic.
	_, ok := foldBinary("/", constVal{tag: TyI64, i: 1}, constVal{tag: TyI64, i: 0})
	assert.False(t, ok)
	_, ok = foldBinary("%", constVal{tag: TyI64, i: 1}, constVal{tag: TyI64, i: 0})
	assert.False(t, ok)
}

func TestIntPow(t *testing.T) {
	tests := []struct {
		base, exp, want int64
	}{
		{1, 10, 1},
		{2, 10, 1024},
		{2, 0, 1},
		{0, 0, 1},
		{-2, 3, -8},
		{2, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, intPow(tt.base, tt.exp))
	}
}
