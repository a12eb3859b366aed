package lsc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeSource(t *testing.T, src string) (*Module, *Diagnostics) {
	t.Helper()
	m, diags := parseSource(t, src)
	require.False(t, diags.HasErrors(), "parse must succeed before analysis")
	NewAnalyzer(diags, NewConfig()).Analyze(m)
	return m, diags
}

func errorKinds(diags *Diagnostics) []string {
	var out []string
	for _, it := range diags.Items() {
		if it.Severity == SevError {
			out = append(out, it.Kind)
		}
	}
	return out
}

func TestAnalyzeInfersDeclType(t *testing.T) {
	m, diags := analyzeSource(t, `
declare a = 1
declare b = 1.5
declare c = "s"
declare d = true
`)
	require.False(t, diags.HasErrors())
	assert.Equal(t, I64, m.TopLevel[0].(*VarDeclStmt).ResolvedType)
	assert.Equal(t, F64, m.TopLevel[1].(*VarDeclStmt).ResolvedType)
	assert.Equal(t, Str, m.TopLevel[2].(*VarDeclStmt).ResolvedType)
	assert.Equal(t, Bool, m.TopLevel[3].(*VarDeclStmt).ResolvedType)
}

func TestAnalyzeAnnotationMismatch(t *testing.T) {
	_, diags := analyzeSource(t, `declare x: i64 = 1.5`)
	assert.Contains(t, errorKinds(diags), "TypeError")
}

func TestAnalyzeNoImplicitWidening(t *testing.T) {
	_, diags := analyzeSource(t, `
declare a: i32 = to_i64(1)
`)
	// to_i64 yields i64; assigning it to an i32 annotation must fail.
	assert.Contains(t, errorKinds(diags), "TypeError")
}

func TestAnalyzeExplicitWidening(t *testing.T) {
	m, diags := analyzeSource(t, `
declare a: i32
declare b = to_i64(a)
`)
	require.False(t, diags.HasErrors())
	assert.Equal(t, I64, m.TopLevel[1].(*VarDeclStmt).ResolvedType)
}

func TestAnalyzeUndefinedName(t *testing.T) {
	_, diags := analyzeSource(t, `declare x = nope + 1`)
	assert.Contains(t, errorKinds(diags), "NameError")
}

func TestAnalyzeConstAssignment(t *testing.T) {
	_, diags := analyzeSource(t, `
declare const x = 1
x = 2
`)
	assert.Contains(t, errorKinds(diags), "TypeError")
}

func TestAnalyzeCallResolution(t *testing.T) {
	m, diags := analyzeSource(t, `
add(a: i64, b: i64) -> i64 do
	return a + b
end
declare s = add(1, 2)
`)
	require.False(t, diags.HasErrors())

	call := m.TopLevel[0].(*VarDeclStmt).Init.(*CallExpr)
	require.NotNil(t, call.Callee)
	assert.Equal(t, "add", call.Callee.Name)
	assert.Equal(t, I64, call.Type())
}

func TestAnalyzeCallArityAndTypes(t *testing.T) {
	_, diags := analyzeSource(t, `
add(a: i64, b: i64) -> i64 do
	return a + b
end
declare s = add(1)
declare v = add(1, "x")
`)
	kinds := errorKinds(diags)
	assert.GreaterOrEqual(t, len(kinds), 2)
	for _, k := range kinds {
		assert.Equal(t, "TypeError", k)
	}
}

func TestAnalyzeForwardReference(t *testing.T) {
	_, diags := analyzeSource(t, `
first() -> i64 do
	return second()
end
second() -> i64 do
	return 1
end
`)
	assert.False(t, diags.HasErrors())
}

func TestAnalyzeGenericHelperSpecialization(t *testing.T) {
	m, diags := analyzeSource(t, `
declare a = max(1, 2)
declare b = min(1.5, 2.5)
declare c = abs(0 - 3)
declare d = clamp(5, 0, 10)
`)
	require.False(t, diags.HasErrors())

	names := []string{
		m.TopLevel[0].(*VarDeclStmt).Init.(*CallExpr).SpecializedName,
		m.TopLevel[1].(*VarDeclStmt).Init.(*CallExpr).SpecializedName,
		m.TopLevel[2].(*VarDeclStmt).Init.(*CallExpr).SpecializedName,
		m.TopLevel[3].(*VarDeclStmt).Init.(*CallExpr).SpecializedName,
	}
	assert.Equal(t, []string{"max_i64", "min_f64", "abs_i64", "clamp_i64"}, names)
	assert.Equal(t, I64, m.TopLevel[0].(*VarDeclStmt).ResolvedType)
	assert.Equal(t, F64, m.TopLevel[1].(*VarDeclStmt).ResolvedType)
}

func TestAnalyzeGenericHelperMixedTypes(t *testing.T) {
	_, diags := analyzeSource(t, `declare x = max(1, 1.5)`)
	assert.Contains(t, errorKinds(diags), "TypeError")
}

func TestAnalyzeThrowsContract(t *testing.T) {
	_, diags := analyzeSource(t, `
risky() -> i64 throws NetworkDown do
	return 1
end
unsafe() -> i64 do
	return risky()
end
`)
	assert.Contains(t, errorKinds(diags), "ThrowsContractError")
}

func TestAnalyzeThrowsContractSubset(t *testing.T) {
	_, diags := analyzeSource(t, `
risky() -> i64 throws NetworkDown do
	return 1
end
careful() -> i64 throws NetworkDown, Timeout do
	return risky()
end
`)
	assert.False(t, diags.HasErrors())
}

func TestAnalyzeParallelForBreak(t *testing.T) {
	_, diags := analyzeSource(t, `
parallel for i in 0..10 do
	break
end
`)
	assert.Contains(t, errorKinds(diags), "ParallelLoopConstraintError")
}

func TestAnalyzeParallelForContinue(t *testing.T) {
	_, diags := analyzeSource(t, `
parallel for i in 0..10 do
	continue
end
`)
	assert.Contains(t, errorKinds(diags), "ParallelLoopConstraintError")
}

func TestAnalyzeParallelForOuterAssignment(t *testing.T) {
	_, diags := analyzeSource(t, `
declare s = 0
parallel for i in 0..10 do
	s = s + i
end
`)
	assert.Contains(t, errorKinds(diags), "ParallelLoopConstraintError")
}

func TestAnalyzeParallelForLocalAssignmentAllowed(t *testing.T) {
	_, diags := analyzeSource(t, `
parallel for i in 0..10 do
	declare local = i * 2
	local = local + 1
end
`)
	assert.False(t, diags.HasErrors())
}

func TestAnalyzeSerialForBreakAllowed(t *testing.T) {
	_, diags := analyzeSource(t, `
for i in 0..10 do
	break
end
`)
	assert.False(t, diags.HasErrors())
}

func TestAnalyzeConstDivByZero(t *testing.T) {
	for _, src := range []string{
		"declare x = 10 / 0",
		"declare x = 10 % 0",
		"declare x = 1 + 4 / (2 - 2)",
	} {
		_, diags := analyzeSource(t, src)
		assert.Contains(t, errorKinds(diags), "ConstDivByZeroError", src)
	}
}

func TestAnalyzeNonConstDivisorAllowed(t *testing.T) {
	_, diags := analyzeSource(t, `
declare d = 2
declare x = 10 / d
`)
	assert.False(t, diags.HasErrors())
}

func TestAnalyzeOwnedReleaseOrder(t *testing.T) {
	m, diags := analyzeSource(t, `
work() do
	declare owned a = canvas_new(1)
	declare owned b = physics_new(2)
	draw(a, b)
end
`)
	require.False(t, diags.HasErrors())

	owned := m.Functions[0].Body.OwnedLocals
	require.Len(t, owned, 2)
	// Reverse declaration order for deterministic teardown.
	assert.Equal(t, "b", owned[0].Name)
	assert.Equal(t, "a", owned[1].Name)
	assert.Equal(t, "physics_free", owned[0].FreeFn)
	assert.Equal(t, "canvas_free", owned[1].FreeFn)
}

func TestAnalyzeOwnedMoveOnReturn(t *testing.T) {
	m, diags := analyzeSource(t, `
make() -> handle do
	declare owned h = canvas_new(1)
	return h
end
`)
	require.False(t, diags.HasErrors())
	// The returned handle moved out; no release is scheduled for it.
	assert.Empty(t, m.Functions[0].Body.OwnedLocals)
}

func TestAnalyzeOwnedUseAfterMove(t *testing.T) {
	_, diags := analyzeSource(t, `
work() do
	declare owned h = canvas_new(1)
	declare h2 = h
	draw(h)
end
`)
	assert.Contains(t, errorKinds(diags), "OwnedHandleEscapeError")
}

func TestAnalyzeClassFieldsAndCtor(t *testing.T) {
	m, diags := analyzeSource(t, `
class Point do
	x: i64
	y: i64
	constructor(x: i64, y: i64) do
		self.x = x
		self.y = y
	end
	sum() -> i64 do
		return self.x + self.y
	end
end
declare p = Point(1, 2)
declare s = p.sum()
`)
	require.False(t, diags.HasErrors())

	decl := m.TopLevel[0].(*VarDeclStmt)
	assert.Equal(t, TyClass, decl.ResolvedType.Tag)
	assert.Equal(t, I64, m.TopLevel[1].(*VarDeclStmt).ResolvedType)
}

func TestAnalyzeCtorArityMismatch(t *testing.T) {
	_, diags := analyzeSource(t, `
class Point do
	x: i64
	constructor(x: i64) do
		self.x = x
	end
end
declare p = Point(1, 2)
`)
	assert.Contains(t, errorKinds(diags), "TypeError")
}

func TestAnalyzeUnknownMethod(t *testing.T) {
	_, diags := analyzeSource(t, `
class Point do
	x: i64
end
declare p = Point()
declare v = p.nope()
`)
	assert.Contains(t, errorKinds(diags), "NameError")
}

func TestAnalyzeInheritedMethodLookup(t *testing.T) {
	_, diags := analyzeSource(t, `
class Base do
	ping() -> i64 do
		return 1
	end
end
class Derived extends Base do
	pong() -> i64 do
		return 2
	end
end
declare d = Derived()
declare a = d.ping()
declare b = d.pong()
`)
	assert.False(t, diags.HasErrors())
}

func TestAnalyzeHostCallIsOpaque(t *testing.T) {
	m, diags := analyzeSource(t, `declare h = http_get("http://example.com")`)
	require.False(t, diags.HasErrors())
	assert.Equal(t, Handle, m.TopLevel[0].(*VarDeclStmt).ResolvedType)
}

func TestAnalyzeCliHelpersNeedFlagDecl(t *testing.T) {
	_, diags := analyzeSource(t, `declare b = cli_has("beta")`)
	assert.Contains(t, errorKinds(diags), "NameError")

	_, diags = analyzeSource(t, `
flag beta() do
end
declare b = cli_has("beta")
`)
	assert.False(t, diags.HasErrors())
}

func TestAnalyzeComparisonTypeMismatch(t *testing.T) {
	_, diags := analyzeSource(t, `declare b = 1 < "x"`)
	assert.Contains(t, errorKinds(diags), "TypeError")
}

func TestAnalyzeDuplicateFunction(t *testing.T) {
	_, diags := analyzeSource(t, `
f() do end
f() do end
`)
	assert.Contains(t, errorKinds(diags), "NameError")
}

func TestResolveEntryOrder(t *testing.T) {
	// top-level statements win
	m, _ := analyzeSource(t, `
main() -> i64 do
	return 0
end
println(1)
`)
	e, err := ResolveEntry(m)
	require.NoError(t, err)
	assert.Equal(t, EntryTopLevel, e.Kind)

	// then zero-arg main
	m, _ = analyzeSource(t, `
main() -> i64 do
	return 0
end
helper() -> i64 do
	return 1
end
`)
	e, err = ResolveEntry(m)
	require.NoError(t, err)
	assert.Equal(t, EntryMain, e.Kind)
	assert.Equal(t, "main", e.Fn.Name)

	// then exactly one zero-arg function
	m, _ = analyzeSource(t, `
solo() -> i64 do
	return 0
end
withArgs(a: i64) do
end
`)
	e, err = ResolveEntry(m)
	require.NoError(t, err)
	assert.Equal(t, EntrySingleFunc, e.Kind)
	assert.Equal(t, "solo", e.Fn.Name)

	// otherwise an error
	m, _ = analyzeSource(t, `
a() do end
b() do end
`)
	_, err = ResolveEntry(m)
	assert.Error(t, err)
}
