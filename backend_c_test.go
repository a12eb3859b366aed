package lsc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genCSource(t *testing.T, src string) string {
	t.Helper()
	m, diags := analyzeSource(t, src)
	require.False(t, diags.HasErrors())
	NewOptimizer(NewConfig()).Run(m)
	entry, err := ResolveEntry(m)
	require.NoError(t, err)
	out, err := GenC(m, GenCOptions{Entry: entry})
	require.NoError(t, err)
	return out
}

func TestGenCEmbedsRuntime(t *testing.T) {
	out := genCSource(t, `println("hello")`)
	assert.Contains(t, out, "BEGIN embedded runtime: runtime.c")
	assert.Contains(t, out, "lsc_i64;")
	assert.Contains(t, out, "static void lsc_println_i64")
	assert.Contains(t, out, "int main(int argc, char **argv)")
}

func TestGenCPrintDispatch(t *testing.T) {
	out := genCSource(t, `
println("hello")
println(42)
println(1.5)
println(true)
print(7)
`)
	assert.Contains(t, out, `lsc_println_str("hello")`)
	assert.Contains(t, out, "lsc_println_i64(42LL)")
	assert.Contains(t, out, "lsc_println_f64(1.5)")
	assert.Contains(t, out, "lsc_println_bool(true)")
	assert.Contains(t, out, "lsc_print_i64(7LL)")
}

func TestGenCTopLevelEntry(t *testing.T) {
	out := genCSource(t, `
declare s = 0
s += 5
println(s)
`)
	assert.Contains(t, out, "lsc_i64 s = 0LL;")
	assert.Contains(t, out, "s += 5LL;")
	assert.Contains(t, out, "return 0;")
}

func TestGenCMainEntry(t *testing.T) {
	out := genCSource(t, `
main() -> i64 do
	return 0
end
`)
	assert.Contains(t, out, "static lsc_i64 ls_main(void)")
	assert.Contains(t, out, "return (int)ls_main();")
}

func TestGenCHostPrototypes(t *testing.T) {
	out := genCSource(t, `
declare h = canvas_new(10, 20)
canvas_draw(h, 1.5)
`)
	assert.Contains(t, out, "extern lsc_handle canvas_new(lsc_i64, lsc_i64);")
	assert.Contains(t, out, "extern lsc_handle canvas_draw(lsc_handle, lsc_f64);")
}

func TestGenCOwnedReleaseAtScopeExit(t *testing.T) {
	out := genCSource(t, `
work() do
	declare owned a = canvas_new(1)
	declare owned b = physics_new(2)
	use(a, b)
end
work()
`)
	assert.Contains(t, out, "extern void canvas_free(lsc_handle);")
	assert.Contains(t, out, "extern void physics_free(lsc_handle);")
	// Reverse declaration order at scope exit.
	bodyStart := strings.Index(out, "static void ls_work(void)")
	require.GreaterOrEqual(t, bodyStart, 0)
	body := out[bodyStart:]
	physIdx := strings.Index(body, "physics_free(b);")
	canvIdx := strings.Index(body, "canvas_free(a);")
	require.GreaterOrEqual(t, physIdx, 0)
	require.GreaterOrEqual(t, canvIdx, 0)
	assert.Less(t, physIdx, canvIdx)
}

func TestGenCOwnedReleaseBeforeReturn(t *testing.T) {
	out := genCSource(t, `
work() -> i64 do
	declare owned a = canvas_new(1)
	if use(a) == 1 do
		return 1
	end
	return 2
end
work()
`)
	// Both return paths must release the handle first.
	assert.Equal(t, 2, strings.Count(out, "canvas_free(a);"))
}

func TestGenCParallelForLowering(t *testing.T) {
	out := genCSource(t, `
main() -> i64 do
	parallel for i in 0..100 do
		work(i)
	end
	return 0
end
`)
	assert.Contains(t, out, "#ifdef _OPENMP")
	assert.Contains(t, out, "#pragma omp parallel for simd")
	assert.Contains(t, out, "#endif")
}

func TestGenCParallelForLoweringWithStep(t *testing.T) {
	out := genCSource(t, `
main() -> i64 do
	parallel for i in 0..100 step 2 do
		work(i)
	end
	return 0
end
`)
	assert.Contains(t, out, "#pragma omp parallel for simd")
	// Canonical loop form for OpenMP: a plain relational trip-count
	// test, never the serial form's ternary guard.
	assert.Contains(t, out, "_trip")
	assert.Contains(t, out, "_i++) {")
	assert.NotContains(t, out, "> 0 ?")
}

func TestGenCVectorizationHint(t *testing.T) {
	out := genCSource(t, `
main() -> i64 do
	declare s = 0
	for i in 0..1000 do
		s = s + i
	end
	return s
end
`)
	assert.Contains(t, out, "#pragma clang loop vectorize(enable) interleave(enable)")
}

func TestGenCNoVectorizationHintWithCalls(t *testing.T) {
	out := genCSource(t, `
main() -> i64 do
	for i in 0..1000 do
		work(i)
	end
	return 0
end
`)
	assert.NotContains(t, out, "#pragma clang loop")
}

func TestGenCZeroStepGuard(t *testing.T) {
	out := genCSource(t, `
main() -> i64 do
	declare n = bound()
	for i in 0..10 step n do
		work(i)
	end
	return 0
end
`)
	// Dynamic step: the guard admits no iteration when the step is zero.
	assert.Contains(t, out, "> 0 ?")
	assert.Contains(t, out, "< 0 &&")
}

func TestGenCMarkers(t *testing.T) {
	out := genCSource(t, `
main() -> i64 do
	.format()
	.stateSpeed()
	.freeConsole()
	return 0
end
`)
	assert.Contains(t, out, "lsc_console_format();")
	assert.Contains(t, out, "lsc_free_console();")
	assert.Contains(t, out, "lsc_i64 lsc_fn_entry_us = lsc_now_us();")
	assert.Contains(t, out, `speed_us=`)
}

func TestGenCPowerOperators(t *testing.T) {
	out := genCSource(t, `
f(a: i64, b: f64) -> i64 do
	declare x = a ** a
	declare y = b ^ b
	declare z = a
	z **= a
	println(y)
	println(z)
	return x
end
f(2, 2.0)
`)
	assert.Contains(t, out, "lsc_pow_i64(a, a)")
	assert.Contains(t, out, "lsc_pow_f64(b, b)")
	assert.Contains(t, out, "z = lsc_pow_i64(z, a);")
}

func TestGenCStringOperations(t *testing.T) {
	out := genCSource(t, `
f(a: str, b: str) -> i64 do
	declare c = a + b
	println(c)
	if a == b do
		return 1
	end
	return 0
end
f("x", "y")
`)
	assert.Contains(t, out, "lsc_str_concat(a, b)")
	assert.Contains(t, out, "lsc_str_eq(a, b)")
}

func TestGenCGenericHelpers(t *testing.T) {
	out := genCSource(t, `
f(a: i64, b: f64) do
	println(max(a, a))
	println(min(b, b))
	println(clamp(a, 0, 9))
end
f(1, 2.0)
`)
	assert.Contains(t, out, "max_i64(a, a)")
	assert.Contains(t, out, "min_f64(b, b)")
	assert.Contains(t, out, "clamp_i64(a, 0LL, 9LL)")
}

func TestGenCClassesDirectDispatch(t *testing.T) {
	out := genCSource(t, `
class Point do
	x: i64
	constructor(x: i64) do
		self.x = x
	end
	get() -> i64 do
		return self.x
	end
end
declare p = Point(4)
println(p.get())
`)
	assert.Contains(t, out, "typedef struct ls_Point {")
	assert.Contains(t, out, "lsc_i64 x;")
	assert.Contains(t, out, "ls_Point_make(4LL)")
	assert.Contains(t, out, "ls_Point_get(p)")
	assert.NotContains(t, out, "vtable")
}

func TestGenCClassesVirtualDispatch(t *testing.T) {
	out := genCSource(t, `
class Shape do
	kind: i64
	virtual area() -> i64 do
		return 0
	end
end
class Square extends Shape do
	side: i64
	constructor(s: i64) do
		self.side = s
	end
	override area() -> i64 do
		return self.side * self.side
	end
end
declare s = Square(3)
println(s.area())
`)
	assert.Contains(t, out, "typedef struct ls_Shape_vtable {")
	assert.Contains(t, out, "const ls_Shape_vtable *vt;")
	assert.Contains(t, out, "static const ls_Shape_vtable ls_Square_vt")
	assert.Contains(t, out, "s->vt->area(s)")
}

func TestGenCSpawnAwait(t *testing.T) {
	out := genCSource(t, `
worker(n: i64) do
	println(n)
end
spawn t = worker(5)
await t
`)
	assert.Contains(t, out, "typedef struct lsc_spawn_args_0 {")
	assert.Contains(t, out, "static void *lsc_spawn_thunk_0(void *p)")
	assert.Contains(t, out, "ls_worker(a->a0);")
	assert.Contains(t, out, "lsc_handle t = lsc_spawn(lsc_spawn_thunk_0,")
	assert.Contains(t, out, "lsc_await(t);")
}

func TestGenCFlagTable(t *testing.T) {
	out := genCSource(t, `
flag beta() do
end
flag level() do
end
println(cli_value("level"))
`)
	assert.Contains(t, out, "static LscFlag g_flags[] = {")
	assert.Contains(t, out, `{ "beta", 0, NULL, 0, {0} },`)
	assert.Contains(t, out, `{ "level", 0, NULL, 0, {0} },`)
	assert.Contains(t, out, "lsc_cli_init(argc, argv, g_flags,")
	assert.Contains(t, out, `cli_value("level")`)
}

func TestGenCReservedWordsSanitized(t *testing.T) {
	out := genCSource(t, `
declare int = 3
println(int)
`)
	assert.Contains(t, out, "lsc_i64 int_ = 3LL;")
}
