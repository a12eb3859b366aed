package lsc

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func checkSource(t *testing.T, src string, opts DriverOptions) (int, string) {
	t.Helper()
	path := writeSource(t, "prog.lsc", src)
	opts.Check = true
	d := NewDriver(opts)
	var buf bytes.Buffer
	d.SetStderr(&buf)
	return d.Compile([]string{path}), buf.String()
}

func TestDriverCheckSucceeds(t *testing.T) {
	code, stderr := checkSource(t, `
declare s = 0
for i in 0..5 do
	s += i
end
println(s)
`, DriverOptions{})
	assert.Equal(t, 0, code)
	assert.Empty(t, stderr)
}

func TestDriverCheckIsIdempotent(t *testing.T) {
	src := `
declare x = 1 + 2
if x > 2 do
	println("big")
end
`
	path := writeSource(t, "prog.lsc", src)
	run := func() (int, string) {
		d := NewDriver(DriverOptions{Check: true})
		var buf bytes.Buffer
		d.SetStderr(&buf)
		return d.Compile([]string{path}), buf.String()
	}
	code1, out1 := run()
	code2, out2 := run()
	assert.Equal(t, code1, code2)
	assert.Equal(t, out1, out2)
}

func TestDriverRejectsBadExtension(t *testing.T) {
	path := writeSource(t, "prog.txt", "println(1)")
	d := NewDriver(DriverOptions{Check: true})
	var buf bytes.Buffer
	d.SetStderr(&buf)
	code := d.Compile([]string{path})
	assert.Equal(t, 2, code)
	assert.Contains(t, buf.String(), "CliError")
}

func TestDriverAcceptsBothExtensions(t *testing.T) {
	for _, name := range []string{"a.lsc", "a.ls"} {
		path := writeSource(t, name, "println(1)")
		d := NewDriver(DriverOptions{Check: true})
		var buf bytes.Buffer
		d.SetStderr(&buf)
		assert.Equal(t, 0, d.Compile([]string{path}), name)
	}
}

func TestDriverNoInputs(t *testing.T) {
	d := NewDriver(DriverOptions{Check: true})
	var buf bytes.Buffer
	d.SetStderr(&buf)
	assert.Equal(t, 2, d.Compile(nil))
}

func TestDriverMissingFile(t *testing.T) {
	d := NewDriver(DriverOptions{Check: true})
	var buf bytes.Buffer
	d.SetStderr(&buf)
	code := d.Compile([]string{filepath.Join(t.TempDir(), "absent.lsc")})
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "IoError")
}

func TestDriverRejectsBadCCBeforeAnySubprocess(t *testing.T) {
	// Even in --check mode, where no toolchain ever runs, a hostile
	// --cc value is a fatal CLI error.
	code, stderr := checkSource(t, "println(1)", DriverOptions{CC: "cc;rm -rf /"})
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "CliError")
}

func TestDriverRejectsUnknownBackend(t *testing.T) {
	code, stderr := checkSource(t, "println(1)", DriverOptions{Backend: "llvm"})
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "CliError")
}

func TestDriverLexErrorExitCode(t *testing.T) {
	code, stderr := checkSource(t, `declare s = "oops`, DriverOptions{})
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "LexicalError")
}

func TestDriverSyntaxErrorExitCode(t *testing.T) {
	code, stderr := checkSource(t, "if x do", DriverOptions{})
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "SyntaxError")
}

func TestDriverConstDivByZero(t *testing.T) {
	code, stderr := checkSource(t, "declare x = 10 / 0", DriverOptions{})
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "ConstDivByZeroError")
}

func TestDriverParallelLoopConstraint(t *testing.T) {
	code, stderr := checkSource(t, `
parallel for i in 0..10 do
	break
end
`, DriverOptions{})
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "ParallelLoopConstraintError")
}

func TestDriverDiagnosticFormat(t *testing.T) {
	_, stderr := checkSource(t, "declare x = 10 / 0", DriverOptions{})
	// stable kind tag, then location, then message
	assert.Regexp(t, `^ConstDivByZeroError: \S+prog\.lsc:1:`, stderr)
}

func TestDriverMultiFileMerge(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.lsc")
	app := filepath.Join(dir, "app.lsc")
	require.NoError(t, os.WriteFile(lib, []byte("helper() -> i64 do\n\treturn 1\nend\n"), 0644))
	require.NoError(t, os.WriteFile(app, []byte("println(helper())\n"), 0644))

	d := NewDriver(DriverOptions{Check: true})
	var buf bytes.Buffer
	d.SetStderr(&buf)
	assert.Equal(t, 0, d.Compile([]string{lib, app}))
	assert.Empty(t, buf.String())
}

func TestDriverWarningsDoNotBlock(t *testing.T) {
	path := writeSource(t, "prog.lsc", `
flag beta() do
end
println(cli_has("beta"))
`)
	d := NewDriver(DriverOptions{Check: true, ExtraArgs: []string{"--unknown-flag"}})
	var buf bytes.Buffer
	d.SetStderr(&buf)
	code := d.Compile([]string{path})
	assert.Equal(t, 0, code)
	assert.Contains(t, buf.String(), "warning")
}

func TestDriverUnbalancedBracketsFatal(t *testing.T) {
	path := writeSource(t, "prog.lsc", `
flag beta() do
end
println(1)
`)
	d := NewDriver(DriverOptions{Check: true, ExtraArgs: []string{"--beta", "["}})
	var buf bytes.Buffer
	d.SetStderr(&buf)
	code := d.Compile([]string{path})
	assert.Equal(t, 2, code)
	assert.Contains(t, buf.String(), "CliError")
}

func TestDriverEntryResolutionFailure(t *testing.T) {
	code, stderr := checkSource(t, `
a() do end
b() do end
`, DriverOptions{})
	// --check never needs an entry point, so this passes...
	assert.Equal(t, 0, code)
	assert.Empty(t, stderr)

	// ...but a build does. Exercise the resolution directly.
	m, diags := parseSource(t, "a() do end\nb() do end")
	require.False(t, diags.HasErrors())
	NewAnalyzer(diags, NewConfig()).Analyze(m)
	_, err := ResolveEntry(m)
	assert.Error(t, err)
}
