package lsc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DriverOptions is the resolved CLI surface handed to one
// compilation.
type DriverOptions struct {
	Check bool
	Build bool
	Run   bool

	CC      string
	Backend string // "auto", "c", or "asm"
	Passes  int

	MaxSpeed    bool // -O4 / --max-speed
	PGOGenerate bool
	PGOUse      string
	BoltUse     string

	KeepC  bool
	Output string

	DumpAST    bool
	DumpTokens bool
	Verbose    bool
	Color      bool

	// ExtraArgs is everything the static flag parser did not recognize:
	// grouped-bracket runs and the module's own declared flags.
	ExtraArgs []string
}

// Driver binds the CLI to the pipeline and the external toolchain.
// One Driver performs one compilation; its state is never shared.
type Driver struct {
	opts   DriverOptions
	cfg    *Config
	diags  *Diagnostics
	stderr io.Writer
	temps  []string
}

func NewDriver(opts DriverOptions) *Driver {
	cfg := NewConfig()
	if opts.MaxSpeed {
		cfg.SetInt("compiler.passes", 16)
	}
	if opts.Passes > 0 {
		cfg.SetInt("compiler.passes", opts.Passes)
	}
	cfg.SetBool("compiler.verbose", opts.Verbose)
	return &Driver{
		opts:   opts,
		cfg:    cfg,
		diags:  NewDiagnostics(opts.Color),
		stderr: os.Stderr,
	}
}

// SetStderr redirects diagnostic output, used by tests.
func (d *Driver) SetStderr(w io.Writer) { d.stderr = w }

// Compile runs the pipeline for the given inputs and returns the
// process exit code.
func (d *Driver) Compile(paths []string) int {
	defer d.cleanup()

	if code, ok := d.validateCLI(paths); !ok {
		return code
	}
	d.diags.SetFiles(paths)

	sources, ok := d.readInputs(paths)
	if !ok {
		return d.fail("io")
	}

	tokens := d.lex(sources)
	if d.opts.DumpTokens {
		for _, toks := range tokens {
			fmt.Print(PrintTokens(toks))
		}
		return 0
	}
	if d.diags.HasErrors() {
		return d.fail("lex")
	}

	module := d.parse(paths, tokens)
	if d.diags.HasErrors() {
		return d.fail("parse")
	}

	if err := RegisterDynamicFlags(d.cfg, module.Flags, d.opts.ExtraArgs, d.diags); err != nil {
		fmt.Fprintln(d.stderr, err.Error())
		return 2
	}

	phaseStart := time.Now()
	analyzer := NewAnalyzer(d.diags, d.cfg)
	analyzer.Analyze(module)
	d.verbosef("sema: %v", time.Since(phaseStart))
	if d.diags.HasErrors() {
		return d.fail("sema")
	}

	phaseStart = time.Now()
	passes := NewOptimizer(d.cfg).Run(module)
	d.verbosef("optimizer: %d pass(es) in %v", passes, time.Since(phaseStart))

	if d.opts.DumpAST {
		fmt.Print(PrintModule(module, d.opts.Color))
		return 0
	}

	d.flushWarnings()
	if d.opts.Check {
		return 0
	}

	entry, err := ResolveEntry(module)
	if err != nil {
		d.diags.AddError(err.(CompileError))
		return d.fail("sema")
	}

	return d.emit(module, entry, paths)
}

func (d *Driver) validateCLI(paths []string) (int, bool) {
	if len(paths) == 0 {
		fmt.Fprintln(d.stderr, NewCliError("no input files").Error())
		return 2, false
	}
	for _, p := range paths {
		ext := filepath.Ext(p)
		if ext != ".lsc" && ext != ".ls" {
			fmt.Fprintln(d.stderr, NewCliError(fmt.Sprintf("input %q must end in.lsc or.ls", p)).Error())
			return 2, false
		}
	}
	switch d.opts.Backend {
	case "", "auto", "c", "asm":
	default:
		fmt.Fprintln(d.stderr, NewCliError(fmt.Sprintf("unknown backend %q", d.opts.Backend)).Error())
		return 2, false
	}
	// --cc is validated before any subprocess can exist, even in
	// --check mode where no toolchain runs.
	if err := ValidateCC(d.ccName()); err != nil {
		fmt.Fprintln(d.stderr, err.Error())
		return 2, false
	}
	return 0, true
}

func (d *Driver) ccName() string {
	if d.opts.CC == "" {
		return "clang"
	}
	return d.opts.CC
}

func (d *Driver) readInputs(paths []string) ([][]byte, bool) {
	sources := make([][]byte, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			d.diags.AddError(NewIoError(fmt.Sprintf("cannot read %s: %v", p, err)))
			return nil, false
		}
		sources[i] = data
	}
	return sources, true
}

func (d *Driver) lex(sources [][]byte) [][]Token {
	out := make([][]Token, len(sources))
	for i, src := range sources {
		out[i] = NewLexer(FileID(i), src, d.diags).Tokenize()
	}
	return out
}

func (d *Driver) parse(paths []string, tokens [][]Token) *Module {
	fragments := make([]*Module, len(tokens))
	for i, toks := range tokens {
		fragments[i] = NewParser(FileID(i), toks, d.diags).ParseFragment()
	}
	return MergeModules(paths, fragments)
}

// ResolveEntry applies the entry resolution order: top-level
// statements, then a zero-arg `main`, then exactly one zero-arg
// function.
func ResolveEntry(m *Module) (Entry, error) {
	if len(m.TopLevel) > 0 {
		return Entry{Kind: EntryTopLevel}, nil
	}
	var zeroArg []*FuncDecl
	for _, fn := range m.Functions {
		if len(fn.Params) != 0 {
			continue
		}
		if fn.Name == "main" {
			return Entry{Kind: EntryMain, Fn: fn}, nil
		}
		zeroArg = append(zeroArg, fn)
	}
	if len(zeroArg) == 1 {
		return Entry{Kind: EntrySingleFunc, Fn: zeroArg[0]}, nil
	}
	if len(zeroArg) == 0 {
		return Entry{}, NewNameError("no entry point: no top-level statements, no main, no zero-arg function", Span{})
	}
	return Entry{}, NewNameError(fmt.Sprintf("ambiguous entry point: %d zero-arg functions and no main", len(zeroArg)), Span{})
}

// ---- backend dispatch & toolchain ----

func (d *Driver) emit(module *Module, entry Entry, paths []string) int {
	outPath := d.outputPath(paths)

	tc, err := NewToolchain(ToolchainOptions{
		CC:          d.ccName(),
		MaxSpeed:    d.opts.MaxSpeed,
		PGOGenerate: d.opts.PGOGenerate,
		PGOUseDir:   d.opts.PGOUse,
		BoltFdata:   d.opts.BoltUse,
		Verbose:     d.opts.Verbose,
	})
	if err != nil {
		fmt.Fprintln(d.stderr, err.Error())
		return 2
	}

	backend := d.opts.Backend
	if backend == "" {
		backend = "auto"
	}

	if backend == "auto" || backend == "asm" {
		asmText, err := GenAsm(module, GenAsmOptions{Entry: entry, Windows: runtime.GOOS == "windows"})
		switch {
		case err == nil:
			if code := d.assembleAndLink(tc, asmText, outPath); code != 0 {
				return code
			}
			return d.maybeRun(tc, outPath)
		case backend == "asm":
			d.diags.AddError(NewBackendError(err.Error()))
			return d.fail("backend")
		default:
			// auto: fall back to the C backend silently, logging the
			// rejection so the supported set can grow empirically.
			d.verbosef("%v; falling back to C backend", err)
		}
	}

	cText, err := GenC(module, GenCOptions{Entry: entry})
	if err != nil {
		d.diags.AddError(NewBackendError(err.Error()))
		return d.fail("backend")
	}
	if code := d.compileC(tc, cText, outPath); code != 0 {
		return code
	}
	if err := tc.Bolt(outPath); err != nil {
		fmt.Fprintln(d.stderr, err.Error())
		return 4
	}
	return d.maybeRun(tc, outPath)
}

func (d *Driver) outputPath(paths []string) string {
	if d.opts.Output != "" {
		return d.opts.Output
	}
	base := strings.TrimSuffix(paths[0], filepath.Ext(paths[0]))
	if runtime.GOOS == "windows" {
		base += ".exe"
	}
	return base
}

func (d *Driver) compileC(tc *Toolchain, cText, outPath string) int {
	cPath := outPath + ".c"
	if err := os.WriteFile(cPath, []byte(cText), 0644); err != nil {
		fmt.Fprintln(d.stderr, NewIoError(err.Error()).Error())
		return 1
	}
	if !d.opts.KeepC {
		d.temps = append(d.temps, cPath)
	}
	if err := tc.CompileC(cPath, outPath); err != nil {
		fmt.Fprintln(d.stderr, err.Error())
		if _, ok := err.(IoError); ok {
			return 1
		}
		return 4
	}
	return 0
}

func (d *Driver) assembleAndLink(tc *Toolchain, asmText, outPath string) int {
	asmPath := outPath + ".s"
	if err := os.WriteFile(asmPath, []byte(asmText), 0644); err != nil {
		fmt.Fprintln(d.stderr, NewIoError(err.Error()).Error())
		return 1
	}
	d.temps = append(d.temps, asmPath)
	if err := tc.Assemble(asmPath, outPath); err != nil {
		fmt.Fprintln(d.stderr, err.Error())
		if _, ok := err.(IoError); ok {
			return 1
		}
		return 4
	}
	return 0
}

func (d *Driver) maybeRun(tc *Toolchain, outPath string) int {
	if !d.opts.Run {
		return 0
	}
	bin := outPath
	if !filepath.IsAbs(bin) && !strings.ContainsRune(bin, os.PathSeparator) {
		bin = "." + string(os.PathSeparator) + bin
	}
	code, err := tc.RunBinary(bin, d.opts.ExtraArgs)
	if err != nil {
		fmt.Fprintln(d.stderr, err.Error())
		return 5
	}
	return code
}

// ---- reporting / cleanup ----

// fail renders the failing phase's batched diagnostics and maps the
// phase to its exit code.
func (d *Driver) fail(phase string) int {
	d.diags.Write(d.stderr)
	return ExitCode(phase)
}

// flushWarnings prints accumulated warnings without affecting exit
// status.
func (d *Driver) flushWarnings() {
	if !d.diags.HasErrors() && len(d.diags.Items()) > 0 {
		d.diags.Write(d.stderr)
	}
}

func (d *Driver) verbosef(format string, args ...any) {
	if d.opts.Verbose {
		fmt.Fprintf(d.stderr, "lsc: "+format+"\n", args...)
	}
}

// cleanup removes tracked intermediates on every exit path; --keep-c files are never
// tracked.
func (d *Driver) cleanup() {
	for _, p := range d.temps {
		os.Remove(p)
	}
	d.temps = nil
}
