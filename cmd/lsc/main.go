package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	lsc "github.com/linescript/lsc"
)

// opts is the static CLI surface. Grouped-bracket runs and
// source-declared `flag` blocks are intentionally left unrecognized
// here and flow through to the driver as leftover arguments.
type opts struct {
	Check bool `long:"check" description:"Run lexer, parser, analyzer and optimizer; emit nothing"`
	Build bool `long:"build" description:"Run the full pipeline to a native binary"`
	Run   bool `long:"run" description:"Build, then execute the binary, forwarding its exit code"`

	CC      string `long:"cc" default:"clang" description:"Toolchain driver: clang, gcc, or a validated path"`
	Backend string `long:"backend" default:"auto" choice:"auto" choice:"c" choice:"asm" description:"Code generation backend"`
	Passes  int    `long:"passes" description:"Maximum optimizer passes"`

	Opt      string `short:"O" description:"Optimization level; 4 selects aggressive native flags"`
	MaxSpeed bool   `long:"max-speed" description:"Alias for -O4"`

	PGOGenerate bool   `long:"pgo-generate" description:"Instrument the binary for profile collection"`
	PGOUse      string `long:"pgo-use" value-name:"DIR" description:"Consume collected profiles"`
	BoltUse     string `long:"bolt-use" value-name:"FDATA" description:"Post-link BOLT optimization when available"`

	KeepC  bool   `long:"keep-c" description:"Retain the generated C file next to the output"`
	Output string `short:"o" long:"output" value-name:"PATH" description:"Output path"`

	DumpAST    bool `long:"dump-ast" description:"Print the module AST and stop"`
	DumpTokens bool `long:"dump-tokens" description:"Print the raw token stream and stop"`
	Verbose    bool `short:"v" long:"verbose" description:"Report per-phase timing and optimizer pass counts"`
	NoColor    bool `long:"no-color" description:"Disable colored diagnostics"`
}

func main() {
	var o opts
	parser := flags.NewParser(&o, flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	parser.Usage = "<file1.lsc> [file2.lsc...] [options]"

	rest, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "CliError: %v\n", err)
		os.Exit(2)
	}

	if o.Opt != "" && o.Opt != "4" {
		fmt.Fprintf(os.Stderr, "CliError: unsupported optimization level -O%s\n", o.Opt)
		os.Exit(2)
	}

	// Positional source files come first; everything after them that the
	// static parser did not consume belongs to the dynamic flag layer.
	var files, extra []string
	for _, arg := range rest {
		if isSourcePath(arg) && len(extra) == 0 {
			files = append(files, arg)
			continue
		}
		extra = append(extra, arg)
	}

	mode := driverMode(o)
	driver := lsc.NewDriver(lsc.DriverOptions{
		Check:       mode == "check",
		Build:       mode == "build",
		Run:         mode == "run",
		CC:          o.CC,
		Backend:     o.Backend,
		Passes:      o.Passes,
		MaxSpeed:    o.MaxSpeed || o.Opt == "4",
		PGOGenerate: o.PGOGenerate,
		PGOUse:      o.PGOUse,
		BoltUse:     o.BoltUse,
		KeepC:       o.KeepC,
		Output:      o.Output,
		DumpAST:     o.DumpAST,
		DumpTokens:  o.DumpTokens,
		Verbose:     o.Verbose,
		Color:       !o.NoColor && isTerminal(os.Stderr),
		ExtraArgs:   extra,
	})
	os.Exit(driver.Compile(files))
}

func driverMode(o opts) string {
	switch {
	case o.Run:
		return "run"
	case o.Check:
		return "check"
	default:
		return "build"
	}
}

func isSourcePath(arg string) bool {
	if len(arg) == 0 || arg[0] == '-' {
		return false
	}
	return hasSuffix(arg, ".lsc") || hasSuffix(arg, ".ls")
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
