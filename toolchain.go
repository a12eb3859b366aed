package lsc

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// ToolchainOptions carries everything the external C/assembler driver
// invocation needs.
type ToolchainOptions struct {
	CC          string // "clang", "gcc", or a validated path
	MaxSpeed    bool   // -O4 / --max-speed
	PGOGenerate bool
	PGOUseDir   string
	BoltFdata   string
	Verbose     bool
}

var ccPattern = regexp.MustCompile(`^[A-Za-z0-9_./+\-]+$`)

// ccForbidden lists the shell metacharacters that must be rejected
// before any subprocess exists.
const ccForbidden = "; & | ` $ ( ) < > \n"

// ValidateCC checks a --cc value against the allowed character set.
// The explicit metacharacter scan is redundant with the pattern but
// keeps the hardening property visible and independently testable.
func ValidateCC(cc string) error {
	if cc == "" {
		return NewCliError("--cc value is empty")
	}
	for _, c := range ccForbidden {
		if c == ' ' {
			continue
		}
		if strings.ContainsRune(cc, c) {
			return NewCliError(fmt.Sprintf("--cc value contains forbidden character %q", c))
		}
	}
	if !ccPattern.MatchString(cc) {
		return NewCliError(fmt.Sprintf("--cc value %q does not match [A-Za-z0-9_./+-]+", cc))
	}
	return nil
}

// CompileCArgs builds the argument vector handed to the C toolchain
// driver for one generated translation unit. At -O4 the aggressive
// native flag set is used; PGO flags compose with it
// (profile generation and use are mutually exclusive upstream).
func CompileCArgs(opt ToolchainOptions, cFile, outPath string) []string {
	args := []string{cFile, "-o", outPath}
	if opt.MaxSpeed {
		args = append(args, "-O3", "-march=native", "-fno-math-errno", "-fno-exceptions", "-fno-unwind-tables", "-fopenmp")
	} else {
		args = append(args, "-O2")
	}
	if opt.PGOGenerate {
		args = append(args, "-fprofile-generate")
	}
	if opt.PGOUseDir != "" {
		args = append(args, "-fprofile-use="+opt.PGOUseDir)
	}
	args = append(args, "-lm", "-lpthread")
	return args
}

// AssembleArgs builds the argument vector for assembling and linking an
// ASM-backend output file with the same toolchain driver.
func AssembleArgs(opt ToolchainOptions, asmFile, outPath string) []string {
	return []string{asmFile, "-o", outPath}
}

// BoltArgs builds the post-link BOLT invocation. Per the resolved Open
// Question: profile-use first, BOLT layered on the
// PGO-optimized binary.
func BoltArgs(binPath, fdata string) []string {
	return []string{binPath, "-o", binPath + ".bolt", "-data", fdata}
}

// Toolchain wraps the external compiler driver subprocess. All
// invocations are synchronous with no timeout.
type Toolchain struct {
	opt ToolchainOptions
}

func NewToolchain(opt ToolchainOptions) (*Toolchain, error) {
	if err := ValidateCC(opt.CC); err != nil {
		return nil, err
	}
	return &Toolchain{opt: opt}, nil
}

// run executes one subprocess, forwarding its stderr verbatim.
func (t *Toolchain) run(name string, args []string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if t.opt.Verbose {
		fmt.Fprintf(os.Stderr, "lsc: exec %s %s\n", name, strings.Join(args, " "))
	}
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return NewToolchainError(fmt.Sprintf("%s failed: %v", name, err))
		}
		return NewIoError(fmt.Sprintf("could not invoke %s: %v", name, err))
	}
	return nil
}

// CompileC hands the generated C file to the toolchain driver.
func (t *Toolchain) CompileC(cFile, outPath string) error {
	return t.run(t.opt.CC, CompileCArgs(t.opt, cFile, outPath))
}

// Assemble hands the generated assembly file to the toolchain driver.
func (t *Toolchain) Assemble(asmFile, outPath string) error {
	return t.run(t.opt.CC, AssembleArgs(t.opt, asmFile, outPath))
}

// Bolt applies post-link BOLT optimization when --bolt-use was given,
// replacing the binary with its optimized layout on success.
func (t *Toolchain) Bolt(binPath string) error {
	if t.opt.BoltFdata == "" {
		return nil
	}
	if _, err := exec.LookPath("llvm-bolt"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: llvm-bolt not found, skipping --bolt-use\n")
		return nil
	}
	if err := t.run("llvm-bolt", BoltArgs(binPath, t.opt.BoltFdata)); err != nil {
		return err
	}
	return os.Rename(binPath+".bolt", binPath)
}

// RunBinary executes the produced binary and returns its exit code;
// launch failures are distinguished from the program's own status.
func (t *Toolchain) RunBinary(binPath string, args []string) (int, error) {
	cmd := exec.Command(binPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		if exit, ok := err.(*exec.ExitError); ok {
			return exit.ExitCode(), nil
		}
		return 0, NewToolchainError(fmt.Sprintf("could not launch %s: %v", binPath, err))
	}
	return 0, nil
}
