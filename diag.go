package lsc

import (
	"fmt"
	"io"
	"sort"

	"github.com/linescript/lsc/ascii"
)

// Severity distinguishes blocking errors from the non-blocking warning
// channel.
type Severity int

const (
	SevError Severity = iota
	SevWarning
)

// Diagnostic is one reported problem: a kind tag, message, primary span,
// and optional secondary span.
type Diagnostic struct {
	Severity    Severity
	Kind        string
	Message     string
	Primary     Span
	Secondary   Span
	SecondaryOK bool
	SecondaryLabel string
}

func fromCompileError(err CompileError, sev Severity) Diagnostic {
	sec, label, ok := err.Secondary()
	return Diagnostic{
		Severity:       sev,
		Kind:           err.Kind(),
		Message:        err.Message(),
		Primary:        err.Primary(),
		Secondary:      sec,
		SecondaryOK:    ok,
		SecondaryLabel: label,
	}
}

// ExitCode maps a diagnostic's phase of origin to the process exit
// code. Phase is one of "cli", "io", "lex", "parse", "sema", "backend",
// "toolchain", "run".
func ExitCode(phase string) int {
	switch phase {
	case "cli":
		return 2
	case "lex", "parse", "sema":
		return 3
	case "backend", "toolchain":
		return 4
	case "run":
		return 5
	default:
		return 1
	}
}

// Diagnostics collects diagnostics from one compilation phase and
// renders them. The driver stops after the first phase that produces
// any SevError diagnostic.
type Diagnostics struct {
	items   []Diagnostic
	colored bool
	files   []string
}

func NewDiagnostics(colored bool) *Diagnostics {
	return &Diagnostics{colored: colored}
}

// SetFiles records the input file names, indexed by FileID, so rendered
// diagnostics can print paths instead of bare file ids.
func (d *Diagnostics) SetFiles(files []string) { d.files = files }

func (d *Diagnostics) Add(diag Diagnostic) { d.items = append(d.items, diag) }

func (d *Diagnostics) AddError(err CompileError) { d.Add(fromCompileError(err, SevError)) }

func (d *Diagnostics) AddWarning(message string, span Span) {
	d.Add(Diagnostic{Severity: SevWarning, Kind: "warning", Message: message, Primary: span})
}

func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == SevError {
			return true
		}
	}
	return false
}

func (d *Diagnostics) Items() []Diagnostic { return d.items }

// Sorted returns diagnostics ordered by primary span so multi-error
// phase output reads top-to-bottom through the source.
func (d *Diagnostics) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Primary.Start.Cursor < out[j].Primary.Start.Cursor
	})
	return out
}

// Write renders every diagnostic to w, one per line: a stable kind
// tag, then a source location, then a one-line message.
func (d *Diagnostics) Write(w io.Writer) {
	for _, it := range d.Sorted() {
		tag := it.Kind
		theme := ascii.DefaultTheme.Error
		if it.Severity == SevWarning {
			tag = "warning"
			theme = ascii.DefaultTheme.Warning
		}
		line := fmt.Sprintf("%s: %s:%s: %s", tag, d.fileLabel(it.Primary), it.Primary, it.Message)
		fmt.Fprintln(w, ascii.Paint(d.colored, theme, "%s", line))
		if it.SecondaryOK {
			sec := fmt.Sprintf("  %s: %s", it.SecondaryLabel, it.Secondary)
			fmt.Fprintln(w, ascii.Paint(d.colored, ascii.DefaultTheme.Muted, "%s", sec))
		}
	}
}

func (d *Diagnostics) fileLabel(s Span) string {
	if int(s.Start.File) < len(d.files) {
		return d.files[s.Start.File]
	}
	return fmt.Sprintf("file#%d", s.Start.File)
}
