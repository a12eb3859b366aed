package lsc

import "strings"

// treePrinter is the generic indent-tracking "├── "/"└── " tree
// renderer behind PrintModule, specialized to the fixed set of roles
// `ast_printer.go` needs ("operator", "operand", "literal", "span").
type treePrinter struct {
	padStr *[]string
	output *strings.Builder
	format func(input, role string) string
}

func newTreePrinter(format func(input, role string) string) *treePrinter {
	return &treePrinter{padStr: &[]string{}, output: &strings.Builder{}, format: format}
}

func (tp *treePrinter) indent(s string)  { *tp.padStr = append(*tp.padStr, s) }
func (tp *treePrinter) unindent()        { *tp.padStr = (*tp.padStr)[:len(*tp.padStr)-1] }
func (tp *treePrinter) padding()         {
	for _, item := range *tp.padStr {
		tp.write(item)
	}
}
func (tp *treePrinter) write(s string)   { tp.output.WriteString(s) }
func (tp *treePrinter) writel(s string)  { tp.write(s); tp.output.WriteRune('\n') }
func (tp *treePrinter) pwrite(s string)  { tp.padding(); tp.write(s) }
func (tp *treePrinter) pwritel(s string) { tp.pwrite(s); tp.output.WriteRune('\n') }

func (tp *treePrinter) styled(s, role string) string {
	if tp.format == nil {
		return s
	}
	return tp.format(s, role)
}

var literalSanitizer = strings.NewReplacer(
	`"`, `\"`, `\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`,
)

func escapeLiteral(s string) string { return literalSanitizer.Replace(s) }
