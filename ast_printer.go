package lsc

import (
	"fmt"

	"github.com/linescript/lsc/ascii"
)

// PrintModule renders m as an indented, optionally colorized tree for
// --dump-ast. The node set is walked with a direct label/children pair
// per node (nodeLabel/nodeChildren below) since the AST has no
// Accept/Visitor machinery of its own.
func PrintModule(m *Module, colored bool) string {
	format := func(s, role string) string {
		theme := ascii.DefaultTheme
		switch role {
		case "operator":
			return ascii.Paint(colored, theme.Operator, "%s", s)
		case "operand":
			return ascii.Paint(colored, theme.Operand, "%s", s)
		case "literal":
			return ascii.Paint(colored, theme.Literal, "%s", s)
		case "span":
			return ascii.Paint(colored, theme.Span, "%s", s)
		default:
			return s
		}
	}
	tp := newTreePrinter(format)
	tp.writel(tp.styled("Module", "operator"))

	var children []Node
	if len(m.TopLevel) > 0 {
		children = append(children, &BlockStmt{Stmts: m.TopLevel})
	}
	for _, fn := range m.Functions {
		children = append(children, fn)
	}
	for _, c := range m.Classes {
		children = append(children, c)
	}
	for _, f := range m.Flags {
		children = append(children, f)
	}
	printChildren(tp, children)
	return tp.output.String()
}

func printChildren(tp *treePrinter, nodes []Node) {
	for i, n := range nodes {
		last := i == len(nodes)-1
		branch, pad := "├── ", "│   "
		if last {
			branch, pad = "└── ", "    "
		}
		tp.pwrite(branch)
		tp.write(tp.styled(nodeLabel(n), "operand"))
		tp.write(" ")
		tp.writel(tp.styled(n.Span().String(), "span"))
		tp.indent(pad)
		printChildren(tp, nodeChildren(n))
		tp.unindent()
	}
}

func nodeLabel(n Node) string {
	switch v := n.(type) {
	case *BlockStmt:
		return "Block"
	case *FuncDecl:
		return fmt.Sprintf("Func %s -> %s", v.Name, v.ResultType)
	case *ClassDecl:
		base := ""
		if v.BaseName != "" {
			base = " extends " + v.BaseName
		}
		return fmt.Sprintf("Class %s%s", v.Name, base)
	case *FieldDecl:
		return fmt.Sprintf("Field %s: %s", v.Name, v.Type)
	case *FlagDecl:
		return fmt.Sprintf("Flag %s", v.Name)
	case *VarDeclStmt:
		kw := "declare"
		if v.Const {
			kw += " const"
		}
		if v.Owned {
			kw += " owned"
		}
		return fmt.Sprintf("%s %s: %s", kw, v.Name, v.ResolvedType)
	case *AssignStmt:
		return fmt.Sprintf("Assign %s", v.Op)
	case *IfStmt:
		return "If"
	case *WhileStmt:
		return "While"
	case *ForRangeStmt:
		kind := "ForRange"
		if v.Parallel {
			kind = "ParallelForRange"
		}
		return fmt.Sprintf("%s %s", kind, v.Var)
	case *ReturnStmt:
		return "Return"
	case *BreakStmt:
		return "Break"
	case *ContinueStmt:
		return "Continue"
	case *ExprStmt:
		return "ExprStmt"
	case *MarkerStmt:
		return fmt.Sprintf(".%s()", v.Name)
	case *SpawnStmt:
		return fmt.Sprintf("Spawn %s", v.Target)
	case *AwaitStmt:
		return "Await"
	case *IntLit:
		return fmt.Sprintf("Int %d", v.Value)
	case *FloatLit:
		return fmt.Sprintf("Float %g", v.Value)
	case *StringLit:
		return fmt.Sprintf("String %q", escapeLiteral(v.Value))
	case *BoolLit:
		return fmt.Sprintf("Bool %t", v.Value)
	case *VarRef:
		return fmt.Sprintf("Var %s", v.Name)
	case *UnaryExpr:
		return fmt.Sprintf("Unary %s", v.Op)
	case *BinaryExpr:
		return fmt.Sprintf("Binary %s", v.Op)
	case *CallExpr:
		name := v.CalleeName
		if v.SpecializedName != "" {
			name = v.SpecializedName
		}
		return fmt.Sprintf("Call %s", name)
	case *IndexExpr:
		return "Index"
	case *MemberExpr:
		return fmt.Sprintf("Member.%s", v.Name)
	case *CastExpr:
		return fmt.Sprintf("Cast -> %s", v.To)
	default:
		return fmt.Sprintf("%T", n)
	}
}

func nodeChildren(n Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch v := n.(type) {
	case *BlockStmt:
		for _, s := range v.Stmts {
			add(s)
		}
	case *FuncDecl:
		if v.Body != nil {
			add(v.Body)
		}
	case *ClassDecl:
		for _, f := range v.Fields {
			add(f)
		}
		for _, m := range v.Methods {
			add(m)
		}
		if v.Constructor != nil {
			add(v.Constructor)
		}
	case *FlagDecl:
		if v.Body != nil {
			add(v.Body)
		}
	case *VarDeclStmt:
		add(v.Init)
	case *AssignStmt:
		add(v.Target, v.Value)
	case *IfStmt:
		add(v.Cond, v.Then)
		for _, e := range v.Elifs {
			add(e.Cond, e.Body)
		}
		add(v.Else)
	case *WhileStmt:
		add(v.Cond, v.Body)
	case *ForRangeStmt:
		add(v.Start, v.End, v.Step, v.Body)
	case *ReturnStmt:
		add(v.Value)
	case *ExprStmt:
		add(v.X)
	case *SpawnStmt:
		add(v.Call)
	case *AwaitStmt:
		add(v.X)
	case *UnaryExpr:
		add(v.X)
	case *BinaryExpr:
		add(v.L, v.R)
	case *CallExpr:
		add(v.Receiver)
		for _, arg := range v.Args {
			add(arg)
		}
	case *IndexExpr:
		add(v.X, v.Index)
	case *MemberExpr:
		add(v.X)
	case *CastExpr:
		add(v.X)
	}
	return out
}

// PrintTokens renders a raw token stream, one per line, for
// `--dump-tokens`.
func PrintTokens(toks []Token) string {
	var out string
	for _, t := range toks {
		if t.Kind == TokNewline {
			out += fmt.Sprintf("%-10s @ %s\n", t.Kind, t.Span)
			continue
		}
		out += fmt.Sprintf("%-10s %-20q @ %s\n", t.Kind, t.Lexeme, t.Span)
	}
	return out
}
