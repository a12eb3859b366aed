package lsc

import "strings"

// TypeTag discriminates the Type variant.
type TypeTag int

const (
	TyUnresolved TypeTag = iota
	TyVoid
	TyBool
	TyI32
	TyI64
	TyF32
	TyF64
	TyStr
	TyHandle
	TyFunction
	TyClass
)

func (t TypeTag) String() string {
	switch t {
	case TyVoid:
		return "void"
	case TyBool:
		return "bool"
	case TyI32:
		return "i32"
	case TyI64:
		return "i64"
	case TyF32:
		return "f32"
	case TyF64:
		return "f64"
	case TyStr:
		return "str"
	case TyHandle:
		return "handle"
	case TyFunction:
		return "function"
	case TyClass:
		return "class"
	default:
		return "unresolved"
	}
}

// Type is value-copyable. Function types carry their
// parameter types, result type, and throws-set out of line (functions
// are not nested at depth, so a slice field is cheap and simple).
type Type struct {
	Tag     TypeTag
	Params  []Type
	Result  *Type
	Throws  []string
	ClassID int32 // the user class when Tag is TyClass; -1 in a parser placeholder whose class name sits in Throws until sema resolves it
}

var (
	Void       = Type{Tag: TyVoid}
	Bool       = Type{Tag: TyBool}
	I32        = Type{Tag: TyI32}
	I64        = Type{Tag: TyI64}
	F32        = Type{Tag: TyF32}
	F64        = Type{Tag: TyF64}
	Str        = Type{Tag: TyStr}
	Handle     = Type{Tag: TyHandle}
	Unresolved = Type{Tag: TyUnresolved}
)

func Function(params []Type, result Type, throws []string) Type {
	r := result
	return Type{Tag: TyFunction, Params: params, Result: &r, Throws: throws}
}

func (t Type) IsNumeric() bool {
	switch t.Tag {
	case TyI32, TyI64, TyF32, TyF64:
		return true
	default:
		return false
	}
}

func (t Type) IsInteger() bool { return t.Tag == TyI32 || t.Tag == TyI64 }
func (t Type) IsFloat() bool   { return t.Tag == TyF32 || t.Tag == TyF64 }

// Equal reports exact type equality. The language forbids implicit
// numeric narrowing/widening, so unification is always exact equality
// after both sides are resolved.
func (t Type) Equal(o Type) bool {
	if t.Tag != o.Tag {
		return false
	}
	if t.Tag == TyClass {
		return t.ClassID == o.ClassID
	}
	if t.Tag != TyFunction {
		return true
	}
	if len(t.Params) != len(o.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	if (t.Result == nil) != (o.Result == nil) {
		return false
	}
	if t.Result != nil && !t.Result.Equal(*o.Result) {
		return false
	}
	return sameSet(t.Throws, o.Throws)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	if t.Tag != TyFunction {
		return t.Tag.String()
	}
	var b strings.Builder
	b.WriteString("fn(")
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	if t.Result != nil {
		b.WriteString(t.Result.String())
	}
	if len(t.Throws) > 0 {
		b.WriteString(" throws ")
		b.WriteString(strings.Join(t.Throws, ", "))
	}
	return b.String()
}

// widenFn returns the name of the explicit widening conversion builtin
// that converts to `to`, if one exists.
func widenFn(to TypeTag) (string, bool) {
	switch to {
	case TyI64:
		return "to_i64", true
	case TyF64:
		return "to_f64", true
	default:
		return "", false
	}
}
