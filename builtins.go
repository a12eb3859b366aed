package lsc

import "strings"

// builtins.go models the fixed, compiler-known function surface: the
// ad-hoc generic numeric helpers, the explicit widening conversions,
// print/println, and the `flag`-introspection builtins. Everything else
// unresolved is an opaque host-library symbol — the analyzer checks
// *its own* surface strictly and treats any other unresolved callee
// name as a host call whose exact signature lives outside this
// repository.

// genericHelpers is the ad-hoc generic helper set; each call expands
// to a type-specialized variant named "<name>_<type>".
var genericHelpers = map[string]int{
	"max":   2,
	"min":   2,
	"abs":   1,
	"clamp": 3,
}

// widenHelpers is the explicit-widening builtin set.
var widenHelpers = map[string]struct {
	from, to TypeTag
}{
	"to_i64": {TyI32, TyI64},
	"to_f64": {TyF32, TyF64},
}

// printHelpers accept exactly one argument of any primitive type and
// return void.
var printHelpers = map[string]bool{"print": true, "println": true}

// cliHelpers are registered only once a source module declares at least
// one `flag` block.
var cliHelpers = map[string]Type{
	"cli_has":         Function([]Type{Str}, Bool, nil),
	"cli_value":       Function([]Type{Str}, Str, nil),
	"cli_token":       Function([]Type{Str, I64}, Str, nil),
	"cli_token_count": Function([]Type{Str}, I64, nil),
}

// hostFreeSuffix is the naming convention for synthesized/host release
// calls.
const hostFreeSuffix = "_free"

func isHostFreeCall(name string) bool {
	return strings.HasSuffix(name, hostFreeSuffix)
}

// specializedHelperName returns the type-specialized name for a generic
// helper given its resolved argument type, e.g. max(i64,i64) -> max_i64.
func specializedHelperName(name string, argType Type) string {
	return name + "_" + argType.Tag.String()
}

// hostNewSuffix is the constructor-side convention ownedFreeFn expects
// to pair with hostFreeSuffix.
const hostNewSuffix = "_new"

// ownedFreeFn derives the release function for an `owned` declaration
// from its initializer. A host constructor named
// "<prefix>_new(...)" pairs with "<prefix>_free"; anything else falls
// back to "<calleeName>_free" so every owned handle still gets some
// release call emitted, even one a reader must define on the host side.
func ownedFreeFn(init Expr) string {
	call, ok := init.(*CallExpr)
	if !ok {
		return ""
	}
	name := call.CalleeName
	if strings.HasSuffix(name, hostNewSuffix) {
		return strings.TrimSuffix(name, hostNewSuffix) + hostFreeSuffix
	}
	return name + hostFreeSuffix
}
