package lsc

import (
	"fmt"
	"strings"
)

// RegisterDynamicFlags matches the leftover argument vector against the
// module's `flag name() do ... end` declarations and
// records the result in cfg under `flag.<name>.present`,
// `flag.<name>.value`, and `flag.<name>.tokens`.
//
// Grouped syntax `-O [ -p max -X [ --beta ] ]` nests: a bracket pair
// scopes its tokens to the flag immediately preceding it. Unbalanced
// brackets are a fatal CliError. Unknown flags outside
// grouped mode produce a warning and are ignored; inside a
// group they are part of the group's token run.
func RegisterDynamicFlags(cfg *Config, flags []*FlagDecl, argv []string, diags *Diagnostics) error {
	declared := map[string]bool{}
	for _, f := range flags {
		declared[f.Name] = true
	}

	depth := 0
	cur := "" // name of the flag currently consuming tokens
	var groupStack []string

	for _, tok := range argv {
		switch tok {
		case "[":
			depth++
			groupStack = append(groupStack, cur)
			continue
		case "]":
			depth--
			if depth < 0 {
				return NewCliError("unbalanced ']' in argument list")
			}
			cur = groupStack[len(groupStack)-1]
			groupStack = groupStack[:len(groupStack)-1]
			continue
		}

		if strings.HasPrefix(tok, "-") && tok != "-" {
			name := strings.TrimLeft(tok, "-")
			if declared[name] {
				cfg.SetBool(flagKey(name, "present"), true)
				cur = name
				continue
			}
			if depth > 0 && cur != "" {
				// Inside a group, an unrecognized flag token still
				// belongs to the owning flag's run.
				appendFlagToken(cfg, cur, tok)
				continue
			}
			diags.AddWarning(fmt.Sprintf("unknown flag %q ignored", tok), Span{})
			cur = ""
			continue
		}

		if cur != "" {
			appendFlagToken(cfg, cur, tok)
		}
	}
	if depth != 0 {
		return NewCliError("unbalanced '[' in argument list")
	}
	return nil
}

func appendFlagToken(cfg *Config, name, tok string) {
	if !cfg.Has(flagKey(name, "value")) {
		cfg.SetString(flagKey(name, "value"), tok)
	}
	cfg.AppendStringSlice(flagKey(name, "tokens"), tok)
}

func flagKey(name, field string) string {
	return "flag." + name + "." + field
}
