package lsc

import "fmt"

// Config is a loosely-typed key/value store backing both the compiler's
// own option defaults and LineScript's user-declared
// `flag name() do ... end` introspection: every
// `flag.<name>.present` / `flag.<name>.value` / `flag.<name>.tokens` key
// lives in the same dynamic bag as the compiler's own option defaults.
type Config map[string]*cfgVal

// NewConfig creates a new configuration object primed with the
// compiler's own default values.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("compiler.passes", 4)
	m.SetInt("compiler.unroll_cap", 8)
	m.SetBool("compiler.verbose", false)
	return &m
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
	cfgValType_StringSlice
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined:   "undefined",
		cfgValType_Bool:        "bool",
		cfgValType_Int:         "int",
		cfgValType_String:      "string",
		cfgValType_StringSlice: "[]string",
	}[vt]
}

type cfgVal struct {
	typ       cfgValType
	asBool    bool
	asInt     int
	asString  string
	asStrings []string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

func (c *Config) get(path string) *cfgVal {
	v, ok := (*c)[path]
	if !ok {
		v = &cfgVal{}
		(*c)[path] = v
	}
	return v
}

func (c *Config) SetBool(path string, v bool) {
	val := c.get(path)
	val.assignType(cfgValType_Bool)
	val.asBool = v
}

func (c *Config) GetBool(path string) bool {
	v, ok := (*c)[path]
	if !ok {
		return false
	}
	v.checkType(cfgValType_Bool)
	return v.asBool
}

func (c *Config) SetInt(path string, v int) {
	val := c.get(path)
	val.assignType(cfgValType_Int)
	val.asInt = v
}

func (c *Config) GetInt(path string) int {
	v, ok := (*c)[path]
	if !ok {
		return 0
	}
	v.checkType(cfgValType_Int)
	return v.asInt
}

func (c *Config) SetString(path string, v string) {
	val := c.get(path)
	val.assignType(cfgValType_String)
	val.asString = v
}

func (c *Config) GetString(path string) string {
	v, ok := (*c)[path]
	if !ok {
		return ""
	}
	v.checkType(cfgValType_String)
	return v.asString
}

func (c *Config) AppendStringSlice(path string, v string) {
	val := c.get(path)
	val.assignType(cfgValType_StringSlice)
	val.asStrings = append(val.asStrings, v)
}

func (c *Config) GetStringSlice(path string) []string {
	v, ok := (*c)[path]
	if !ok {
		return nil
	}
	v.checkType(cfgValType_StringSlice)
	return v.asStrings
}

func (c *Config) Has(path string) bool {
	_, ok := (*c)[path]
	return ok
}
