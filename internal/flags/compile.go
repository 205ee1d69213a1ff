// Package flags turns a board/variant selection and user values into the
// ordered list of compile definitions handed to the build tool.
package flags

import (
	"github.com/buckleypaul/meshflash/internal/catalog"
)

// Compile produces NAME=value definitions in precedence order: the variant's
// required flags, the common flags, the variant's optional flags, then the
// custom text. A name is emitted at most once; the first writer wins.
//
// Required and common flags fall back to their catalog default. Optional
// flags are emitted only when the caller supplied a non-empty value. A value
// that resolves to "" is skipped, as is any boolean that is not true.
// Required-ness is a form hint only; a missing required value is not an error.
// No board contributes flags of its own.
func Compile(cat *catalog.Catalog, _ catalog.Board, variant catalog.Variant, userFlags map[string]string, custom string) []string {
	c := compiler{seen: make(map[string]struct{})}

	for _, name := range variant.RequiredFlags {
		c.withDefault(cat, name, userFlags)
	}
	for _, def := range cat.CommonFlags() {
		c.withDefault(cat, def.Key, userFlags)
	}
	for _, name := range variant.OptionalFlags {
		value, ok := userFlags[name]
		if !ok || value == "" {
			continue
		}
		if def, known := cat.Flag(name); known {
			c.emit(def, value)
		}
	}
	for _, tok := range ParseCustom(custom) {
		name := Name(tok)
		if _, dup := c.seen[name]; dup {
			continue
		}
		c.seen[name] = struct{}{}
		c.out = append(c.out, tok)
	}

	return c.out
}

type compiler struct {
	out  []string
	seen map[string]struct{}
}

func (c *compiler) withDefault(cat *catalog.Catalog, name string, userFlags map[string]string) {
	def, ok := cat.Flag(name)
	if !ok {
		return
	}
	value, set := userFlags[name]
	if !set {
		value = def.Default
	}
	if value == "" {
		return
	}
	c.emit(def, value)
}

// emit formats and records a definition unless its name was already written.
// A false boolean is not recorded, so a later writer may still set it.
func (c *compiler) emit(def catalog.FlagDef, value string) {
	if _, dup := c.seen[def.Key]; dup {
		return
	}
	s, ok := def.Format(value)
	if !ok {
		return
	}
	c.seen[def.Key] = struct{}{}
	c.out = append(c.out, s)
}
