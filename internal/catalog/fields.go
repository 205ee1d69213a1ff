package catalog

import "sort"

const (
	GroupRequired = "Required Settings"
	GroupOptional = "Optional Settings"
)

// Field is a flag definition annotated for form rendering.
type Field struct {
	FlagDef
	Required     bool
	DefaultValue string
}

// FieldGroup is a titled set of fields, sorted for display.
type FieldGroup struct {
	Name   string
	Fields []Field
}

// FieldGroups groups a variant's flags for a settings form. Flags without a
// group go to "Required Settings" or "Optional Settings". Within a group
// required flags come first, then ascending order index; unordered flags
// sort last and ties keep registry order. Groups appear in the order their
// first field was seen.
func (c *Catalog) FieldGroups(v Variant) []FieldGroup {
	var groups []FieldGroup
	index := map[string]int{}

	add := func(name string, required bool) {
		def, ok := c.Flag(name)
		if !ok {
			return
		}
		group := def.Group
		if group == "" {
			if required {
				group = GroupRequired
			} else {
				group = GroupOptional
			}
		}
		i, ok := index[group]
		if !ok {
			i = len(groups)
			index[group] = i
			groups = append(groups, FieldGroup{Name: group})
		}
		groups[i].Fields = append(groups[i].Fields, Field{
			FlagDef:      def,
			Required:     required,
			DefaultValue: def.Default,
		})
	}

	for _, name := range v.RequiredFlags {
		add(name, true)
	}
	for _, name := range v.OptionalFlags {
		add(name, false)
	}

	for i := range groups {
		fields := groups[i].Fields
		sort.SliceStable(fields, func(a, b int) bool {
			fa, fb := fields[a], fields[b]
			if fa.Required != fb.Required {
				return fa.Required
			}
			return orderKey(fa) < orderKey(fb)
		})
	}
	return groups
}

func orderKey(f Field) int {
	if f.Order <= 0 {
		return int(^uint(0) >> 1)
	}
	return f.Order
}
