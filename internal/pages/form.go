package pages

import (
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/buckleypaul/meshflash/internal/catalog"
	"github.com/buckleypaul/meshflash/internal/ui"
)

type rowKind int

const (
	rowText rowKind = iota
	rowToggle
	rowSelect
)

// Fixed rows at the top of the build form. Variant fields follow.
const (
	rowPort = iota
	rowErase
	rowPreset
	rowCustom
	fixedRows
)

// formRow is one editable line of the build form.
type formRow struct {
	kind     rowKind
	label    string
	group    string // first row of a group renders the heading
	flag     string // catalog flag key; empty for fixed rows
	required bool
	hint     string

	input   textinput.Model
	on      bool
	options []string
	choice  int
}

func newTextRow(label, placeholder string, limit int) formRow {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Prompt = ""
	return formRow{kind: rowText, label: label, input: ti}
}

// fieldRow builds the row for a catalog field, seeded with its default.
func fieldRow(group string, f catalog.Field) formRow {
	var r formRow
	switch f.Kind {
	case catalog.KindBoolean:
		r = formRow{kind: rowToggle, on: catalog.IsTrue(f.DefaultValue)}
	case catalog.KindSelect:
		r = formRow{kind: rowSelect, options: append([]string{""}, f.Options...)}
		for i, o := range r.options {
			if o == f.DefaultValue {
				r.choice = i
			}
		}
	default:
		r = newTextRow("", f.Description, 128)
		if f.Kind == catalog.KindSecret {
			r.input.EchoMode = textinput.EchoPassword
		}
		r.input.SetValue(f.DefaultValue)
	}
	r.label = f.Label
	if r.label == "" {
		r.label = f.Key
	}
	r.group = group
	r.flag = f.Key
	r.required = f.Required
	r.hint = f.Description
	return r
}

// value is the row's current value as a flag string.
func (r formRow) value() string {
	switch r.kind {
	case rowToggle:
		if r.on {
			return "true"
		}
		return "false"
	case rowSelect:
		if r.choice < len(r.options) {
			return r.options[r.choice]
		}
		return ""
	}
	return r.input.Value()
}

func (r *formRow) cycle(dir int) {
	if len(r.options) == 0 {
		return
	}
	r.choice = (r.choice + dir + len(r.options)) % len(r.options)
}

func (r formRow) display() string {
	switch r.kind {
	case rowToggle:
		return ui.Checkbox(r.on)
	case rowSelect:
		v := r.value()
		if v == "" {
			v = "(none)"
		}
		return "< " + v + " >"
	}
	return r.input.View()
}
