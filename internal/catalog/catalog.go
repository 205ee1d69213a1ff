// Package catalog holds the static board, variant and flag registry used to
// turn a user's selection into a PlatformIO environment and flag set.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	// ErrNotFound is returned when a board, variant, flag or preset id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrConfigurationMissing is returned when a board/variant pair has no
	// environment mapping. For advertised pairs this is a data defect.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Board is a hardware target the build tool can compile for.
type Board struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Platform    string   `yaml:"platform"`
	Framework   string   `yaml:"framework"`
	Variants    []string `yaml:"variants"`
	PostProcess string   `yaml:"post_process,omitempty"`
}

// Supports reports whether the board lists the given variant.
func (b Board) Supports(variantID string) bool {
	for _, v := range b.Variants {
		if v == variantID {
			return true
		}
	}
	return false
}

// Variant is a firmware role profile.
type Variant struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	RequiredFlags []string `yaml:"required"`
	OptionalFlags []string `yaml:"optional"`
}

// FlagDef describes a compile-time definition the user can set.
type FlagDef struct {
	Key         string   `yaml:"key"`
	Label       string   `yaml:"label"`
	Kind        Kind     `yaml:"kind"`
	Default     string   `yaml:"default"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	Options     []string `yaml:"options,omitempty"`
	Group       string   `yaml:"group,omitempty"`
	Order       int      `yaml:"order,omitempty"` // 0 means unordered
	Description string   `yaml:"description,omitempty"`
}

// Format renders the flag as a NAME=value definition.
func (f FlagDef) Format(value string) (string, bool) {
	return f.Kind.Format(f.Key, value)
}

// Validate checks a user-supplied value against the flag's kind rules.
// An empty value is always accepted; it means "not set".
func (f FlagDef) Validate(value string) error {
	if value == "" {
		return nil
	}
	return f.Kind.Validate(f, value)
}

// RegionalPreset is a recommended LoRa radio configuration for a region.
type RegionalPreset struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Frequency       string `yaml:"frequency"`
	Bandwidth       string `yaml:"bandwidth"`
	SpreadingFactor string `yaml:"spreading_factor"`
	Description     string `yaml:"description"`
}

// CustomFlags renders the preset as free-form custom flag text.
func (p RegionalPreset) CustomFlags() string {
	return fmt.Sprintf("LORA_FREQ=%s LORA_BW=%s LORA_SF=%s", p.Frequency, p.Bandwidth, p.SpreadingFactor)
}

type document struct {
	Boards       []Board                      `yaml:"boards"`
	Variants     []Variant                    `yaml:"variants"`
	Common       []string                     `yaml:"common"`
	Flags        []FlagDef                    `yaml:"flags"`
	Presets      []RegionalPreset             `yaml:"presets"`
	Environments map[string]map[string]string `yaml:"environments"`
}

// Catalog is the immutable registry. It is safe for concurrent use.
type Catalog struct {
	boards     []Board
	boardIdx   map[string]int
	variants   []Variant
	variantIdx map[string]int
	flags      []FlagDef
	flagIdx    map[string]int
	common     []string
	presets    []RegionalPreset
	envs       map[string]map[string]string
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// MustLoad is Load for the composition root; the embedded data is
// covered by tests so a failure here is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a Catalog from YAML and checks its integrity.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		boards:     doc.Boards,
		boardIdx:   make(map[string]int, len(doc.Boards)),
		variants:   doc.Variants,
		variantIdx: make(map[string]int, len(doc.Variants)),
		flags:      doc.Flags,
		flagIdx:    make(map[string]int, len(doc.Flags)),
		common:     doc.Common,
		presets:    doc.Presets,
		envs:       doc.Environments,
	}
	for i, b := range c.boards {
		if _, dup := c.boardIdx[b.ID]; dup {
			return nil, fmt.Errorf("duplicate board %q", b.ID)
		}
		c.boardIdx[b.ID] = i
	}
	for i, v := range c.variants {
		if _, dup := c.variantIdx[v.ID]; dup {
			return nil, fmt.Errorf("duplicate variant %q", v.ID)
		}
		c.variantIdx[v.ID] = i
	}
	for i, f := range c.flags {
		if _, dup := c.flagIdx[f.Key]; dup {
			return nil, fmt.Errorf("duplicate flag %q", f.Key)
		}
		c.flagIdx[f.Key] = i
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every reference in the catalog resolves.
func (c *Catalog) Validate() error {
	var problems []string
	for _, b := range c.boards {
		for _, vid := range b.Variants {
			if _, ok := c.variantIdx[vid]; !ok {
				problems = append(problems, fmt.Sprintf("board %s lists unknown variant %s", b.ID, vid))
				continue
			}
			if _, err := c.EnvironmentName(b.ID, vid); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}
	for _, v := range c.variants {
		for _, name := range append(append([]string{}, v.RequiredFlags...), v.OptionalFlags...) {
			if _, ok := c.flagIdx[name]; !ok {
				problems = append(problems, fmt.Sprintf("variant %s references unknown flag %s", v.ID, name))
			}
		}
	}
	for _, name := range c.common {
		if _, ok := c.flagIdx[name]; !ok {
			problems = append(problems, fmt.Sprintf("common flag %s is not defined", name))
		}
	}
	for _, f := range c.flags {
		if f.Kind == KindSelect && len(f.Options) == 0 {
			problems = append(problems, fmt.Sprintf("select flag %s has no options", f.Key))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid catalog:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// Boards returns all boards in declaration order.
func (c *Catalog) Boards() []Board {
	return append([]Board(nil), c.boards...)
}

// Variants returns all variants in declaration order.
func (c *Catalog) Variants() []Variant {
	return append([]Variant(nil), c.variants...)
}

// Board looks up a board by id.
func (c *Catalog) Board(id string) (Board, error) {
	i, ok := c.boardIdx[id]
	if !ok {
		return Board{}, fmt.Errorf("board %q: %w", id, ErrNotFound)
	}
	return c.boards[i], nil
}

// Variant looks up a variant by id.
func (c *Catalog) Variant(id string) (Variant, error) {
	i, ok := c.variantIdx[id]
	if !ok {
		return Variant{}, fmt.Errorf("variant %q: %w", id, ErrNotFound)
	}
	return c.variants[i], nil
}

// Flag looks up a flag definition by name.
func (c *Catalog) Flag(name string) (FlagDef, bool) {
	i, ok := c.flagIdx[name]
	if !ok {
		return FlagDef{}, false
	}
	return c.flags[i], true
}

// CommonFlags returns the flags applied to every variant.
func (c *Catalog) CommonFlags() []FlagDef {
	out := make([]FlagDef, 0, len(c.common))
	for _, name := range c.common {
		if f, ok := c.Flag(name); ok {
			out = append(out, f)
		}
	}
	return out
}

// VariantsForBoard maps the board's variant list through the registry.
// An unknown board yields an empty list; callers reject unknown boards first.
func (c *Catalog) VariantsForBoard(boardID string) []Variant {
	b, err := c.Board(boardID)
	if err != nil {
		return nil
	}
	out := make([]Variant, 0, len(b.Variants))
	for _, vid := range b.Variants {
		if v, err := c.Variant(vid); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// BoardsForVariant returns every board that supports the variant.
func (c *Catalog) BoardsForVariant(variantID string) []Board {
	var out []Board
	for _, b := range c.boards {
		if b.Supports(variantID) {
			out = append(out, b)
		}
	}
	return out
}

// EnvironmentName returns the PlatformIO environment for a board/variant pair.
func (c *Catalog) EnvironmentName(boardID, variantID string) (string, error) {
	byVariant, ok := c.envs[boardID]
	if !ok {
		return "", fmt.Errorf("no environment mapping for board %s: %w", boardID, ErrConfigurationMissing)
	}
	env, ok := byVariant[variantID]
	if !ok || env == "" {
		return "", fmt.Errorf("no environment mapping for board %s, variant %s: %w", boardID, variantID, ErrConfigurationMissing)
	}
	return env, nil
}

// Presets returns the regional LoRa presets.
func (c *Catalog) Presets() []RegionalPreset {
	return append([]RegionalPreset(nil), c.presets...)
}

// Preset looks up a regional preset by id.
func (c *Catalog) Preset(id string) (RegionalPreset, error) {
	for _, p := range c.presets {
		if p.ID == id {
			return p, nil
		}
	}
	return RegionalPreset{}, fmt.Errorf("preset %q: %w", id, ErrNotFound)
}

// ValidateValues checks user values for the flags a variant exposes, plus
// the common flags. Names the variant does not know are ignored.
func (c *Catalog) ValidateValues(v Variant, values map[string]string) error {
	var errs []error
	check := func(name string) {
		val, ok := values[name]
		if !ok {
			return
		}
		def, ok := c.Flag(name)
		if !ok {
			return
		}
		if err := def.Validate(val); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range v.RequiredFlags {
		check(name)
	}
	for _, name := range c.common {
		check(name)
	}
	for _, name := range v.OptionalFlags {
		check(name)
	}
	return errors.Join(errs...)
}
