package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/meshflash/internal/catalog"
)

func newBoardsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List supported boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			boards := s.cat.Boards()
			return s.out.Print(boards, func() error {
				rows := make([][]string, 0, len(boards))
				for _, b := range boards {
					rows = append(rows, []string{b.ID, b.Name, b.Platform, strings.Join(b.Variants, ",")})
				}
				return s.out.Table([]string{"ID", "NAME", "PLATFORM", "VARIANTS"}, rows)
			})
		},
	}
}

// variantInfo is a variant plus the environment it builds on one board.
type variantInfo struct {
	catalog.Variant `yaml:",inline"`
	Env             string `json:"Env,omitempty" yaml:"env,omitempty"`
}

func newVariantsCmd(s *session) *cobra.Command {
	var board string
	cmd := &cobra.Command{
		Use:   "variants",
		Short: "List firmware variants, optionally those a board supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			variants := s.cat.Variants()
			if board != "" {
				if _, err := s.cat.Board(board); err != nil {
					return err
				}
				variants = s.cat.VariantsForBoard(board)
			}

			infos := make([]variantInfo, 0, len(variants))
			for _, v := range variants {
				info := variantInfo{Variant: v}
				if board != "" {
					info.Env, _ = s.cat.EnvironmentName(board, v.ID)
				}
				infos = append(infos, info)
			}

			return s.out.Print(infos, func() error {
				headers := []string{"ID", "NAME", "DESCRIPTION"}
				if board != "" {
					headers = append(headers, "ENVIRONMENT")
				}
				rows := make([][]string, 0, len(infos))
				for _, v := range infos {
					row := []string{v.ID, v.Name, v.Description}
					if board != "" {
						row = append(row, v.Env)
					}
					rows = append(rows, row)
				}
				return s.out.Table(headers, rows)
			})
		},
	}
	cmd.Flags().StringVar(&board, "board", "", "Only variants this board supports")
	return cmd
}

func newFieldsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "fields VARIANT",
		Short: "Show the settings a variant accepts, grouped for display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := s.cat.Variant(args[0])
			if err != nil {
				return err
			}
			groups := s.cat.FieldGroups(v)
			return s.out.Print(groups, func() error {
				var rows [][]string
				for _, g := range groups {
					for _, f := range g.Fields {
						rows = append(rows, []string{
							g.Name, f.Key, f.Kind.String(), fieldDefault(f),
							strconv.FormatBool(f.Required), constraint(f.FlagDef),
						})
					}
				}
				return s.out.Table([]string{"GROUP", "FLAG", "KIND", "DEFAULT", "REQUIRED", "ALLOWED"}, rows)
			})
		},
	}
}

func fieldDefault(f catalog.Field) string {
	if f.Kind == catalog.KindSecret && f.DefaultValue != "" {
		return "****"
	}
	return f.DefaultValue
}

// constraint renders a flag's bounds or options.
func constraint(def catalog.FlagDef) string {
	switch {
	case len(def.Options) > 0:
		return strings.Join(def.Options, "|")
	case def.Min != nil && def.Max != nil:
		return fmt.Sprintf("%g..%g", *def.Min, *def.Max)
	case def.Min != nil:
		return fmt.Sprintf(">= %g", *def.Min)
	case def.Max != nil:
		return fmt.Sprintf("<= %g", *def.Max)
	}
	return ""
}

func newPresetsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List regional LoRa presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := s.cat.Presets()
			return s.out.Print(presets, func() error {
				rows := make([][]string, 0, len(presets))
				for _, p := range presets {
					rows = append(rows, []string{p.ID, p.Name, p.CustomFlags()})
				}
				return s.out.Table([]string{"ID", "NAME", "FLAGS"}, rows)
			})
		},
	}
}
