package cmd

import (
	"github.com/spf13/cobra"
)

func newHistoryCmd(s *session) *cobra.Command {
	var (
		flashes bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent builds or flashes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := s.store()
			if flashes {
				records, err := st.RecentFlashes(limit)
				if err != nil {
					return err
				}
				return s.out.Print(records, func() error {
					rows := make([][]string, 0, len(records))
					for _, r := range records {
						rows = append(rows, []string{
							r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Outcome,
							r.Board, r.Variant, r.Port, r.Duration, r.RequestID,
						})
					}
					return s.out.Table([]string{"TIME", "OUTCOME", "BOARD", "VARIANT", "PORT", "DURATION", "ID"}, rows)
				})
			}

			records, err := st.RecentBuilds(limit)
			if err != nil {
				return err
			}
			return s.out.Print(records, func() error {
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{
						r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Outcome,
						r.Board, r.Variant, r.Env, r.Duration, r.RequestID,
					})
				}
				return s.out.Table([]string{"TIME", "OUTCOME", "BOARD", "VARIANT", "ENV", "DURATION", "ID"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&flashes, "flashes", false, "Show flashes instead of builds")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records, 0 for all")
	return cmd
}
