package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-engine/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine state and lead inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		state, err := st.GetRunState(ctx)
		if err != nil {
			return err
		}
		cursor, err := st.GetCursor(ctx)
		if err != nil {
			return err
		}
		counters, err := st.GetCounters(ctx)
		if err != nil {
			return err
		}

		counts := map[string]int{}
		for _, status := range []model.LeadStatus{
			model.LeadStatusScraped, model.LeadStatusAudited, model.LeadStatusEmailed,
		} {
			n, err := st.CountLeadsByStatus(ctx, status)
			if err != nil {
				return err
			}
			counts[string(status)] = n
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"engine":          state,
			"cursor":          cursor,
			"counters":        counters,
			"leads_by_status": counts,
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
