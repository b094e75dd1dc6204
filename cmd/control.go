package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
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

			if err := st.SetEnabled(ctx, enabled); err != nil {
				return err
			}
			zap.L().Info("engine state changed", zap.Bool("enabled", enabled))
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(
		setEnabledCmd("enable", "Enable scheduled campaign runs", true),
		setEnabledCmd("disable", "Disable scheduled campaign runs", false),
	)
}
