package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledgerline/internal/app"
	"github.com/odyssey-erp/ledgerline/internal/platform/cache"
	"github.com/odyssey-erp/ledgerline/internal/reports"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached reports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "bump",
		Short: "Invalidate every cached report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client, err := cache.New(cmd.Context(), cfg.Redis())
			if err != nil {
				return err
			}
			defer client.Close()

			ver, err := reports.NewCache(client, cfg.ReportCacheTTL).Bump(cmd.Context())
			if err != nil {
				return fmt.Errorf("bump cache version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report cache version %d\n", ver)
			return nil
		},
	})
	return cmd
}
