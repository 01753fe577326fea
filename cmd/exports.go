package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
)

var (
	exportsStatus string
	exportsLimit  int
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Inspect the export ledger",
}

var exportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded deal exports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListExports(ctx, store.ExportFilter{
			Status: model.ExportState(exportsStatus),
			Limit:  exportsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list exports")
		}
		if recs == nil {
			recs = []model.ExportRecord{}
		}
		return newPrinter(cmd.OutOrStdout()).Print(recs)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the export ledger schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	exportsListCmd.Flags().StringVar(&exportsStatus, "status", "", "filter by status (IN_PROGRESS, COMPLETE, FAILED, TIMED_OUT)")
	exportsListCmd.Flags().IntVar(&exportsLimit, "limit", 50, "maximum rows")

	exportsCmd.AddCommand(exportsListCmd)
	rootCmd.AddCommand(exportsCmd, migrateCmd)
}
