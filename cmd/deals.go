package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/crm"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/report"
)

var (
	dealsPipeline    string
	dealsLimit       int
	dealsExportLocal string
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List deal stages of the default pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "api")
		if err != nil {
			return err
		}
		defer env.Close()

		return newPrinter(cmd.OutOrStdout()).Print(env.Service.DealStages(cmd.Context()))
	},
}

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List the configured deal pipelines with their stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "api")
		if err != nil {
			return err
		}
		defer env.Close()

		return newPrinter(cmd.OutOrStdout()).Print(env.Service.TargetPipelines(cmd.Context()))
	},
}

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Search and export deals",
}

var dealsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search deals across the configured pipelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "api")
		if err != nil {
			return err
		}
		defer env.Close()

		deals, err := env.Service.SearchDeals(cmd.Context(), crm.DealSearchOptions{
			Limit:      dealsLimit,
			PipelineID: dealsPipeline,
		})
		if err != nil {
			return eris.Wrap(err, "search deals")
		}
		return newPrinter(cmd.OutOrStdout()).Print(deals)
	},
}

var dealsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all deals via HubSpot, or to a local XLSX file with --local",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "api")
		if err != nil {
			return err
		}
		defer env.Close()

		if dealsExportLocal != "" {
			return exportLocal(cmd, env.Service, dealsExportLocal)
		}

		res, err := env.Service.ExportDeals(ctx)
		if err != nil {
			return err
		}
		return newPrinter(cmd.OutOrStdout()).Print(res)
	},
}

func exportLocal(cmd *cobra.Command, svc *crm.Service, path string) error {
	deals, err := svc.SearchDeals(cmd.Context(), crm.DealSearchOptions{PipelineID: dealsPipeline})
	if err != nil {
		return eris.Wrap(err, "search deals")
	}

	if err := writeLocalExport(path, deals); err != nil {
		return err
	}

	zap.L().Info("deals exported", zap.String("path", path), zap.Int("deals", len(deals)))
	return newPrinter(cmd.OutOrStdout()).Print(map[string]any{"path": path, "deals": len(deals)})
}

// writeLocalExport writes deals to path and reads the sheet back to
// confirm every deal landed in the workbook.
func writeLocalExport(path string, deals []model.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := report.WriteDealsXLSX(f, deals, nil); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}

	rows, err := report.ReadXLSX(path, report.DealsSheet)
	if err != nil {
		return eris.Wrapf(err, "verify %s", path)
	}
	if got := len(rows) - 1; got != len(deals) {
		return eris.Errorf("verify %s: wrote %d deals, read back %d", path, len(deals), got)
	}
	return nil
}

func init() {
	dealsSearchCmd.Flags().StringVar(&dealsPipeline, "pipeline", "", "limit to one pipeline id")
	dealsSearchCmd.Flags().IntVar(&dealsLimit, "limit", 100, "page size")
	dealsExportCmd.Flags().StringVar(&dealsExportLocal, "local", "", "write an XLSX file instead of using the HubSpot export API")
	dealsExportCmd.Flags().StringVar(&dealsPipeline, "pipeline", "", "limit a local export to one pipeline id")

	dealsCmd.AddCommand(dealsSearchCmd, dealsExportCmd)
	rootCmd.AddCommand(stagesCmd, pipelinesCmd, dealsCmd)
}
