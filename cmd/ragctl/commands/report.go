package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-assistant/internal/bootstrap"
)

func NewReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <primary|alternative>",
		Short: "Show the latest ingestion report of a corpus",
		Long: `Print the most recent ingestion report stored in Postgres for a corpus,
including every unit that was skipped and why. Requires POSTGRES_DSN.`,
		Example: `  ragctl report alternative`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return errors.New("report requires POSTGRES_DSN")
			}
			spec, err := cfg.CorpusByName(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := bootstrap.Wire(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Reports.LatestReport(ctx, spec.Source.Name)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, asJSON)
		},
	}
}
