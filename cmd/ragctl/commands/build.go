package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-assistant/internal/bootstrap"
	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

func NewBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [primary|alternative|all]",
		Short: "Ingest a corpus and (re)build its index",
		Long: `Run ingestion for the named corpus and write its index, replacing any
existing index at the configured path. Skipped units are listed in the report;
the build only fails when no document could be produced.`,
		Example: `  ragctl build all
  ragctl build alternative --json`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"primary", "alternative", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			specs, err := corporaFor(target, cfg.PrimaryCorpus(), cfg.AlternativeCorpus())
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

			return buildCorpora(ctx, app.Manager, specs, cmd.OutOrStdout())
		},
	}
}

// buildCorpora builds the corpora in order and stops at the first failure.
func buildCorpora(ctx context.Context, builder ports.CorpusBuilder, specs []domain.CorpusSpec, w io.Writer) error {
	for _, spec := range specs {
		report, err := builder.Build(ctx, spec)
		if err != nil {
			return fmt.Errorf("build %s: %w", spec.Source.Name, err)
		}
		if err := writeReport(w, report, asJSON); err != nil {
			return err
		}
	}
	return nil
}

func corporaFor(target string, primary, alternative domain.CorpusSpec) ([]domain.CorpusSpec, error) {
	switch target {
	case "all":
		return []domain.CorpusSpec{primary, alternative}, nil
	case "primary", primary.Source.Name:
		return []domain.CorpusSpec{primary}, nil
	case "alternative", alternative.Source.Name:
		return []domain.CorpusSpec{alternative}, nil
	default:
		return nil, fmt.Errorf("unknown corpus %q (want primary, alternative or all)", target)
	}
}
