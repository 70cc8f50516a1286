package commands

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-assistant/internal/bootstrap"
	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/queue/nats"
)

func NewAskCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Long: `Answer one question with the primary/alternative routing. By default the
indexes are loaded (or built) in-process; with --remote the question is sent
to the NATS workers instead.`,
		Example: `  ragctl ask "When does the winter semester start?"
  ragctl ask --remote "Wo ist die Bibliothek?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question must not be empty")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var response domain.AskResponse
			if remote {
				if cfg.NATSURL == "" {
					return errors.New("--remote requires NATS_URL")
				}
				queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
					AskSubject: cfg.NATSAskSubject,
					AskTimeout: cfg.NATSAskTimeout,
				})
				if err != nil {
					return err
				}
				defer queue.Close()

				response, err = queue.Ask(ctx, domain.AskRequest{Question: question})
				if err != nil {
					return err
				}
			} else {
				app, err := bootstrap.New(ctx, cfg, nil)
				if err != nil {
					return err
				}
				defer app.Close()

				result, err := app.Manager.Run(ctx, question, nil)
				if err != nil {
					return err
				}
				response = domain.NewAskResponse(result)
			}
			return writeAnswer(cmd.OutOrStdout(), response, asJSON)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "send the question to the NATS workers")
	return cmd
}
