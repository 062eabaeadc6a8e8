package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var chatCfg config.Chat

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the chat tuning file",
		Flags:   chatCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			if chatCfg.ConfigPath() == "" {
				return goerr.Wrap(config.ErrMissingFlag, "chat-config is required",
					goerr.V(config.FlagKey, "chat-config"))
			}

			cfg, err := chatCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "configuration validation failed")
			}

			logger.Info("Configuration validation passed",
				"path", chatCfg.ConfigPath(),
				"context_window", cfg.ContextWindow,
				"threshold_fraction", cfg.ThresholdFraction,
				"history_budget_floor", cfg.HistoryBudget(0),
				"max_history_length", cfg.MaxHistoryLength,
				"completion_timeout", cfg.CompletionTimeout,
			)
			for _, tier := range []struct {
				name       string
				collection string
				limit      int
				threshold  float64
			}{
				{"past_qa", cfg.PastQA.Collection, cfg.PastQA.Limit, cfg.PastQA.Threshold},
				{"general", cfg.General.Collection, cfg.General.Limit, cfg.General.Threshold},
				{"historical", cfg.Historical.Collection, cfg.Historical.Limit, cfg.Historical.Threshold},
				{"cognitive", cfg.Cognitive.Collection, cfg.Cognitive.Limit, cfg.Cognitive.Threshold},
			} {
				logger.Info("Tier validated",
					"tier", tier.name,
					"collection", tier.collection,
					"limit", tier.limit,
					"threshold", tier.threshold,
				)
			}
			return nil
		},
	}
}
