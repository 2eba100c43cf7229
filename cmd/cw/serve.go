package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/db"
	"github.com/clawdeck/clawdeck/internal/provider"
	"github.com/clawdeck/clawdeck/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook-mode control plane",
		Long: "Serves the webhook ingress, usage ingestion, and bot management API. " +
			"Requires a database; run 'cw db init' first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "clawdeck.yaml", "path to Clawdeck config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	digest := ""
	if cfg.Digest.Enabled {
		digest = cfg.Digest.Cron
	}

	srv, err := server.New(server.Opts{
		DB:   gormDB,
		Port: cfg.Port,
		Credentials: provider.Credentials{
			Anthropic: cfg.Providers.AnthropicKey,
			OpenAI:    cfg.Providers.OpenAIKey,
			Google:    cfg.Providers.GoogleKey,
		},
		DigestSpec: digest,
		PublicURL:  cfg.PublicURL,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return srv.Start(ctx)
}
