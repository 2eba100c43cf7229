package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/db"
	"github.com/clawdeck/clawdeck/internal/provider"
	"github.com/clawdeck/clawdeck/internal/relay"
	"github.com/clawdeck/clawdeck/internal/transport"
	"github.com/clawdeck/clawdeck/internal/transport/discord"
	"github.com/clawdeck/clawdeck/internal/transport/telegram"
	"github.com/clawdeck/clawdeck/internal/usage"
)

func newRelayCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the poll-mode relay daemon",
		Long: "Connects the configured bot token to its chat platform, long-polls for " +
			"messages, and answers them with the selected model. Runs detached from the " +
			"control plane; usage reports post back over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "clawdeck.yaml", "path to Clawdeck config file")
	return cmd
}

// createAdapter builds the transport for the configured platform. A
// missing bot token is not an error: the daemon runs liveness-only.
func createAdapter(cfg *config.Config) (transport.Adapter, error) {
	switch cfg.Platform {
	case "", "telegram":
		if cfg.BotToken == "" {
			return nil, nil
		}
		return telegram.New(telegram.AdapterOpts{Token: cfg.BotToken})
	case "discord":
		if cfg.Discord.BotToken == "" {
			return nil, nil
		}
		return discord.New(discord.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
	default:
		return nil, fmt.Errorf("unknown platform %q (want telegram or discord)", cfg.Platform)
	}
}

func runRelay(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	creds := provider.Credentials{
		Anthropic: cfg.Providers.AnthropicKey,
		OpenAI:    cfg.Providers.OpenAIKey,
		Google:    cfg.Providers.GoogleKey,
	}
	router := provider.NewRouter(provider.RouterOpts{Credentials: creds})

	// Usage reporting prefers the control plane's ingestion endpoint; a
	// relay co-located with the database writes rows directly. Neither
	// configured means usage simply is not recorded.
	var recorder usage.Recorder
	model := relay.ModelSource(relay.StaticModel(cfg.SelectedModel))
	if cfg.PlatformURL != "" {
		httpRec, err := usage.NewHTTPRecorder(cfg.PlatformURL, nil)
		if err != nil {
			return err
		}
		async := usage.NewAsyncRecorder(httpRec)
		defer async.Close()
		recorder = async
	} else if cfg.Database.Driver != "" {
		gormDB, err := db.Connect(cfg.Database)
		if err != nil {
			log.Printf("relay: database unavailable, usage recording disabled: %v", err)
		} else {
			dbRec, err := usage.NewDBRecorder(gormDB)
			if err != nil {
				return err
			}
			recorder = dbRec
			if cfg.BotID != "" {
				model = relay.NewDBModelSource(gormDB, cfg.BotID, cfg.SelectedModel)
			}
		}
	}

	var handler *relay.Handler
	if adapter != nil {
		handler, err = relay.NewHandler(relay.HandlerOpts{
			Router:   router,
			Recorder: recorder,
			Model:    model,
			BotID:    cfg.BotID,
		})
		if err != nil {
			return err
		}
	}

	daemon, err := relay.NewDaemon(relay.DaemonOpts{
		Adapter: adapter,
		Handler: handler,
		Port:    cfg.Port,
		Out:     out,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return daemon.Run(ctx)
}
