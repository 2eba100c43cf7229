package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/db"
	"github.com/clawdeck/clawdeck/internal/models"
	"github.com/clawdeck/clawdeck/internal/transport/telegram"
)

func newBotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bots",
		Short: "Manage bot records",
	}

	cmd.AddCommand(newBotsAddCmd())
	cmd.AddCommand(newBotsListCmd())
	cmd.AddCommand(newBotsRmCmd())
	return cmd
}

func newBotsAddCmd() *cobra.Command {
	var (
		configPath string
		account    string
		model      string
		platform   string
		skipVerify bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new bot",
		Long:  "Prompts for the bot token, verifies it with the platform, and stores the bot record.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBotsAdd(cmd, configPath, account, model, platform, skipVerify)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "clawdeck.yaml", "path to Clawdeck config file")
	cmd.Flags().StringVar(&account, "account", "", "owning account id (required)")
	cmd.Flags().StringVar(&model, "model", "", "selected model identifier (required)")
	cmd.Flags().StringVar(&platform, "platform", "telegram", "chat platform (telegram or discord)")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "store the token without checking it against the platform")
	return cmd
}

// readToken prompts for the bot token. Input is hidden when stdin is a
// terminal; piped input reads one line.
func readToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	fmt.Fprint(cmd.OutOrStdout(), "Bot token: ")
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runBotsAdd(cmd *cobra.Command, configPath, account, model, platform string, skipVerify bool) error {
	out := cmd.OutOrStdout()
	if account == "" {
		return fmt.Errorf("--account is required")
	}
	if model == "" {
		return fmt.Errorf("--model is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	token, err := readToken(cmd)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("bot token is required")
	}

	handle := ""
	if platform == "telegram" && !skipVerify {
		if !telegram.ValidToken(token) {
			return fmt.Errorf("token does not look like a BotFather token")
		}
		client, err := telegram.NewClient(telegram.ClientOpts{Token: token})
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		info, err := client.GetMe(ctx)
		if err != nil {
			return fmt.Errorf("verify token: %w", err)
		}
		handle = info.Username
		fmt.Fprintf(out, "Verified bot @%s\n", handle)
	}

	now := time.Now()
	bot := models.Bot{
		ID:            uuid.NewString(),
		AccountID:     account,
		Handle:        handle,
		BotToken:      token,
		Platform:      platform,
		SelectedModel: model,
		Status:        models.StatusDeploying,
		DeployedAt:    &now,
	}
	if err := gormDB.Create(&bot).Error; err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	fmt.Fprintf(out, "Created bot %s (%s, model %s)\n", bot.ID, bot.Platform, bot.SelectedModel)
	return nil
}

func newBotsListCmd() *cobra.Command {
	var (
		configPath string
		account    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bot records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBotsList(cmd, configPath, account)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "clawdeck.yaml", "path to Clawdeck config file")
	cmd.Flags().StringVar(&account, "account", "", "filter by owning account id")
	return cmd
}

func runBotsList(cmd *cobra.Command, configPath, account string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	query := gormDB.Order("created_at desc")
	if account != "" {
		query = query.Where("account_id = ?", account)
	}
	var bots []models.Bot
	if err := query.Find(&bots).Error; err != nil {
		return fmt.Errorf("list bots: %w", err)
	}

	if len(bots) == 0 {
		fmt.Fprintln(out, "No bots.")
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-20s  %-10s  %-28s  %s\n", "ID", "HANDLE", "STATUS", "MODEL", "ACCOUNT")
	for _, b := range bots {
		handle := b.Handle
		if handle == "" {
			handle = "-"
		}
		fmt.Fprintf(out, "%-36s  %-20s  %-10s  %-28s  %s\n", b.ID, handle, b.Status, b.SelectedModel, b.AccountID)
	}
	return nil
}

func newBotsRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm <bot-id>",
		Short: "Delete a bot record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBotsRm(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "clawdeck.yaml", "path to Clawdeck config file")
	return cmd
}

func runBotsRm(cmd *cobra.Command, configPath, botID string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	result := gormDB.Delete(&models.Bot{}, "id = ?", botID)
	if result.Error != nil {
		return fmt.Errorf("delete bot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bot %s not found", botID)
	}
	fmt.Fprintf(out, "Deleted bot %s\n", botID)
	return nil
}
