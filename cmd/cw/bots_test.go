package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/db"
	"github.com/clawdeck/clawdeck/internal/models"
	"gorm.io/gorm"
)

func botsTestEnv(t *testing.T) (string, *gorm.DB) {
	t.Helper()
	dir := t.TempDir()
	configPath := writeConfig(t, dir)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return configPath, gormDB
}

func runCW(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestBotsAdd_SkipVerify(t *testing.T) {
	configPath, gormDB := botsTestEnv(t)

	out, err := runCW(t, "12345:secrettoken\n",
		"bots", "add", "--config", configPath,
		"--account", "acct-1", "--model", "gpt-5", "--skip-verify")
	if err != nil {
		t.Fatalf("bots add failed: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "Created bot") {
		t.Errorf("output = %q, want a created line", out)
	}

	var bot models.Bot
	if err := gormDB.First(&bot, "account_id = ?", "acct-1").Error; err != nil {
		t.Fatalf("load bot: %v", err)
	}
	if bot.BotToken != "12345:secrettoken" {
		t.Errorf("token = %q, want the piped token", bot.BotToken)
	}
	if bot.Status != models.StatusDeploying {
		t.Errorf("status = %q, want deploying", bot.Status)
	}
	if bot.ID == "" {
		t.Error("bot id should be generated")
	}
}

func TestBotsAdd_RequiresAccountAndModel(t *testing.T) {
	configPath, _ := botsTestEnv(t)

	if _, err := runCW(t, "", "bots", "add", "--config", configPath, "--model", "gpt-5"); err == nil {
		t.Error("expected error without --account")
	}
	if _, err := runCW(t, "", "bots", "add", "--config", configPath, "--account", "a"); err == nil {
		t.Error("expected error without --model")
	}
}

func TestBotsListAndRm(t *testing.T) {
	configPath, gormDB := botsTestEnv(t)
	bot := models.Bot{
		ID: "bot-list-1", AccountID: "acct-1", Handle: "demo_bot",
		BotToken: "12345:t", Platform: "telegram",
		SelectedModel: "claude-opus-4-20250514", Status: models.StatusRunning,
	}
	if err := gormDB.Create(&bot).Error; err != nil {
		t.Fatalf("seed bot: %v", err)
	}

	out, err := runCW(t, "", "bots", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("bots list failed: %v", err)
	}
	if !strings.Contains(out, "demo_bot") || !strings.Contains(out, "running") {
		t.Errorf("output = %q, want handle and status", out)
	}

	out, err = runCW(t, "", "bots", "rm", "bot-list-1", "--config", configPath)
	if err != nil {
		t.Fatalf("bots rm failed: %v (output %q)", err, out)
	}
	var count int64
	gormDB.Model(&models.Bot{}).Count(&count)
	if count != 0 {
		t.Errorf("bot count = %d after rm, want 0", count)
	}

	if _, err := runCW(t, "", "bots", "rm", "bot-list-1", "--config", configPath); err == nil {
		t.Error("expected error removing a missing bot")
	}
}
