package db

import (
	"testing"

	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/models"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver: "mysql",
		User:   "root",
		Host:   "127.0.0.1",
		Port:   3306,
		Name:   "clawdeck",
	}
	want := "root@tcp(127.0.0.1:3306)/clawdeck?parseTime=true"
	if got := DSN(cfg); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}

	cfg.Password = "secret"
	want = "root:secret@tcp(127.0.0.1:3306)/clawdeck?parseTime=true"
	if got := DSN(cfg); got != want {
		t.Errorf("DSN with password = %q, want %q", got, want)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestAutoMigrate_SQLiteMemory(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}

	// Round-trip a bot and a usage row through the migrated schema.
	bot := models.Bot{
		ID:        "bot-1",
		AccountID: "acct-1",
		BotToken:  "123:ABC",
		Status:    models.StatusRunning,
	}
	if err := gdb.Create(&bot).Error; err != nil {
		t.Fatalf("create bot: %v", err)
	}
	usage := models.APIUsage{
		BotID:        "bot-1",
		Model:        "gpt-5",
		Provider:     models.ProviderOpenAI,
		InputTokens:  10,
		OutputTokens: 20,
		TotalTokens:  30,
	}
	if err := gdb.Create(&usage).Error; err != nil {
		t.Fatalf("create usage: %v", err)
	}

	var got models.Bot
	if err := gdb.First(&got, "id = ?", "bot-1").Error; err != nil {
		t.Fatalf("load bot: %v", err)
	}
	if got.Status != models.StatusRunning {
		t.Errorf("status = %q, want running", got.Status)
	}
}
