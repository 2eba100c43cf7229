package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clawdeck/clawdeck/internal/models"
	"github.com/clawdeck/clawdeck/internal/relay"
	"github.com/clawdeck/clawdeck/internal/transport/telegram"
)

// telegramClient builds a Bot API client for one bot's token.
func (s *Server) telegramClient(token string) (*telegram.Client, error) {
	return telegram.NewClient(telegram.ClientOpts{
		Token:   token,
		BaseURL: s.tgBaseURL,
		Client:  s.tgClient,
	})
}

// registerWebhooks points every running Telegram bot's webhook at this
// control plane. Best-effort: a bot whose token has gone bad stays
// registered nowhere and is logged, not failed.
func (s *Server) registerWebhooks(ctx context.Context) {
	var bots []models.Bot
	if err := s.db.Where("platform = ? AND status = ?", "telegram", models.StatusRunning).Find(&bots).Error; err != nil {
		log.Printf("server: list bots for webhook registration: %v", err)
		return
	}
	for _, bot := range bots {
		client, err := s.telegramClient(bot.BotToken)
		if err != nil {
			log.Printf("server: webhook registration for bot %s: %v", bot.ID, err)
			continue
		}
		url := strings.TrimRight(s.public, "/") + "/webhook/" + bot.ID
		if err := client.SetWebhook(ctx, url); err != nil {
			log.Printf("server: set webhook for bot %s: %v", bot.ID, err)
			continue
		}
		fmt.Fprintf(s.out, "server: webhook registered for bot %s\n", bot.ID)
	}
}

// handleWebhook processes one Telegram webhook delivery. Deliveries are
// not deduplicated: Telegram retries until it sees a 2xx, and a retried
// delivery produces a second reply and a second usage row.
func (s *Server) handleWebhook(c *gin.Context) {
	botID := c.Param("botID")

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		s.metrics.webhookDeliveries.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var bot models.Bot
	if err := s.db.First(&bot, "id = ?", botID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.webhookDeliveries.WithLabelValues("unknown_bot").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
			return
		}
		s.metrics.webhookDeliveries.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// A paused, deploying, or errored bot acknowledges the delivery so
	// Telegram stops retrying, but processes nothing.
	if !bot.IsRunning() {
		log.Printf("server: webhook for bot %s ignored, status %s", bot.ID, bot.Status)
		s.metrics.webhookDeliveries.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if update.Kind() != telegram.UpdateTextMessage {
		s.metrics.webhookDeliveries.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	handler, err := relay.NewHandler(relay.HandlerOpts{
		Router:   s.router,
		Recorder: s.recorder,
		Model:    relay.StaticModel(bot.SelectedModel),
		BotID:    bot.ID,
	})
	if err != nil {
		s.metrics.webhookDeliveries.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	replyText := handler.Handle(c.Request.Context(), update.Message.Text)

	client, err := s.telegramClient(bot.BotToken)
	if err != nil {
		s.metrics.webhookDeliveries.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	if err := client.SendMessage(c.Request.Context(), chatID, replyText); err != nil {
		log.Printf("server: send reply for bot %s: %v", bot.ID, err)
		s.metrics.webhookDeliveries.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.metrics.webhookDeliveries.WithLabelValues("relayed").Inc()
	s.metrics.messagesRelayed.Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
