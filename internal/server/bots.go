package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clawdeck/clawdeck/internal/models"
	"github.com/clawdeck/clawdeck/internal/transport/telegram"
)

// accountHeader scopes bot management requests to one account. There is
// no session layer here: the platform frontend authenticates the user
// and forwards the resolved account id.
const accountHeader = "X-Account-ID"

// accountID extracts the caller's account, answering 401 when absent.
func accountID(c *gin.Context) (string, bool) {
	id := c.GetHeader(accountHeader)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing account id"})
		return "", false
	}
	return id, true
}

// ownedBot loads a bot and enforces that it belongs to the caller's
// account. Responds 404 or 403 on failure.
func (s *Server) ownedBot(c *gin.Context, account, botID string) (*models.Bot, bool) {
	var bot models.Bot
	if err := s.db.First(&bot, "id = ?", botID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	if bot.AccountID != account {
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not own this bot"})
		return nil, false
	}
	return &bot, true
}

// handleBotList returns the caller's bots, newest first.
func (s *Server) handleBotList(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	var bots []models.Bot
	if err := s.db.Where("account_id = ?", account).Order("created_at desc").Find(&bots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bots", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bots": bots})
}

type createBotPayload struct {
	BotToken      string `json:"botToken"`
	SelectedModel string `json:"selectedModel"`
	Platform      string `json:"platform"`
}

// handleBotCreate registers a new bot. The token is verified against
// the Bot API before anything is stored, and the bot handle comes from
// the verified identity, never from the caller.
func (s *Server) handleBotCreate(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	var p createBotPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.BotToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bot token is required"})
		return
	}
	if p.SelectedModel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}
	platform := p.Platform
	if platform == "" {
		platform = "telegram"
	}

	handle := ""
	if platform == "telegram" {
		info, err := s.verifyToken(c.Request.Context(), p.BotToken)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
			return
		}
		handle = info.Username
	}

	now := time.Now()
	bot := models.Bot{
		ID:            uuid.NewString(),
		AccountID:     account,
		Handle:        handle,
		BotToken:      p.BotToken,
		Platform:      platform,
		SelectedModel: p.SelectedModel,
		Status:        models.StatusDeploying,
		DeployedAt:    &now,
	}
	if err := s.db.Create(&bot).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bot", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bot": bot})
}

type updateStatusPayload struct {
	Status string `json:"status"`
}

// handleBotUpdateStatus moves a bot through its lifecycle. Only legal
// transitions are accepted.
func (s *Server) handleBotUpdateStatus(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	var p updateStatusPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidStatus(p.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + p.Status})
		return
	}

	bot, ok := s.ownedBot(c, account, c.Param("id"))
	if !ok {
		return
	}
	if !bot.CanTransition(p.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot transition from " + bot.Status + " to " + p.Status})
		return
	}

	bot.Status = p.Status
	if err := s.db.Model(bot).Update("status", p.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update bot", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bot": bot})
}

// handleBotDelete removes a bot row. Usage rows stay: they are history,
// keyed by the bot's id.
func (s *Server) handleBotDelete(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	bot, ok := s.ownedBot(c, account, c.Param("id"))
	if !ok {
		return
	}
	if err := s.db.Delete(bot).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete bot", "details": err.Error()})
		return
	}

	// Best-effort webhook teardown so Telegram stops delivering.
	if bot.Platform == "telegram" {
		if client, err := s.telegramClient(bot.BotToken); err == nil {
			if err := client.DeleteWebhook(c.Request.Context()); err != nil {
				log.Printf("server: delete webhook for bot %s: %v", bot.ID, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "bot deleted"})
}

type updateModelPayload struct {
	SelectedModel string `json:"selectedModel"`
}

// handleBotUpdateModel changes the bot's model. The database write is
// authoritative; propagation to a hosted relay is best-effort and a
// propagation failure never fails the request.
func (s *Server) handleBotUpdateModel(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	var p updateModelPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.SelectedModel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}

	bot, ok := s.ownedBot(c, account, c.Param("id"))
	if !ok {
		return
	}

	bot.SelectedModel = p.SelectedModel
	if err := s.db.Model(bot).Update("selected_model", p.SelectedModel).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update model", "details": err.Error()})
		return
	}

	if s.deployer != nil {
		if err := s.deployer.PropagateModel(c.Request.Context(), bot.ID, p.SelectedModel); err != nil {
			log.Printf("server: propagate model for bot %s: %v", bot.ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bot":     bot,
		"message": "Model updated successfully. Bot will use new model for future messages.",
	})
}

type verifyPayload struct {
	Token string `json:"token"`
}

// verifyToken checks a Telegram bot token against getMe.
func (s *Server) verifyToken(ctx context.Context, token string) (telegram.BotInfo, error) {
	client, err := s.telegramClient(token)
	if err != nil {
		return telegram.BotInfo{}, err
	}
	return client.GetMe(ctx)
}

// handleTelegramVerify validates a bot token with the Bot API and
// returns the bot identity without storing anything.
func (s *Server) handleTelegramVerify(c *gin.Context) {
	var p verifyPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bot token is required"})
		return
	}
	info, err := s.verifyToken(c.Request.Context(), p.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "botInfo": info})
}
