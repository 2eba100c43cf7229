// Package discord implements the transport Adapter for Discord using the
// Gateway WebSocket. It is the secondary relay transport; a bot selects it
// with platform "discord".
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/clawdeck/clawdeck/internal/transport"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Adapter implements transport.Adapter for Discord via the Gateway WebSocket.
type Adapter struct {
	sess          session
	botToken      string
	channelID     string // optional restriction to a single channel
	mu            sync.Mutex
	connected     bool
	closed        bool
	botUserID     string
	botHandle     string
	inbound       chan transport.InboundMessage
	removeHandler func()
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // optional: only relay messages from this channel
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	a := &Adapter{
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
		inbound:   make(chan transport.InboundMessage, 100),
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	// Capture bot identity on connect/reconnect.
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.botHandle = r.User.Username
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// BotUserID implements transport.BotIdentifier.
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// BotHandle implements transport.BotIdentifier.
func (a *Adapter) BotHandle() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botHandle
}

// Listen registers the message handler and returns the inbound channel.
// Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan transport.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}
	a.removeHandler = a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})
	return a.inbound, nil
}

// handleMessage converts a Discord message event to an InboundMessage.
// Self-messages, other bots, empty content and (when a channel restriction
// is configured) foreign channels are dropped silently.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}

	// The send stays under the mutex: Close closes a.inbound while
	// holding it, so a racing message cannot hit a closed channel.
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || m.Author.ID == a.botUserID {
		return
	}
	if a.channelID != "" && m.ChannelID != a.channelID {
		return
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)
	select {
	case a.inbound <- transport.InboundMessage{
		Platform:  "discord",
		ChatID:    m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Text:      m.Content,
		Timestamp: ts,
	}:
	default:
		log.Printf("discord: inbound buffer full, dropping message from %s", m.Author.Username)
	}
}

// Send delivers reply text to a Discord channel.
func (a *Adapter) Send(ctx context.Context, msg transport.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	channelID := msg.ChatID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("discord: no channel specified")
	}
	if _, err := a.sess.ChannelMessageSend(channelID, msg.Text); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close gracefully shuts down the adapter connection. The gateway close
// happens outside the mutex: in-flight handlers take the same lock and
// must be free to finish.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.connected = false
	if a.removeHandler != nil {
		a.removeHandler()
	}
	close(a.inbound)
	sess := a.sess
	a.mu.Unlock()

	if sess != nil {
		return sess.Close()
	}
	return nil
}
