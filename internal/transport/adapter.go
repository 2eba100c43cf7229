// Package transport bridges the relay core to chat platforms (Telegram, Discord).
package transport

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and message
// sending/receiving for a single chat platform, authenticated with the
// bot's own token so replies originate from the correct bot identity.
type Adapter interface {
	// Connect establishes a connection to the chat platform and verifies
	// the bot credentials.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers a reply to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage is one text-bearing chat message received from the
// platform. It exists only for the duration of one relay cycle and is
// never persisted.
type InboundMessage struct {
	Platform  string    // e.g. "telegram", "discord"
	ChatID    string    // platform-specific chat/channel identifier
	UserID    string    // platform-specific sender identifier
	UserName  string    // human-readable sender name
	Text      string    // raw message text
	Timestamp time.Time // when the message was sent
}

// OutboundMessage is a reply to be sent to the chat platform.
type OutboundMessage struct {
	ChatID string // target chat/channel
	Text   string // plain reply text
}

// BotIdentifier is an optional interface that adapters can implement to
// expose the bot's own identity after Connect. This enables self-message
// filtering and handle display.
type BotIdentifier interface {
	BotUserID() string
	BotHandle() string
}
