package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/clawdeck/clawdeck/internal/transport"
)

const (
	// pollTimeoutSec is the server-side long-poll wait for getUpdates.
	pollTimeoutSec = 30
	// pollErrorBackoff is the pause after a failed getUpdates call.
	pollErrorBackoff = 3 * time.Second
)

// Adapter implements transport.Adapter for Telegram via getUpdates long
// polling.
type Adapter struct {
	client *Client

	mu         sync.Mutex
	connected  bool
	closed     bool
	botUserID  string
	botHandle  string
	inbound    chan transport.InboundMessage
	cancelFunc context.CancelFunc
}

// AdapterOpts holds parameters for creating a Telegram Adapter.
type AdapterOpts struct {
	Token   string
	BaseURL string // for testing; defaults to the public API
}

// New creates a Telegram Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	client, err := NewClient(ClientOpts{Token: opts.Token, BaseURL: opts.BaseURL})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client:  client,
		inbound: make(chan transport.InboundMessage, 100),
	}, nil
}

// Connect verifies the bot token via getMe and records the bot identity.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}

	info, err := a.client.GetMe(ctx)
	if err != nil {
		return err
	}
	a.botUserID = strconv.FormatInt(info.ID, 10)
	a.botHandle = info.Username
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

// Listen starts the long-poll loop in a background goroutine and returns
// the inbound channel. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan transport.InboundMessage, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("telegram: not connected")
	}
	listenCtx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel
	a.mu.Unlock()

	go a.pollLoop(listenCtx)
	return a.inbound, nil
}

// pollLoop pumps getUpdates batches to the inbound channel until the
// context is cancelled. Poll errors are logged and retried after a pause;
// a broken connection never terminates the process.
func (a *Adapter) pollLoop(ctx context.Context) {
	defer close(a.inbound)

	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := a.client.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("telegram: poll: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollErrorBackoff):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			msg, ok := inboundFromUpdate(u)
			if !ok {
				// Non-text update: acknowledge (offset advanced) and drop.
				continue
			}
			select {
			case <-ctx.Done():
				return
			case a.inbound <- msg:
			}
		}
	}
}

// inboundFromUpdate converts a text-message update to the transport shape.
// ok is false for any update that does not carry a text message.
func inboundFromUpdate(u Update) (transport.InboundMessage, bool) {
	if u.Kind() != UpdateTextMessage {
		return transport.InboundMessage{}, false
	}
	msg := transport.InboundMessage{
		Platform:  "telegram",
		ChatID:    strconv.FormatInt(u.Message.Chat.ID, 10),
		Text:      u.Message.Text,
		Timestamp: time.Unix(u.Message.Date, 0),
	}
	if u.Message.From != nil {
		msg.UserID = strconv.FormatInt(u.Message.From.ID, 10)
		msg.UserName = u.Message.From.Username
		if msg.UserName == "" {
			msg.UserName = u.Message.From.FirstName
		}
	}
	return msg, true
}

// Send delivers reply text to a chat.
func (a *Adapter) Send(ctx context.Context, msg transport.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("telegram: not connected")
	}
	a.mu.Unlock()
	return a.client.SendMessage(ctx, msg.ChatID, msg.Text)
}

// Close stops the poll loop.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	return nil
}
