package discord

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clawdeck/clawdeck/internal/transport"
)

// mockSession implements the session interface for tests.
type mockSession struct {
	mu       sync.Mutex
	opened   bool
	closed   bool
	sent     map[string][]string // channelID → contents
	handlers []interface{}
	sendErr  error
}

func newMockSession() *mockSession {
	return &mockSession{sent: make(map[string][]string)}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent[channelID] = append(m.sent[channelID], content)
	return &discordgo.Message{}, nil
}

func (m *mockSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return func() {}
}

// fireMessage invokes the registered MessageCreate handlers.
func (m *mockSession) fireMessage(mc *discordgo.MessageCreate) {
	m.mu.Lock()
	handlers := append([]interface{}(nil), m.handlers...)
	m.mu.Unlock()
	for _, h := range handlers {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.MessageCreate)); ok {
			fn(nil, mc)
		}
	}
}

func connectedAdapter(t *testing.T, sess *mockSession, channelID string) *Adapter {
	t.Helper()
	a, err := New(AdapterOpts{Session: sess, ChannelID: channelID})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return a
}

func TestNew_RequiresTokenOrSession(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error without token or session")
	}
}

func TestAdapter_InboundMessage(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess, "")
	inbound, err := a.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go sess.fireMessage(&discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "123",
			ChannelID: "chan-1",
			Content:   "hello bot",
			Author:    &discordgo.User{ID: "u1", Username: "alice"},
		},
	})

	select {
	case msg := <-inbound:
		if msg.Platform != "discord" || msg.ChatID != "chan-1" || msg.Text != "hello bot" {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message")
	}
}

func TestAdapter_FiltersBotsAndSelf(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess, "")
	a.mu.Lock()
	a.botUserID = "bot-id"
	a.mu.Unlock()
	inbound, _ := a.Listen(context.Background())

	sess.fireMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "1", ChannelID: "c", Content: "from myself",
		Author: &discordgo.User{ID: "bot-id"},
	}})
	sess.fireMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "2", ChannelID: "c", Content: "from another bot",
		Author: &discordgo.User{ID: "u2", Bot: true},
	}})
	sess.fireMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "3", ChannelID: "c", Author: &discordgo.User{ID: "u3"}, // no text
	}})

	select {
	case msg := <-inbound:
		t.Errorf("unexpected inbound message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAdapter_ChannelRestriction(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess, "allowed")
	inbound, _ := a.Listen(context.Background())

	sess.fireMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "1", ChannelID: "other", Content: "elsewhere",
		Author: &discordgo.User{ID: "u1"},
	}})
	go sess.fireMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "2", ChannelID: "allowed", Content: "here",
		Author: &discordgo.User{ID: "u1"},
	}})

	select {
	case msg := <-inbound:
		if msg.Text != "here" {
			t.Errorf("text = %q, want %q", msg.Text, "here")
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message")
	}
}

func TestAdapter_Send(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess, "")

	if err := a.Send(context.Background(), transport.OutboundMessage{ChatID: "chan-9", Text: "reply"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := sess.sent["chan-9"]; len(got) != 1 || got[0] != "reply" {
		t.Errorf("sent = %v", sess.sent)
	}
}

func TestAdapter_SendError(t *testing.T) {
	sess := newMockSession()
	sess.sendErr = fmt.Errorf("gateway unavailable")
	a := connectedAdapter(t, sess, "")

	if err := a.Send(context.Background(), transport.OutboundMessage{ChatID: "c", Text: "x"}); err == nil {
		t.Fatal("expected send error")
	}
}

func TestAdapter_MessageAfterCloseIsDropped(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess, "")
	inbound, err := a.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A handler invocation racing Close must not panic on the closed
	// inbound channel; the message is silently dropped.
	sess.fireMessage(&discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "456",
			ChannelID: "chan-1",
			Content:   "late message",
			Author:    &discordgo.User{ID: "u1", Username: "alice"},
		},
	})

	if _, ok := <-inbound; ok {
		t.Error("closed adapter should deliver nothing")
	}
}

func TestAdapter_Close(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess, "")
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
	// Idempotent.
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
