package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/clawdeck/clawdeck/internal/transport"
)

// heartbeatInterval is how often the daemon logs a liveness line.
const heartbeatInterval = 60 * time.Second

// Daemon is the poll-mode relay process. It serves a liveness endpoint,
// connects a transport adapter, and pumps inbound messages through the
// Handler. The process as a whole is the deployable unit: the liveness
// endpoint starts before any transport connection is attempted and keeps
// serving even when the bot cannot connect, so hosting health checks
// never depend on bot connectivity.
type Daemon struct {
	adapter transport.Adapter
	handler *Handler
	port    int
	out     io.Writer

	wg sync.WaitGroup // in-flight message handlers
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Adapter transport.Adapter // optional; nil runs liveness-only
	Handler *Handler          // required when Adapter is set
	Port    int               // liveness port; 0 binds an ephemeral port
	Out     io.Writer         // defaults to os.Stdout
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter != nil && opts.Handler == nil {
		return nil, fmt.Errorf("relay: handler is required")
	}
	port := opts.Port
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		adapter: opts.Adapter,
		handler: opts.Handler,
		port:    port,
		out:     out,
	}, nil
}

// Run starts the daemon and blocks until ctx is cancelled. The liveness
// server always comes up first; a transport that fails to connect
// degrades the process to liveness-only mode instead of exiting.
func (d *Daemon) Run(ctx context.Context) error {
	srv, err := d.startLiveness(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if d.adapter == nil {
		fmt.Fprintf(d.out, "relay: no bot token configured, liveness-only mode\n")
		<-ctx.Done()
		return nil
	}

	fmt.Fprintf(d.out, "relay: connecting transport...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		log.Printf("relay: transport connect: %v", err)
		fmt.Fprintf(d.out, "relay: transport unavailable, liveness-only mode\n")
		<-ctx.Done()
		return nil
	}

	if bi, ok := d.adapter.(transport.BotIdentifier); ok {
		fmt.Fprintf(d.out, "relay: connected as @%s\n", bi.BotHandle())
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		log.Printf("relay: transport listen: %v", err)
		fmt.Fprintf(d.out, "relay: transport unavailable, liveness-only mode\n")
		<-ctx.Done()
		return nil
	}

	go d.heartbeat(ctx)

	fmt.Fprintf(d.out, "relay: online, listening for messages\n")
	for {
		select {
		case <-ctx.Done():
			return d.shutdown()
		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "relay: inbound channel closed\n")
				return d.shutdown()
			}
			// Each message is an independent task; ordering across chats
			// is not guaranteed.
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.handleMessage(ctx, msg)
			}()
		}
	}
}

// startLiveness binds the health endpoint on 0.0.0.0. Any method on any
// path answers 200 "OK".
func (d *Daemon) startLiveness(ctx context.Context) (*http.Server, error) {
	srv := &http.Server{
		Addr: fmt.Sprintf("0.0.0.0:%d", d.port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "OK")
		}),
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	// Give the listener a moment to fail fast on a bad port.
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("relay: liveness server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}
	fmt.Fprintf(d.out, "relay: liveness endpoint on 0.0.0.0:%d\n", d.port)
	return srv, nil
}

// handleMessage runs one relay cycle. A panic anywhere in the cycle is
// recovered and logged so a single malformed update cannot take down a
// long-running relay serving many chats.
func (d *Daemon) handleMessage(ctx context.Context, msg transport.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("relay: recovered handling message from chat %s: %v", msg.ChatID, r)
		}
	}()

	fmt.Fprintf(d.out, "relay: recv [chat=%s user=%s] %q\n", msg.ChatID, msg.UserName, truncate(msg.Text, 80))

	replyText := d.handler.Handle(ctx, msg.Text)

	if err := d.adapter.Send(ctx, transport.OutboundMessage{
		ChatID: msg.ChatID,
		Text:   replyText,
	}); err != nil {
		// No retry: log and move on.
		log.Printf("relay: send reply to chat %s: %v", msg.ChatID, err)
		return
	}
	fmt.Fprintf(d.out, "relay: sent reply to chat %s\n", msg.ChatID)
}

// heartbeat logs a periodic liveness line, mirroring what hosting
// dashboards expect from a healthy long-running relay.
func (d *Daemon) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(d.out, "relay: running, polling for messages\n")
		}
	}
}

// shutdown waits for in-flight messages, then closes the adapter.
func (d *Daemon) shutdown() error {
	fmt.Fprintf(d.out, "relay: shutting down...\n")
	d.wg.Wait()
	if err := d.adapter.Close(); err != nil {
		log.Printf("relay: close adapter: %v", err)
	}
	fmt.Fprintf(d.out, "relay: stopped\n")
	return nil
}

// truncate returns s cut to maxLen characters with "..." appended if
// needed. It cuts on rune boundaries so multi-byte text stays valid UTF-8.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
