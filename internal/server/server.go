// Package server implements the webhook-mode control plane: the HTTP
// surface that receives Telegram webhook deliveries, ingests usage
// events from detached relay processes, and manages bot records.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/clawdeck/clawdeck/internal/provider"
	"github.com/clawdeck/clawdeck/internal/usage"
)

// Deployer propagates a bot's configuration change to its hosted relay
// process. Propagation is best-effort: a failure is logged and the
// database stays authoritative.
type Deployer interface {
	PropagateModel(ctx context.Context, botID, model string) error
}

// Opts holds configuration for the control-plane server.
type Opts struct {
	DB          *gorm.DB
	Port        int
	Credentials provider.Credentials
	Deployer    Deployer // optional
	DigestSpec  string   // cron expression for the daily usage digest; "" disables
	PublicURL   string   // externally reachable base URL; "" skips webhook registration
	Out         io.Writer

	// TelegramBaseURL and HTTPClient override the Telegram Bot API
	// endpoint. Used by tests.
	TelegramBaseURL string
	HTTPClient      *http.Client

	// Router overrides the provider router built from Credentials.
	// Used by tests to inject fakes.
	Router *provider.Router
}

// Server is the control-plane HTTP server.
type Server struct {
	db       *gorm.DB
	port     int
	router   *provider.Router
	recorder *usage.DBRecorder
	deployer Deployer
	digest   string
	public   string
	out      io.Writer
	metrics  *metrics
	engine   *gin.Engine

	tgBaseURL string
	tgClient  *http.Client
}

// New creates a Server. The provider router and usage recorder are built
// once and shared across requests.
func New(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	recorder, err := usage.NewDBRecorder(opts.DB)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	router := opts.Router
	if router == nil {
		router = provider.NewRouter(provider.RouterOpts{Credentials: opts.Credentials})
	}
	s := &Server{
		db:        opts.DB,
		port:      opts.Port,
		router:    router,
		recorder:  recorder,
		deployer:  opts.Deployer,
		digest:    opts.DigestSpec,
		public:    opts.PublicURL,
		out:       out,
		metrics:   newMetrics(),
		tgBaseURL: opts.TelegramBaseURL,
		tgClient:  opts.HTTPClient,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.registerRoutes(engine)
	s.engine = engine
	return s, nil
}

// Handler exposes the HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start launches the server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.public != "" {
		s.registerWebhooks(ctx)
	}

	var c *cron.Cron
	if s.digest != "" {
		c = cron.New()
		if _, err := c.AddFunc(s.digest, s.runDigest); err != nil {
			return fmt.Errorf("server: digest schedule %q: %w", s.digest, err)
		}
		c.Start()
		defer c.Stop()
		fmt.Fprintf(s.out, "server: usage digest scheduled (%s)\n", s.digest)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(s.out, "server: control plane listening on :%d\n", s.port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
