package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
	"github.com/open-builders/giveaway-bot/internal/common/logger"
	"github.com/open-builders/giveaway-bot/internal/http/middleware"
)

// KeepAliveBody is served on GET / for uptime pingers.
const KeepAliveBody = "Bot is running!"

const maxWebhookBody = 1 << 20

// WebhookHandler consumes payment provider notifications. It gets the
// request headers so it can verify the delivery's signature.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, headers nethttp.Header, payload []byte) error
}

// Options configures the router.
type Options struct {
	Debug          bool
	AllowedOrigins string // comma separated, "*" for any
	Metrics        nethttp.Handler
	// Webhook is nil when subscriptions are disabled.
	Webhook WebhookHandler
	// Stats reports registry counts for /health.
	Stats func() (total, active int)
}

// NewRouter builds the gin engine with the keep-alive, health, metrics and
// webhook routes.
func NewRouter(opts Options) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	origins := splitOrigins(opts.AllowedOrigins)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/", func(c *gin.Context) {
		c.String(nethttp.StatusOK, KeepAliveBody)
	})

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "time": time.Now().UTC()}
		if opts.Stats != nil {
			total, active := opts.Stats()
			body["giveaways"] = gin.H{"total": total, "active": active}
		}
		c.JSON(nethttp.StatusOK, body)
	})

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	if opts.Webhook != nil {
		router.POST("/webhooks/paypal", webhookHandler(opts.Webhook))
	}

	return router
}

func webhookHandler(h WebhookHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			middleware.AbortWithError(c, apperrors.NewValidationError("body", "unreadable"))
			return
		}
		if err := h.HandleWebhook(c.Request.Context(), c.Request.Header, payload); err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Server runs the router until Shutdown.
type Server struct {
	srv *nethttp.Server
}

func NewServer(addr string, handler nethttp.Handler) *Server {
	return &Server{srv: &nethttp.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
}

// Start listens in the background. Listen errors are sent on the returned
// channel; a clean shutdown closes it.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		logger.Info().Str("addr", s.srv.Addr).Msg("Starting HTTP server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
