package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/semchie/sahajjo-messenger-bot/metrics"
	"github.com/semchie/sahajjo-messenger-bot/middleware"
)

// RouterDeps wires NewRouter. Dashboard is mounted only when both it and
// APIKey are set.
type RouterDeps struct {
	Webhook   *WebhookHandler
	Metrics   *metrics.Collector
	Dashboard http.Handler
	APIKey    string
	Logger    *zap.Logger
}

// NewRouter builds the HTTP surface of the bot.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})

	r.Get("/webhook", deps.Webhook.Verify)
	r.Post("/webhook", deps.Webhook.Receive)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	if deps.Dashboard != nil && deps.APIKey != "" {
		r.With(middleware.AuthMiddleware(deps.APIKey)).Handle("/dashboard", deps.Dashboard)
	}

	return r
}
