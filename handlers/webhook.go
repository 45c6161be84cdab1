package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/semchie/sahajjo-messenger-bot/catalog"
	"github.com/semchie/sahajjo-messenger-bot/dialog"
	"github.com/semchie/sahajjo-messenger-bot/jobs"
	"github.com/semchie/sahajjo-messenger-bot/messenger"
	"github.com/semchie/sahajjo-messenger-bot/metrics"
	"github.com/semchie/sahajjo-messenger-bot/security"
	"github.com/semchie/sahajjo-messenger-bot/storage"
)

// EventReceived is the acknowledgement body the platform expects.
const EventReceived = "EVENT_RECEIVED"

const (
	maxBodyBytes        = 1 << 20
	defaultDedupeBudget = 500 * time.Millisecond
)

// Resolver routes an event to a node and renders it.
type Resolver interface {
	Route(ev dialog.Event) (catalog.Node, error)
	Render(node catalog.Node) messenger.Response
}

// Dispatcher queues outbound platform calls without waiting for them.
type Dispatcher interface {
	Send(senderID string, resp messenger.Response) *jobs.DeliveryResult
	Provision(senderID string) *jobs.DeliveryResult
}

// WebhookDeps wires a WebhookHandler. Deduper, Metrics and AppSecret are
// optional. DedupeBudget bounds the dedupe lookups of one whole delivery.
type WebhookDeps struct {
	VerifyToken  string
	AppSecret    string
	Resolver     Resolver
	Dispatcher   Dispatcher
	Deduper      storage.Deduper
	DedupeBudget time.Duration
	Metrics      *metrics.Collector
	Logger       *zap.Logger
}

// WebhookHandler serves the platform's webhook endpoints.
type WebhookHandler struct {
	deps     WebhookDeps
	ingestor *Ingestor
	logger   *zap.Logger
}

// NewWebhookHandler creates a handler.
func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	if deps.Deduper == nil {
		deps.Deduper = storage.NopDeduper{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.DedupeBudget <= 0 {
		deps.DedupeBudget = defaultDedupeBudget
	}
	return &WebhookHandler{
		deps:     deps,
		ingestor: NewIngestor(),
		logger:   deps.Logger,
	}
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		http.Error(w, "missing hub.mode or hub.verify_token", http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || token != h.deps.VerifyToken {
		h.logger.Warn("webhook verification rejected", zap.String("mode", mode))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.logger.Info("webhook verified")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

// Receive acknowledges a delivery and hands each event to the dispatcher.
// Once the delivery is from a page, the answer is 200 whatever happens to
// the individual events: the platform retries the whole delivery otherwise.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("could not read webhook body", zap.Error(err))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if h.deps.AppSecret != "" {
		if err := security.VerifySignature(h.deps.AppSecret, body, r.Header.Get(security.SignatureHeader)); err != nil {
			h.logger.Warn("webhook signature rejected", zap.Error(err))
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("undecodable webhook body", zap.Error(err))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if payload.Object != ObjectPage {
		h.logger.Info("ignoring delivery for unsupported object", zap.String("object", payload.Object))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	dedupeCtx, cancel := context.WithTimeout(r.Context(), h.deps.DedupeBudget)
	defer cancel()

	provisioned := make(map[string]bool)
	for _, item := range h.ingestor.Ingest(payload) {
		h.process(dedupeCtx, item, provisioned)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, EventReceived)
}

// process handles one item. dedupeCtx carries the delivery's remaining
// dedupe budget; once it is spent, events are handled without the lookup.
func (h *WebhookHandler) process(dedupeCtx context.Context, item Item, provisioned map[string]bool) {
	log := h.logger.With(zap.Int("entry", item.Entry), zap.Int("index", item.Index))
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing event", zap.Any("panic", rec))
			h.deps.Metrics.EventSkipped("panic")
		}
	}()

	switch {
	case errors.Is(item.Err, ErrSkipped):
		log.Debug("event skipped", zap.Error(item.Err))
		h.deps.Metrics.EventSkipped("no_reply")
		return
	case item.Err != nil:
		log.Warn("malformed messaging item", zap.Error(item.Err))
		h.deps.Metrics.EventSkipped("malformed")
		return
	}

	ev := item.Inbound.Event
	log = log.With(zap.String("sender_id", ev.SenderID), zap.Stringer("kind", ev.Kind))
	h.deps.Metrics.EventReceived(ev.Kind.String())

	if key := item.Inbound.DedupeKey; key != "" {
		var (
			seen bool
			err  = dedupeCtx.Err()
		)
		if err == nil {
			seen, err = h.deps.Deduper.Seen(dedupeCtx, key)
		}
		switch {
		case err != nil:
			log.Warn("dedupe check failed, handling event anyway", zap.Error(err))
		case seen:
			log.Info("redelivered event ignored", zap.String("key", key))
			h.deps.Metrics.EventSkipped("duplicate")
			return
		}
	}

	if !provisioned[ev.SenderID] {
		provisioned[ev.SenderID] = true
		h.deps.Dispatcher.Provision(ev.SenderID)
	}

	node, err := h.deps.Resolver.Route(ev)
	if err != nil {
		log.Info("unrecognized selector, answering with fallback", zap.String("selector", ev.Selector))
	}
	if ev.Kind == dialog.KindText {
		log.Debug("free text, showing entry menu", zap.String("text", security.Preview(ev.Text, 80)))
	}

	result := h.deps.Dispatcher.Send(ev.SenderID, h.deps.Resolver.Render(node))
	log.Debug("reply queued", zap.String("node", node.ID), zap.String("task_id", result.TaskID))
}
