// Package salla реализует HTTP-обработчик вебхуков платформы.
//
// Handler сохраняет тело в диагностический буфер, разбирает конверт события
// и передаёт его в EventSink. Платформа всегда получает 200, даже если обработка
// завершилась ошибкой, чтобы не вызывать повторную доставку.
package salla

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/diagnostics"
	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

const maxBodyBytes = 1 << 20

// EventSink принимает событие на обработку.
type EventSink interface {
	Submit(ctx context.Context, env models.Envelope) error
}

// Recorder диагностический буфер входящих запросов.
type Recorder interface {
	Record(e diagnostics.Entry)
}

// Observer учитывает входящие вебхуки.
type Observer interface {
	ObserveWebhook(source, status string)
}

// Handler обрабатывает вебхуки платформы.
type Handler struct {
	log      *slog.Logger
	sink     EventSink
	recorder Recorder
	observer Observer
}

// New создаёт Handler. observer может быть nil.
func New(log *slog.Logger, sink EventSink, recorder Recorder, observer Observer) *Handler {
	return &Handler{
		log:      log,
		sink:     sink,
		recorder: recorder,
		observer: observer,
	}
}

func (h *Handler) observe(status string) {
	if h.observer != nil {
		h.observer.ObserveWebhook("salla", status)
	}
}

// ServeHTTP принимает вебхук.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.salla"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		h.observe("unreadable")
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}

	var env models.Envelope
	decodeErr := json.Unmarshal(body, &env)
	h.recorder.Record(diagnostics.Entry{
		ReceivedAt: time.Now().UTC(),
		Source:     "salla",
		Event:      env.Event,
		Payload:    diagnostics.Redact(body),
	})
	if decodeErr != nil {
		log.Error("failed to decode webhook envelope", sl.Err(decodeErr))
		h.observe("malformed")
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	log = log.With(slog.String("event", env.Event), sl.Merchant(env.MerchantID))
	if err := h.sink.Submit(r.Context(), env); err != nil {
		log.Error("failed to process webhook", sl.Err(err))
		h.observe("failed")
	} else {
		log.Info("webhook accepted")
		h.observe("accepted")
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"received": true,
	}))
}
