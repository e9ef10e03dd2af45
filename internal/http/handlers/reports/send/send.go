// Package send реализует ручную отправку отчёта мерчанту.
package send

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
	"github.com/magabrotheeeer/stock-alerts/internal/services/scheduler"
)

// Service отправляет отчёт вне расписания.
type Service interface {
	SendNow(ctx context.Context, kind scheduler.Kind, merchantID int64) (models.Outcome, error)
}

// Handler обработчик POST /reports/{kind}/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reports.send"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	kind, err := scheduler.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}
	id, _ := middlewarectx.MerchantIDFrom(r.Context())

	outcome, err := h.service.SendNow(r.Context(), kind, id)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) || errors.Is(err, models.ErrMerchantNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to send report", sl.Merchant(id), slog.String("kind", string(kind)), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not send report"))
		return
	}

	log.Info("report sent manually",
		sl.Merchant(id),
		slog.String("kind", string(kind)),
		slog.Int("succeeded", outcome.Succeeded),
		slog.Int("failed", outcome.Failed),
	)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"outcome": outcome,
	}))
}
