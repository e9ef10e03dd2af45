// Package subscription возвращает текущую подписку мерчанта и остаток тревог.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Service источник подписки.
type Service interface {
	Get(ctx context.Context, merchantID int64) (*models.Subscription, error)
}

// View представление подписки в API.
type View struct {
	Plan              models.Plan   `json:"plan"`
	Status            models.Status `json:"status"`
	Active            bool          `json:"active"`
	TrialEndsAt       *time.Time    `json:"trial_ends_at,omitempty"`
	EndDate           *time.Time    `json:"end_date,omitempty"`
	MaxRecipients     int           `json:"max_recipients"`
	MaxAlertsPerMonth int           `json:"max_alerts_per_month"`
	AlertsSent        int           `json:"alerts_sent_this_month"`
	Remaining         int           `json:"remaining_alerts"`
	Unlimited         bool          `json:"unlimited"`
}

// ViewOf строит представление подписки.
func ViewOf(s *models.Subscription) View {
	return View{
		Plan:              s.Plan,
		Status:            s.Status,
		Active:            s.IsReportable(),
		TrialEndsAt:       s.TrialEndsAt,
		EndDate:           s.EndDate,
		MaxRecipients:     s.MaxRecipients,
		MaxAlertsPerMonth: s.MaxAlertsPerMonth,
		AlertsSent:        s.AlertsSentThisMonth,
		Remaining:         s.RemainingAlerts(),
		Unlimited:         s.IsUnlimited(),
	}
}

// Handler обработчик запроса подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, _ := middlewarectx.MerchantIDFrom(r.Context())
	sub, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		log.Error("failed to read subscription", sl.Merchant(id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": ViewOf(sub),
	}))
}
