// Package settings реализует чтение и изменение настроек уведомлений мерчанта.
//
// Идентификатор мерчанта приходит из контекста, его кладёт MerchantMiddleware.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/stock-alerts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Service описывает бизнес-логику настроек.
type Service interface {
	Settings(ctx context.Context, id int64) (models.Settings, error)
	UpdateSettings(ctx context.Context, id int64, s models.Settings) (*models.Merchant, error)
}

// Handler обрабатывает GET и PUT настроек.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Read возвращает текущие настройки.
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.Read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, _ := middlewarectx.MerchantIDFrom(r.Context())
	res, err := h.service.Settings(r.Context(), id)
	if err != nil {
		log.Error("failed to read settings", sl.Merchant(id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read settings"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"settings": res,
	}))
}

// Update заменяет настройки.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.Update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, _ := middlewarectx.MerchantIDFrom(r.Context())

	var req models.Settings
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}
		log.Error("failed to validate request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request"))
		return
	}

	m, err := h.service.UpdateSettings(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, models.ErrRecipientLimit) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("telegram chats exceed plan limit"))
			return
		}
		log.Error("failed to update settings", sl.Merchant(id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update settings"))
		return
	}

	log.Info("settings updated", sl.Merchant(id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"settings": models.SettingsOf(m),
	}))
}
