// Package telegramlink выдаёт ссылку привязки чата Telegram.
package telegramlink

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/services/merchant"
)

// Service строит ссылки привязки.
type Service interface {
	TelegramLink(id int64) (string, error)
}

// Handler обработчик запроса ссылки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.telegramlink"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, _ := middlewarectx.MerchantIDFrom(r.Context())
	link, err := h.service.TelegramLink(id)
	if err != nil {
		if errors.Is(err, merchant.ErrBotNotConfigured) {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("telegram bot is not configured"))
			return
		}
		log.Error("failed to build telegram link", sl.Merchant(id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not build telegram link"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"link": link,
	}))
}
