// Package webhooks отдаёт последние полученные вебхуки.
package webhooks

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/diagnostics"
	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
)

// Source источник записей.
type Source interface {
	Recent() []diagnostics.Entry
}

// Handler обработчик отладочного списка.
type Handler struct {
	source Source
}

// New создаёт Handler.
func New(source Source) *Handler {
	return &Handler{source: source}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entries := h.source.Recent()
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"webhooks": entries,
		"count":    len(entries),
	}))
}
