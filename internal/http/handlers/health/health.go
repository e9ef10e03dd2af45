package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
)

// Check проверка одной зависимости.
type Check func(ctx context.Context) error

type Handler struct {
	log     *slog.Logger
	checks  map[string]Check
	timeout time.Duration
}

func New(log *slog.Logger, checks map[string]Check) *Handler {
	return &Handler{
		log:     log,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn("dependency is unhealthy", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	if status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status":       status,
		"dependencies": deps,
	}))
}
