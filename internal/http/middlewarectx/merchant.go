package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// MerchantID ключ идентификатора мерчанта в контексте.
const MerchantID Key = "merchant_id"

// MerchantGetter проверяет существование мерчанта.
type MerchantGetter interface {
	Get(ctx context.Context, id int64) (*models.Merchant, error)
}

// MerchantIDFrom возвращает идентификатор мерчанта из контекста.
func MerchantIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(MerchantID).(int64)
	return id, ok && id > 0
}

// MerchantMiddleware читает параметр {id} маршрута.
func MerchantMiddleware(log *slog.Logger, merchants MerchantGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil || id <= 0 {
				log.Error("failed to decode merchant id from url", slog.String("id", chi.URLParam(r, "id")))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("failed to decode merchant id from url"))
				return
			}

			if _, err := merchants.Get(r.Context(), id); err != nil {
				if errors.Is(err, models.ErrMerchantNotFound) {
					render.Status(r, http.StatusNotFound)
					render.JSON(w, r, response.Error("merchant not found"))
					return
				}
				log.Error("failed to get merchant", sl.Merchant(id), sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			ctx := context.WithValue(r.Context(), MerchantID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
