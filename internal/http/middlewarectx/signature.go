// Package middlewarectx содержит HTTP middleware сервиса.
//
// SignatureMiddleware проверяет подпись вебхука платформы в заголовке X-Salla-Signature:
// HMAC-SHA256 тела запроса в hex. При неверной подписи возвращает 401 Unauthorized.
//
// MerchantMiddleware извлекает идентификатор мерчанта из URL, проверяет,
// что мерчант установлен, и кладёт идентификатор в контекст запроса.
package middlewarectx

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stock-alerts/internal/http/response"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
)

// SignatureHeader заголовок с подписью вебхука.
const SignatureHeader = "X-Salla-Signature"

// maxBodyBytes ограничение размера тела вебхука.
const maxBodyBytes = 1 << 20

// Sign возвращает подпись тела для секрета.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureMiddleware проверяет подпись тела запроса. Пустой secret отключает проверку.
func SignatureMiddleware(secret string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			const op = "middlewarectx.SignatureMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				log.Error("failed to read request body", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("failed to read request body"))
				return
			}
			_ = r.Body.Close()

			got, err := hex.DecodeString(r.Header.Get(SignatureHeader))
			want, _ := hex.DecodeString(Sign(secret, body))
			if err != nil || !hmac.Equal(got, want) {
				log.Warn("invalid webhook signature")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid signature"))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
