package stockalerts

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/stock-alerts/internal/app/deps"
	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/diagnostics"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/debug/webhooks"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/health"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/merchant/settings"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/merchant/subscription"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/merchant/telegramlink"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/reports/send"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/webhook/salla"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/webhook/telegramhook"
	"github.com/magabrotheeeer/stock-alerts/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, d *deps.Deps,
	sink salla.EventSink, ring *diagnostics.Ring, reports send.Service, checks map[string]health.Check) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	// Вебхуки платформы и бота
	r.With(middlewarectx.SignatureMiddleware(cfg.Salla.WebhookSecret, logger)).
		Post("/webhooks/salla", salla.New(logger, sink, ring, d.Metrics).ServeHTTP)
	if d.Telegram != nil {
		r.Post("/telegram/webhook", telegramhook.New(logger, d.Merchants, d.Telegram).ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.HTTPServer.RateLimit, cfg.HTTPServer.RateBurst))

		r.Route("/merchants/{id}", func(r chi.Router) {
			r.Use(middlewarectx.MerchantMiddleware(logger, d.Merchants))
			settingsHandler := settings.New(logger, d.Merchants)
			r.Get("/settings", settingsHandler.Read)
			r.Put("/settings", settingsHandler.Update)
			r.Get("/subscription", subscription.New(logger, d.Quota).ServeHTTP)
			r.Get("/telegram-link", telegramlink.New(logger, d.Merchants).ServeHTTP)
		})

		r.With(middlewarectx.MerchantMiddleware(logger, d.Merchants)).
			Post("/reports/{kind}/{id}", send.New(logger, reports).ServeHTTP)
	})

	if cfg.DebugEnabled() {
		r.Get("/debug/webhooks", webhooks.New(ring).ServeHTTP)
	}
	r.Get("/health", health.New(logger, checks).ServeHTTP)
	r.Handle("/metrics", d.Metrics.Handler())
}
