// Package stockalerts собирает HTTP-сервер приёма вебхуков и API мерчантов.
package stockalerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/stock-alerts/internal/app/deps"
	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/diagnostics"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/health"
	"github.com/magabrotheeeer/stock-alerts/internal/http/handlers/webhook/salla"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/rabbitmq"
	"github.com/magabrotheeeer/stock-alerts/internal/services/pipeline"
	"github.com/magabrotheeeer/stock-alerts/internal/services/scheduler"
)

// App HTTP-сервер.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	deps      *deps.Deps
	scheduler *scheduler.Service
	embedded  bool
	conn      *amqp.Connection
	ch        *amqp.Channel
}

// New создаёт приложение. Без URL брокера события обрабатываются прямо в обработчике вебхука.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	d, err := deps.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		logger:   logger,
		deps:     d,
		embedded: cfg.Reports.Embedded,
	}

	checks := make(map[string]health.Check)
	for name, check := range d.Checks() {
		checks[name] = check
	}

	var sink salla.EventSink
	if cfg.RabbitMQ.URL == "" {
		logger.Warn("rabbitmq url is empty, processing events inline")
		sink = inlineSink{processor: pipeline.New(d.Merchants, d.Quota, d.Coordinator, d.Metrics, logger)}
	} else {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.EventTopology(), 0)
		if err != nil {
			_ = conn.Close()
			d.Close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		app.conn, app.ch = conn, ch
		sink = queueSink{ch: ch}
		checks["rabbitmq"] = func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection is closed")
			}
			return nil
		}
	}

	app.scheduler = scheduler.New(d.Store, d.Coordinator, cfg.Reports, logger, scheduler.WithObserver(d.Metrics))

	router := chi.NewRouter()
	ring := diagnostics.NewRing(cfg.DiagnosticsCapacity)
	RegisterRoutes(router, logger, cfg, d, sink, ring, app.scheduler, checks)

	app.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return app, nil
}

// Run запускает сервер и останавливает его по отмене ctx.
func (a *App) Run(ctx context.Context) error {
	if a.embedded {
		if err := a.scheduler.Start(ctx); err != nil {
			a.closeResources()
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		a.logger.Info("shutting down HTTP server gracefully")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := a.server.Shutdown(timeoutCtx); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}
	if a.embedded {
		if stopErr := a.scheduler.Stop(timeoutCtx); stopErr != nil {
			a.logger.Error("failed to stop scheduler", sl.Err(stopErr))
		}
	}
	a.deps.Drain(timeoutCtx)
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	a.deps.Close()
}
