// Package scheduler содержит процесс планировщика плановых отчётов.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/app/deps"
	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	schedulerservice "github.com/magabrotheeeer/stock-alerts/internal/services/scheduler"
)

// App представляет приложение планировщика.
type App struct {
	deps             *deps.Deps
	schedulerService *schedulerservice.Service
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	d, err := deps.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &App{
		deps:             d,
		schedulerService: schedulerservice.New(d.Store, d.Coordinator, cfg.Reports, logger, schedulerservice.WithObserver(d.Metrics)),
		logger:           logger,
	}, nil
}

// Run запускает планировщик.
func (a *App) Run(ctx context.Context) error {
	if err := a.schedulerService.Start(ctx); err != nil {
		a.deps.Close()
		return err
	}

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.schedulerService.Stop(timeoutCtx); err != nil {
		a.logger.Error("failed to stop scheduler", sl.Err(err))
	}
	a.deps.Drain(timeoutCtx)
	a.deps.Close()
	return nil
}
