// Package worker содержит обработчик событий из очереди.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/stock-alerts/internal/app/deps"
	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
	"github.com/magabrotheeeer/stock-alerts/internal/rabbitmq"
	"github.com/magabrotheeeer/stock-alerts/internal/services/pipeline"
)

// Processor обработчик событий.
type Processor interface {
	Process(ctx context.Context, env models.Envelope) (pipeline.Result, error)
}

// App обработчик очереди событий.
type App struct {
	deps        *deps.Deps
	processor   Processor
	conn        *amqp.Connection
	ch          *amqp.Channel
	concurrency int
	logger      *slog.Logger
}

// New подключается к брокеру и собирает обработчик событий.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQ.URL == "" {
		return nil, errors.New("rabbitmq url is required for the event worker")
	}
	d, err := deps.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.EventTopology(), cfg.RabbitMQ.Prefetch)
	if err != nil {
		_ = conn.Close()
		d.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	return &App{
		deps:        d,
		processor:   pipeline.New(d.Merchants, d.Quota, d.Coordinator, d.Metrics, logger),
		conn:        conn,
		ch:          ch,
		concurrency: cfg.RabbitMQ.Prefetch,
		logger:      logger,
	}, nil
}

// Handle обрабатывает одно сообщение очереди. Нераспознанное тело отбрасывается,
// после ошибки обработки сообщение всё равно подтверждается.
func Handle(processor Processor, logger *slog.Logger) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		var env models.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("%w: %v", rabbitmq.ErrDiscard, err)
		}
		res, err := processor.Process(ctx, env)
		if err != nil {
			logger.Error("failed to process event",
				slog.String("event", env.Event),
				sl.Merchant(env.MerchantID),
				sl.Err(err),
			)
			return nil
		}
		logger.Debug("event processed",
			slog.String("event", env.Event),
			sl.Merchant(env.MerchantID),
			slog.String("decision", string(res.Decision)),
		)
		return nil
	}
}

// Run читает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	done, err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.EventsQueue, a.concurrency, Handle(a.processor, a.logger), a.logger)
	if err != nil {
		a.logger.Error("failed to start events consumer", sl.Err(err))
		a.closeResources()
		return err
	}
	a.logger.Info("event worker started", slog.String("queue", rabbitmq.EventsQueue))

	<-ctx.Done()
	a.logger.Info("event worker shutting down gracefully")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	select {
	case <-done:
	case <-timeoutCtx.Done():
		a.logger.Warn("consumer did not stop in time")
	}
	a.deps.Drain(timeoutCtx)
	a.closeResources()
	return nil
}

func (a *App) closeResources() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	a.deps.Close()
}
