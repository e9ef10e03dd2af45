// Package deps собирает общие зависимости процессов: хранилище, кэш, каналы,
// координатор рассылки и сервисы подписок и мерчантов.
package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/cache"
	"github.com/magabrotheeeer/stock-alerts/internal/channel"
	"github.com/magabrotheeeer/stock-alerts/internal/channel/automation"
	"github.com/magabrotheeeer/stock-alerts/internal/channel/email"
	"github.com/magabrotheeeer/stock-alerts/internal/channel/telegram"
	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/jwt"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/stock-alerts/internal/metrics"
	"github.com/magabrotheeeer/stock-alerts/internal/migrations"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
	"github.com/magabrotheeeer/stock-alerts/internal/services/dispatch"
	"github.com/magabrotheeeer/stock-alerts/internal/services/merchant"
	"github.com/magabrotheeeer/stock-alerts/internal/services/quota"
	"github.com/magabrotheeeer/stock-alerts/internal/storage/memory"
	"github.com/magabrotheeeer/stock-alerts/internal/storage/repository"
)

// Store хранилище, общее для всех сервисов.
type Store interface {
	GetMerchant(ctx context.Context, id int64) (*models.Merchant, error)
	SaveMerchant(ctx context.Context, m *models.Merchant) error
	DeleteMerchant(ctx context.Context, id int64) error
	GetSubscription(ctx context.Context, merchantID int64) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	ModifySubscription(ctx context.Context, merchantID int64, fn func(*models.Subscription) error) (*models.Subscription, error)
	ListReportable(ctx context.Context) ([]models.Account, error)
}

// Deps собранные зависимости.
type Deps struct {
	Store       Store
	DB          *repository.Storage // nil при хранении в памяти
	Cache       *cache.Cache        // nil, если кэш не настроен
	Metrics     *metrics.Metrics
	Telegram    *telegram.Channel // nil без токена бота
	Coordinator *dispatch.Coordinator
	Quota       *quota.Guard
	Merchants   *merchant.Service

	log *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// Build создаёт зависимости по конфигу.
// Без строки подключения используется хранилище в памяти, без адреса Redis кэш отключён.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Deps, error) {
	d := &Deps{
		Metrics: metrics.New(),
		log:     log,
	}

	if cfg.StorageConnectionString == "" {
		log.Warn("storage connection string is empty, using in-memory storage")
		d.Store = memory.New()
	} else {
		db, err := repository.New(cfg.StorageConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to connect storage: %w", err)
		}
		d.DB = db
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		if err := waitForDB(db); err != nil {
			d.Close()
			return nil, err
		}
		d.Store = db
	}

	var merchantOpts []merchant.Option
	if cfg.Redis.Addr != "" {
		c, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		d.Cache = c
		merchantOpts = append(merchantOpts, merchant.WithCache(c, cfg.Redis.TTL))
	}

	channels, err := d.buildChannels(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.Coordinator = dispatch.New(log, channels, dispatch.WithObserver(d.Metrics))
	d.Quota = quota.New(d.Store, log)
	tokens := jwt.NewJWTMaker(cfg.LinkToken.Secret, cfg.LinkToken.TTL)
	d.Merchants = merchant.New(d.Store, d.Quota, tokens, cfg.Telegram.BotUsername, log, merchantOpts...)

	return d, nil
}

func (d *Deps) buildChannels(cfg *config.Config) ([]channel.Channel, error) {
	var channels []channel.Channel
	if cfg.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Telegram, d.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram channel: %w", err)
		}
		d.Telegram = tg
		channels = append(channels, tg)
	} else {
		d.log.Warn("telegram token is empty, telegram channel disabled")
	}
	if cfg.SMTP.Host != "" {
		channels = append(channels, email.New(email.NewTransport(cfg.SMTP, d.log), d.log))
	} else {
		d.log.Warn("smtp host is empty, email channel disabled")
	}
	channels = append(channels, automation.New(cfg.Automation.Timeout, d.log))
	return channels, nil
}

// Checks проверки доступности внешних зависимостей.
func (d *Deps) Checks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if d.DB != nil {
		checks["postgres"] = d.DB.DB.PingContext
	}
	if d.Cache != nil {
		checks["redis"] = func(ctx context.Context) error {
			return d.Cache.Db.Ping(ctx).Err()
		}
	}
	return checks
}

// Drain ждёт завершения фоновых рассылок.
func (d *Deps) Drain(ctx context.Context) {
	if err := d.Coordinator.Wait(ctx); err != nil {
		d.log.Warn("background dispatches did not finish in time", sl.Err(err))
	}
}

// Close закрывает соединения.
func (d *Deps) Close() {
	var errs []error
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		d.log.Error("failed to close resources", sl.Err(err))
	}
}
