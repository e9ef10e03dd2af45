// Package config предоставялет структуры и функции для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string          `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string          `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string          `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	Redis                   RedisConnection `yaml:"redis_connection"`
	HTTPServer              HTTPServer      `yaml:"http_server"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	Salla                   Salla           `yaml:"salla"`
	Telegram                Telegram        `yaml:"telegram"`
	SMTP                    SMTP            `yaml:"smtp"`
	Automation              Automation      `yaml:"automation"`
	Reports                 Reports         `yaml:"reports"`
	LinkToken               LinkToken       `yaml:"link_token"`
	DiagnosticsCapacity     int             `yaml:"diagnostics_capacity" env-default:"20"`
	// DebugEndpoints открывает GET /debug/webhooks. В окружении local он открыт всегда.
	DebugEndpoints          bool            `yaml:"debug_endpoints" env:"DEBUG_ENDPOINTS"`
}

// DebugEnabled разрешены ли отладочные маршруты.
func (c *Config) DebugEnabled() bool {
	return c.DebugEndpoints || c.Env == "local"
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кэш мерчантов.
type RedisConnection struct {
	Addr        string        `yaml:"addr" env:"REDIS_ADDR"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"3s"`
	TTL         time.Duration `yaml:"ttl" env-default:"10m"`
}

// RabbitMQ настройки очереди событий. Пустой URL включает обработку событий прямо в HTTP-обработчике.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
	Prefetch   int           `yaml:"prefetch" env-default:"10"`
}

// Salla настройки входящих вебхуков платформы.
type Salla struct {
	WebhookSecret string `yaml:"webhook_secret" env:"SALLA_WEBHOOK_SECRET"`
}

// Telegram настройки бота.
type Telegram struct {
	Token       string        `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	BotUsername string        `yaml:"bot_username" env:"TELEGRAM_BOT_USERNAME"`
	APIURL      string        `yaml:"api_url" env-default:"https://api.telegram.org"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"25"`
}

// SMTP настройки почтового канала.
type SMTP struct {
	Host     string        `yaml:"host" env:"SMTP_HOST"`
	Port     string        `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string        `yaml:"user" env:"SMTP_USER"`
	Password string        `yaml:"password" env:"SMTP_PASSWORD"`
	From     string        `yaml:"from" env:"SMTP_FROM"`
	Timeout  time.Duration `yaml:"timeout" env-default:"10s"`
}

// Automation настройки исходящего вебхука.
type Automation struct {
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

// Reports расписание плановых отчётов.
// Embedded запускает планировщик внутри HTTP-сервера вместо отдельного процесса.
type Reports struct {
	Embedded   bool         `yaml:"embedded" env:"REPORTS_EMBEDDED"`
	Schedule   string       `yaml:"schedule" env-default:"@every 1h"`
	WeeklyDay  time.Weekday `yaml:"weekly_day" env-default:"5"`
	MonthlyDay int          `yaml:"monthly_day" env-default:"1"`
}

// LinkToken настройки токенов привязки Telegram.
type LinkToken struct {
	Secret string        `yaml:"secret" env:"LINK_TOKEN_SECRET"`
	TTL    time.Duration `yaml:"ttl" env-default:"24h"`
}

// Load читает конфиг из файла, переменные окружения имеют приоритет.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Reports.MonthlyDay < 1 || cfg.Reports.MonthlyDay > 28 {
		return nil, fmt.Errorf("%s: reports.monthly_day must be within 1..28, got %d", op, cfg.Reports.MonthlyDay)
	}
	if cfg.Reports.WeeklyDay < time.Sunday || cfg.Reports.WeeklyDay > time.Saturday {
		return nil, fmt.Errorf("%s: reports.weekly_day must be within 0..6, got %d", op, cfg.Reports.WeeklyDay)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage: %t\n"+
			"Redis: %s\n"+
			"HTTPServer: %s (timeout %s)\n"+
			"RabbitMQ: %t\n"+
			"Telegram: %t\n"+
			"SMTP: %s:%s\n"+
			"Reports: %s weekly=%s monthly=%d\n",
		c.Env,
		c.StorageConnectionString != "",
		c.Redis.Addr,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.RabbitMQ.URL != "",
		c.Telegram.Token != "",
		c.SMTP.Host,
		c.SMTP.Port,
		c.Reports.Schedule,
		c.Reports.WeeklyDay,
		c.Reports.MonthlyDay,
	)
}
