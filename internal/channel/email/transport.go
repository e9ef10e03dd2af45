package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/lib/sl"
)

// Client интерфейс для SMTP клиента.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Transport устанавливает SMTP-сессию.
type Transport interface {
	Connect(ctx context.Context) (Client, error)
	From() string
}

// SMTPTransport реализует SMTP транспорт для отправки писем.
// Соединение ограничено таймаутом из конфига от установки до QUIT.
type SMTPTransport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создает новый экземпляр SMTPTransport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, log: log}
}

// From адрес отправителя.
func (t *SMTPTransport) From() string {
	if t.cfg.From != "" {
		return t.cfg.From
	}
	return t.cfg.User
}

// Connect устанавливает соединение с SMTP сервером. Порт 465 использует TLS сразу,
// остальные переходят на STARTTLS, если сервер его поддерживает.
func (t *SMTPTransport) Connect(ctx context.Context) (Client, error) {
	const op = "email.Connect"
	addr := net.JoinHostPort(t.cfg.Host, t.cfg.Port)
	tlsConfig := &tls.Config{
		ServerName: t.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	dialer := &net.Dialer{Timeout: t.cfg.Timeout}
	var (
		conn net.Conn
		err  error
	)
	if t.cfg.Port == "465" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to dial SMTP server: %w", op, err)
	}
	if t.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			t.log.Error("failed to close connection", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: failed to create SMTP client: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok && t.cfg.Port != "465" {
		if err = client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%s: failed to start TLS: %w", op, err)
		}
	}

	if t.cfg.User != "" {
		auth := smtp.PlainAuth("", t.cfg.User, t.cfg.Password, t.cfg.Host)
		if err = client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%s: smtp auth failed: %w", op, err)
		}
	}

	return client, nil
}
