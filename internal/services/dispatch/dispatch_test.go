package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stock-alerts/internal/channel"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type fakeChannel struct {
	kind       models.Channel
	recipients func(*models.Merchant) []string
	validate   func(string) error
	send       func(context.Context, string, models.Message) error

	mu   sync.Mutex
	sent []string
}

func (f *fakeChannel) Kind() models.Channel { return f.kind }

func (f *fakeChannel) Recipients(m *models.Merchant) []string { return f.recipients(m) }

func (f *fakeChannel) Validate(r string) error {
	if f.validate == nil {
		return nil
	}
	return f.validate(r)
}

func (f *fakeChannel) Send(ctx context.Context, r string, msg models.Message) error {
	var err error
	if f.send != nil {
		err = f.send(ctx, r, msg)
	}
	if err == nil {
		f.mu.Lock()
		f.sent = append(f.sent, r)
		f.mu.Unlock()
	}
	return err
}

func (f *fakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func telegramChannel(send func(context.Context, string, models.Message) error) *fakeChannel {
	return &fakeChannel{
		kind: models.ChannelTelegram,
		recipients: func(m *models.Merchant) []string {
			if !m.NotifyTelegram {
				return nil
			}
			return m.TelegramChats
		},
		send: send,
	}
}

func emailChannel(send func(context.Context, string, models.Message) error) *fakeChannel {
	return &fakeChannel{
		kind: models.ChannelEmail,
		recipients: func(m *models.Merchant) []string {
			if !m.NotifyEmail || m.AlertEmail == "" {
				return nil
			}
			return []string{m.AlertEmail}
		},
		send: send,
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	deliveries []models.Delivery
}

func (r *recordingObserver) ObserveDelivery(d models.Delivery) {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	r.mu.Unlock()
}

func account(m *models.Merchant, maxRecipients int) models.Account {
	return models.Account{
		Merchant:     m,
		Subscription: &models.Subscription{MerchantID: m.ID, MaxRecipients: maxRecipients},
	}
}

func merchant() *models.Merchant {
	return &models.Merchant{
		ID:             1,
		AlertEmail:     "owner@example.com",
		NotifyEmail:    true,
		TelegramChats:  models.NewRecipientSet("100", "200"),
		NotifyTelegram: true,
	}
}

var alert = models.Message{Kind: "alert", Text: "low stock"}

func TestFanOut_OneChannelFails(t *testing.T) {
	tg := telegramChannel(nil)
	mail := emailChannel(func(context.Context, string, models.Message) error {
		return errors.New("smtp down")
	})
	obs := &recordingObserver{}
	c := New(newNoopLogger(), []channel.Channel{tg, mail}, WithObserver(obs))

	m := merchant()
	m.TelegramChats = models.NewRecipientSet("100")
	out := c.FanOut(context.Background(), account(m, 1), alert)

	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.NotEmpty(t, out.DispatchID)
	assert.Equal(t, []string{"100"}, tg.Sent())
	require.Len(t, out.Deliveries, 2)
	assert.Contains(t, out.Deliveries[1].Err, "smtp down")
	assert.Len(t, obs.deliveries, 2)
}

func TestFanOut_PanicIsIsolated(t *testing.T) {
	tg := telegramChannel(func(_ context.Context, r string, _ models.Message) error {
		if r == "100" {
			panic("boom")
		}
		return nil
	})
	mail := emailChannel(nil)
	c := New(newNoopLogger(), []channel.Channel{tg, mail})

	out := c.FanOut(context.Background(), account(merchant(), 5), alert)

	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, []string{"200"}, tg.Sent())
	assert.Equal(t, []string{"owner@example.com"}, mail.Sent())
	assert.Contains(t, out.Deliveries[0].Err, "panic: boom")
}

func TestFanOut_InvalidRecipientRecorded(t *testing.T) {
	tg := telegramChannel(nil)
	tg.validate = func(r string) error {
		if r == "bad" {
			return models.ErrInvalidRecipient
		}
		return nil
	}
	c := New(newNoopLogger(), []channel.Channel{tg})

	m := merchant()
	m.TelegramChats = models.NewRecipientSet("bad", "100")
	out := c.FanOut(context.Background(), account(m, 5), alert)

	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, []string{"100"}, tg.Sent())
	assert.Equal(t, "bad", out.Deliveries[0].Recipient)
	assert.False(t, out.Deliveries[0].OK)
}

func TestFanOut_RecipientCap(t *testing.T) {
	tg := telegramChannel(nil)
	c := New(newNoopLogger(), []channel.Channel{tg})

	m := merchant()
	m.TelegramChats = models.NewRecipientSet("1", "2", "3")
	out := c.FanOut(context.Background(), account(m, 2), alert)

	assert.Equal(t, 2, out.Succeeded)
	assert.ElementsMatch(t, []string{"1", "2"}, tg.Sent())
}

func TestFanOut_DisabledChannels(t *testing.T) {
	tg := telegramChannel(nil)
	mail := emailChannel(nil)
	c := New(newNoopLogger(), []channel.Channel{tg, mail})

	m := merchant()
	m.NotifyTelegram = false
	m.AlertEmail = ""

	assert.False(t, c.HasEnabledChannel(m))
	out := c.FanOut(context.Background(), account(m, 5), alert)
	assert.Zero(t, out.Succeeded)
	assert.Zero(t, out.Failed)
	assert.Empty(t, out.Deliveries)
}

func TestFanOut_RunsInParallel(t *testing.T) {
	const delay = 200 * time.Millisecond
	slow := func(ctx context.Context, _ string, _ models.Message) error {
		select {
		case <-time.After(delay):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := New(newNoopLogger(), []channel.Channel{telegramChannel(slow), emailChannel(slow)})

	start := time.Now()
	out := c.FanOut(context.Background(), account(merchant(), 5), alert)

	assert.Equal(t, 3, out.Succeeded)
	assert.Less(t, time.Since(start), 2*delay)
}

func TestDispatch_WaitJoinsBackgroundWork(t *testing.T) {
	release := make(chan struct{})
	tg := telegramChannel(func(ctx context.Context, _ string, _ models.Message) error {
		<-release
		return ctx.Err()
	})
	c := New(newNoopLogger(), []channel.Channel{tg})

	ctx, cancel := context.WithCancel(context.Background())
	c.Dispatch(ctx, account(merchant(), 5), alert)
	// Отмена контекста запроса не прерывает фоновую рассылку.
	cancel()

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	require.ErrorIs(t, c.Wait(short), context.DeadlineExceeded)

	close(release)
	require.NoError(t, c.Wait(context.Background()))
	assert.ElementsMatch(t, []string{"100", "200"}, tg.Sent())
}

func TestDeliveryError(t *testing.T) {
	err := &DeliveryError{Channel: models.ChannelEmail, Recipient: "a@b.c", Err: models.ErrInvalidRecipient}
	assert.ErrorIs(t, err, models.ErrInvalidRecipient)
	assert.Equal(t, "deliver via email to a@b.c: invalid recipient", err.Error())
}
