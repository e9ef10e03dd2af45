package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

func seed(t *testing.T, s *Storage, id int64, status models.Status) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.SaveMerchant(context.Background(), models.NewMerchant(id, now)))
	sub := models.NewTrialSubscription(id, now)
	sub.Status = status
	require.NoError(t, s.CreateSubscription(context.Background(), sub))
}

func TestStorage_MerchantCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := models.NewMerchant(1, time.Now())
	m.TelegramChats = models.NewRecipientSet("10")
	require.NoError(t, s.SaveMerchant(ctx, m))

	m.TelegramChats[0] = "changed"

	got, err := s.GetMerchant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientSet{"10"}, got.TelegramChats)

	_, err = s.GetMerchant(ctx, 2)
	assert.ErrorIs(t, err, models.ErrMerchantNotFound)
}

func TestStorage_DeleteCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, 1, models.StatusTrial)

	require.NoError(t, s.DeleteMerchant(ctx, 1))

	_, err := s.GetSubscription(ctx, 1)
	assert.ErrorIs(t, err, models.ErrSubscriptionNotFound)
	assert.ErrorIs(t, s.DeleteMerchant(ctx, 1), models.ErrMerchantNotFound)
}

func TestStorage_ModifySubscription(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, 1, models.StatusTrial)

	_, err := s.ModifySubscription(ctx, 1, func(sub *models.Subscription) error {
		sub.AlertsSentThisMonth = 5
		return errors.New("rollback")
	})
	require.Error(t, err)

	got, err := s.GetSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AlertsSentThisMonth)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ModifySubscription(ctx, 1, func(sub *models.Subscription) error {
				sub.AlertsSentThisMonth++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err = s.GetSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, got.AlertsSentThisMonth)
}

func TestStorage_ListReportable(t *testing.T) {
	s := New()
	seed(t, s, 3, models.StatusActive)
	seed(t, s, 1, models.StatusTrial)
	seed(t, s, 2, models.StatusExpired)
	seed(t, s, 4, models.StatusCancelled)

	accounts, err := s.ListReportable(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(1), accounts[0].Merchant.ID)
	assert.Equal(t, int64(3), accounts[1].Merchant.ID)
}
