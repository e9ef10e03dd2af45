// Package memory реализует хранилище мерчантов в памяти процесса.
// Используется для локального запуска без PostgreSQL и в тестах сервисов.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

// Storage хранилище в памяти. Все методы безопасны для конкурентного вызова.
type Storage struct {
	mu            sync.Mutex
	merchants     map[int64]*models.Merchant
	subscriptions map[int64]*models.Subscription
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		merchants:     make(map[int64]*models.Merchant),
		subscriptions: make(map[int64]*models.Subscription),
	}
}

func cloneMerchant(m *models.Merchant) *models.Merchant {
	c := *m
	c.TelegramChats = slices.Clone(m.TelegramChats)
	return &c
}

func cloneSubscription(s *models.Subscription) *models.Subscription {
	c := *s
	return &c
}

// GetMerchant возвращает копию мерчанта.
func (s *Storage) GetMerchant(_ context.Context, id int64) (*models.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetMerchant: %w", models.ErrMerchantNotFound)
	}
	return cloneMerchant(m), nil
}

// SaveMerchant создаёт или заменяет мерчанта.
func (s *Storage) SaveMerchant(_ context.Context, m *models.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[m.ID] = cloneMerchant(m)
	return nil
}

// DeleteMerchant удаляет мерчанта вместе с подпиской.
func (s *Storage) DeleteMerchant(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.merchants[id]; !ok {
		return fmt.Errorf("memory.DeleteMerchant: %w", models.ErrMerchantNotFound)
	}
	delete(s.merchants, id)
	delete(s.subscriptions, id)
	return nil
}

// GetSubscription возвращает копию подписки.
func (s *Storage) GetSubscription(_ context.Context, merchantID int64) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[merchantID]
	if !ok {
		return nil, fmt.Errorf("memory.GetSubscription: %w", models.ErrSubscriptionNotFound)
	}
	return cloneSubscription(sub), nil
}

// CreateSubscription сохраняет подписку, если у мерчанта её ещё нет.
func (s *Storage) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[sub.MerchantID]; ok {
		return nil
	}
	s.subscriptions[sub.MerchantID] = cloneSubscription(sub)
	return nil
}

// ModifySubscription применяет fn к копии подписки и сохраняет её, если fn не вернула ошибку.
func (s *Storage) ModifySubscription(_ context.Context, merchantID int64,
	fn func(*models.Subscription) error) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subscriptions[merchantID]
	if !ok {
		return nil, fmt.Errorf("memory.ModifySubscription: %w", models.ErrSubscriptionNotFound)
	}
	next := cloneSubscription(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	s.subscriptions[merchantID] = next
	return cloneSubscription(next), nil
}

// ListReportable возвращает мерчантов с активной или пробной подпиской в порядке идентификаторов.
func (s *Storage) ListReportable(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []models.Account
	for id, sub := range s.subscriptions {
		m, ok := s.merchants[id]
		if !ok || !sub.IsReportable() {
			continue
		}
		res = append(res, models.Account{Merchant: cloneMerchant(m), Subscription: cloneSubscription(sub)})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Merchant.ID < res[j].Merchant.ID })
	return res, nil
}
