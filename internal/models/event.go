package models

import (
	"encoding/json"
	"time"
)

// Envelope нормализованное событие платформы.
// Data остаётся непрозрачным до классификации.
type Envelope struct {
	Event      string          `json:"event"`
	MerchantID int64           `json:"merchant"`
	CreatedAt  string          `json:"created_at,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ProductData поля товара, которые нужны для решения о тревоге.
type ProductData struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Quantity *int    `json:"quantity"`
	Price    *Amount `json:"price,omitempty"`
}

// Amount цена товара.
type Amount struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// SubscriptionData поля событий подписки на приложение.
type SubscriptionData struct {
	PlanName string     `json:"plan_name"`
	EndDate  *time.Time `json:"end_date,omitempty"`
}

// AuthorizeData поля события авторизации магазина.
type AuthorizeData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expires      int64  `json:"expires"`
	Scope        string `json:"scope"`
	StoreName    string `json:"store_name,omitempty"`
}

// AlertEvent тревога о низком остатке одного товара.
type AlertEvent struct {
	MerchantID  int64  `json:"merchant_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity"`
	Threshold   int    `json:"threshold"`
}
