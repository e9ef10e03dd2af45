package models

import "time"

// Channel вид канала уведомлений.
type Channel string

const (
	ChannelTelegram   Channel = "telegram"
	ChannelEmail      Channel = "email"
	ChannelAutomation Channel = "automation"
)

// Message содержимое уведомления, одинаковое для всех каналов.
type Message struct {
	Kind    string `json:"kind"` // alert, weekly_report, monthly_report
	Subject string `json:"subject"`
	Text    string `json:"text"`
	// Alert заполняется только для тревог; вебхук автоматизации передаёт его как есть.
	Alert *AlertEvent `json:"alert,omitempty"`
}

// Delivery результат доставки одному получателю через один канал.
type Delivery struct {
	Channel   Channel       `json:"channel"`
	Recipient string        `json:"recipient"`
	OK        bool          `json:"ok"`
	Err       string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Outcome итог рассылки по всем каналам мерчанта.
type Outcome struct {
	DispatchID string     `json:"dispatch_id"`
	MerchantID int64      `json:"merchant_id"`
	Deliveries []Delivery `json:"deliveries"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
}

// Add учитывает результат доставки.
func (o *Outcome) Add(d Delivery) {
	o.Deliveries = append(o.Deliveries, d)
	if d.OK {
		o.Succeeded++
	} else {
		o.Failed++
	}
}
