package stockalerts

import (
	"context"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
	"github.com/magabrotheeeer/stock-alerts/internal/rabbitmq"
	"github.com/magabrotheeeer/stock-alerts/internal/services/pipeline"
)

// Processor обработчик событий.
type Processor interface {
	Process(ctx context.Context, env models.Envelope) (pipeline.Result, error)
}

// inlineSink обрабатывает событие прямо в HTTP-запросе.
type inlineSink struct {
	processor Processor
}

func (s inlineSink) Submit(ctx context.Context, env models.Envelope) error {
	_, err := s.processor.Process(ctx, env)
	return err
}

// queueSink публикует событие в очередь обработчику событий.
type queueSink struct {
	ch rabbitmq.Publisher
}

func (s queueSink) Submit(_ context.Context, env models.Envelope) error {
	return rabbitmq.PublishMessage(s.ch, rabbitmq.EventsExchange, rabbitmq.EventsRoutingKey, env)
}
