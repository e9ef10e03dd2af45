package rabbitmq

const (
	// EventsExchange exchange входящих событий платформы.
	EventsExchange = "salla"
	// EventsRoutingKey ключ маршрутизации событий.
	EventsRoutingKey = "events"
	// EventsQueue очередь, из которой читает обработчик событий.
	EventsQueue = "salla.events"
)

// QueueConfig очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Topology exchange и привязанные к нему очереди.
type Topology struct {
	Exchange string
	Queues   []QueueConfig
}

// EventTopology топология очереди событий.
func EventTopology() Topology {
	return Topology{
		Exchange: EventsExchange,
		Queues: []QueueConfig{
			{QueueName: EventsQueue, RoutingKey: EventsRoutingKey},
		},
	}
}
