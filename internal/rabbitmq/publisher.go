package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/pkg/eventbus"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

const (
	// RoutingKeyRunCompleted is the routing key for finished runs
	RoutingKeyRunCompleted = "qa.run.completed"
	// RoutingKeyStepCompleted is the routing key for finished steps
	RoutingKeyStepCompleted = "qa.step.completed"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes run events to RabbitMQ
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher dials url and opens a channel. An empty exchange publishes through
// the default exchange, so routing keys name queues directly.
func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{channel: ch, exchange: exchange, logger: logger}
}

func (p *Publisher) Name() string { return "rabbitmq" }

// Report publishes a finished run.
func (p *Publisher) Report(ctx context.Context, run model.RunResult) error {
	return p.publish(ctx, RoutingKeyRunCompleted, model.NewRunEvent(run), 0)
}

// SubscribeSteps forwards every step event on bus to RoutingKeyStepCompleted.
// Failed steps are published with a higher priority.
func (p *Publisher) SubscribeSteps(bus *eventbus.Bus[model.RunEvent]) (unsubscribe func()) {
	return bus.Subscribe(func(ev model.RunEvent) {
		if ev.Type != model.EventStepCompleted {
			return
		}
		step, ok := ev.Payload.(model.StepResult)
		if !ok || step.Name == "" {
			p.logger.Error("rabbitmq.step_event_invalid", zap.Any("event", ev))
			return
		}
		var priority uint8
		if step.Status == model.StatusFailed {
			priority = 10
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.publish(ctx, RoutingKeyStepCompleted, ev, priority); err != nil {
			p.logger.Warn("rabbitmq.step_publish_failed", zap.String("step", step.Name), zap.Error(err))
		}
	})
}

func (p *Publisher) publish(ctx context.Context, key string, ev model.RunEvent, priority uint8) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("rabbitmq.marshal_failed", zap.String("event_type", ev.Type), zap.Error(err))
		return err
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID.String(),
			Timestamp:    ev.Timestamp,
			Type:         ev.Type,
			Priority:     priority,
			Headers: amqp.Table{
				"suite":  ev.Suite,
				"run_id": ev.RunID.String(),
			},
			Body: body,
		},
	)
	if err != nil {
		p.logger.Error("rabbitmq.publish_failed", zap.String("routing_key", key), zap.Error(err))
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Debug("rabbitmq.published", zap.String("routing_key", key), zap.String("run_id", ev.RunID.String()))
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
