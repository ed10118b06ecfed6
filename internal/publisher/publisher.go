package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/pkg/model"
)

// SubjectRunCompleted carries finished runs.
const SubjectRunCompleted = "evt.qa.run.completed.v1"

// jetStream is the slice of nats.JetStreamContext the publisher needs.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher emits run events to NATS JetStream.
type Publisher struct {
	nc      *nats.Conn
	js      jetStream
	subject string
	service string
	logger  *zap.Logger
}

// Connect dials url and returns a JetStream publisher for subject.
func Connect(url, subject, service string, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name(service))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p, err := New(nc, subject, service, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

// New wraps an existing connection.
func New(nc *nats.Conn, subject, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return newPublisher(nc, js, subject, service, logger), nil
}

func newPublisher(nc *nats.Conn, js jetStream, subject, service string, logger *zap.Logger) *Publisher {
	if subject == "" {
		subject = SubjectRunCompleted
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, js: js, subject: subject, service: service, logger: logger}
}

func (p *Publisher) Name() string { return "nats" }

// Report publishes run as a qa.run.completed event.
func (p *Publisher) Report(ctx context.Context, run model.RunResult) error {
	return p.PublishEvent(ctx, model.NewRunEvent(run))
}

// PublishEvent serializes ev and publishes it with routing headers.
func (p *Publisher) PublishEvent(ctx context.Context, ev model.RunEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.js == nil {
		return errors.New("publisher not connected")
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("publisher.marshal_failed", zap.String("event_type", ev.Type), zap.Error(err))
		return err
	}

	status := ""
	if run, ok := ev.Payload.(model.RunResult); ok {
		status = string(run.Status)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{ev.Type},
			"event_id":     []string{ev.ID.String()},
			"run_id":       []string{ev.RunID.String()},
			"suite":        []string{ev.Suite},
			"status":       []string{status},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
		},
	}
	// JetStream drops duplicates with the same message id inside its window.
	msg.Header.Set(nats.MsgIdHdr, ev.ID.String())

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", p.subject),
			zap.String("run_id", ev.RunID.String()),
			zap.Error(err))
		return err
	}

	p.logger.Info("publisher.publish_success",
		zap.String("subject", p.subject),
		zap.String("suite", ev.Suite),
		zap.String("run_id", ev.RunID.String()))
	return nil
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.nc }

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
