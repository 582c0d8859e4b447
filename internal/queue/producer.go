// Package queue forwards detection events to NATS JetStream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facecommand/internal/events"
	"github.com/your-org/facecommand/pkg/dto"
)

const (
	StatusesStreamName  = "STATUSES"
	StatusesSubjectBase = "statuses"
	DetectionSubject    = "detection.running"
)

// jetStream is the subset of jetstream.JetStream the producer uses.
type jetStream interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// conn is the subset of *nats.Conn the producer uses.
type conn interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	Close()
}

type Producer struct {
	nc     conn
	js     jetStream
	logger *slog.Logger
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("facecommand"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js, logger: slog.Default()}, nil
}

// EnsureStreams creates the STATUSES stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        StatusesStreamName,
		Subjects:    []string{StatusesSubjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  time.Minute,
		Description: "Status changes of the detection loop",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			p.logger.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		p.logger.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// StatusSubject returns the subject a status type is published on.
func StatusSubject(statusType string) string {
	return StatusesSubjectBase + "." + statusType
}

// PublishStatus publishes a status change to JetStream. The status id is the
// message id, so redeliveries within the duplicate window are dropped.
func (p *Producer) PublishStatus(ctx context.Context, ev events.Event) error {
	if ev.Status == nil {
		return fmt.Errorf("publish status: event without status")
	}
	payload, err := json.Marshal(dto.NewEvent(ev))
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	subject := StatusSubject(string(ev.Status.Type))
	_, err = p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(strconv.FormatInt(ev.Status.ID, 10)))
	if err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// Publish sends data on a core NATS subject (not JetStream).
func (p *Producer) Publish(subject string, data []byte) error {
	return p.nc.Publish(subject, data)
}

// Subscribe forwards bus events: status changes go to JetStream and loop
// start/stop notifications to DetectionSubject.
func (p *Producer) Subscribe(bus *events.Bus, buffer int) error {
	return bus.Subscribe("nats", buffer, p.forward)
}

func (p *Producer) forward(ctx context.Context, ev events.Event) {
	switch ev.Type {
	case events.TypeStatusChanged:
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.PublishStatus(opCtx, ev); err != nil {
			p.logger.Error("forward status to nats", "error", err)
		}
	case events.TypeDetectionRunning:
		payload, err := json.Marshal(dto.NewEvent(ev))
		if err != nil {
			p.logger.Error("marshal detection event", "error", err)
			return
		}
		if err := p.Publish(DetectionSubject, payload); err != nil {
			p.logger.Error("forward detection event to nats", "error", err)
		}
	}
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
