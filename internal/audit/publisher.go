// Package audit publishes committed operation records to a Kafka
// topic. Publishing is fire and forget: a down broker slows nothing
// and fails no commit.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
	"github.com/yndnr/tabmesh-go/internal/telemetry/metric"
)

// Event is the message published per committed operation.
type Event struct {
	SessionID string                  `json:"session_id"`
	TableName string                  `json:"table_name"`
	Record    *domain.OperationRecord `json:"record"`
	Rows      int                     `json:"rows"`
	Columns   int                     `json:"columns"`
}

// messageWriter is the slice of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher serializes events and hands them to Kafka with a bounded
// timeout.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
	metrics *metric.Set
}

// Config configures the publisher.
type Config struct {
	Brokers []string
	Topic   string
	// Timeout bounds each publish. Defaults to two seconds.
	Timeout time.Duration
}

// NewPublisher builds a publisher against the configured brokers.
func NewPublisher(cfg Config, logger *slog.Logger, metrics *metric.Set) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newPublisher(w, cfg.Timeout, logger, metrics)
}

func newPublisher(w messageWriter, timeout time.Duration, logger *slog.Logger, metrics *metric.Set) *Publisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = metric.NewForTesting()
	}
	return &Publisher{
		writer:  w,
		timeout: timeout,
		logger:  logger.With("component", "audit"),
		metrics: metrics,
	}
}

// Publish sends one event. Failures are logged and counted, never
// returned: the caller's commit has already succeeded.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.metrics.AuditDropped.Inc()
		p.logger.Warn("audit event encode failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		// Keyed by session/table so one table's trail stays ordered
		// within a partition.
		Key:   []byte(ev.SessionID + "/" + ev.TableName),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.AuditDropped.Inc()
		p.logger.Warn("audit publish failed",
			"session_id", ev.SessionID,
			"table", ev.TableName,
			"error", err)
		return
	}
	p.metrics.AuditPublished.Inc()
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
