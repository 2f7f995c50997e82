package dropcopy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// ExecEvent mirrors one execution report onto the drop-copy feed
type ExecEvent struct {
	ExecID       string `json:"exec_id"`
	OrderID      string `json:"order_id"`
	ClOrdID      string `json:"cl_ord_id"`
	Symbol       string `json:"symbol"`
	Side         string `json:"side"`
	ExecType     string `json:"exec_type"`
	OrdStatus    string `json:"ord_status"`
	OrderQty     string `json:"order_qty"`
	CumQty       string `json:"cum_qty"`
	Price        string `json:"price"`
	TsUnixMillis int64  `json:"ts_unix_millis"`
}

// Publisher publishes execution events to Kafka. A nil *Publisher is
// valid and publishes nothing, so the engine runs without Kafka when
// no brokers are configured.
type Publisher struct {
	client       *kgo.Client
	logger       *zap.Logger
	topic        string
	produceCount int64
	errorCount   int64
}

// NewPublisher creates a Kafka drop-copy publisher
func NewPublisher(brokers []string, topic string, logger *zap.Logger) (*Publisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.DisableIdempotentWrite(),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &Publisher{
		client: client,
		logger: logger,
		topic:  topic,
	}

	logger.Info("drop-copy publisher initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)

	// Start periodic logging
	go p.logStats()

	return p, nil
}

// Publish sends one event keyed by ClOrdID. The produce is
// asynchronous: a slow broker must never stall the session's
// outbound path.
func (p *Publisher) Publish(ctx context.Context, event ExecEvent) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return fmt.Errorf("failed to marshal exec event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ClOrdID),
		Value: data,
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			p.logger.Error("drop-copy produce failed",
				zap.String("cl_ord_id", event.ClOrdID),
				zap.Error(err),
			)
			return
		}
		atomic.AddInt64(&p.produceCount, 1)
	})
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Close()
}

// logStats logs publisher statistics periodically
func (p *Publisher) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		produced := atomic.LoadInt64(&p.produceCount)
		errors := atomic.LoadInt64(&p.errorCount)
		p.logger.Info("drop-copy stats",
			zap.Int64("produced", produced),
			zap.Int64("errors", errors),
		)
	}
}
