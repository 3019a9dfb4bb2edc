// Package bridge mirrors alert traffic to an external Kafka topic so other
// systems can subscribe without touching the queue database.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vigilcell/vigil/internal/bus"
)

// AlertRecord is the JSON value written per mirrored alert.
type AlertRecord struct {
	Channel string    `json:"channel"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// Mirror tails an alert channel and republishes every entry to Kafka. It is
// a queue consumer like any front-end; alerts it pops are its to deliver.
type Mirror struct {
	queue   *bus.Queue
	channel string
	writer  *kafka.Writer

	running atomic.Bool
}

// NewMirror creates a mirror of one queue channel onto a Kafka topic.
func NewMirror(queue *bus.Queue, channel string, brokers []string, topic string) *Mirror {
	return &Mirror{
		queue:   queue,
		channel: channel,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Run consumes the channel until the context is cancelled or Stop is called.
func (m *Mirror) Run(ctx context.Context) {
	m.running.Store(true)
	slog.Info("Kafka mirror started", "channel", m.channel, "topic", m.writer.Topic)

	for m.running.Load() && ctx.Err() == nil {
		raw, err := m.queue.Pop(ctx, m.channel, time.Second)
		if errors.Is(err, bus.ErrEmpty) || errors.Is(err, context.Canceled) {
			continue
		}
		if err != nil {
			slog.Error("Mirror pop failed", "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}

		if err := m.publish(ctx, raw); err != nil {
			slog.Error("Mirror publish failed", "error", err)
		}
	}
	m.writer.Close()
}

// Stop signals the loop to exit.
func (m *Mirror) Stop() {
	m.running.Store(false)
}

func (m *Mirror) publish(ctx context.Context, content string) error {
	msg, err := BuildMessage(m.channel, content, time.Now())
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.writer.WriteMessages(writeCtx, msg)
}

// BuildMessage constructs the Kafka message for one mirrored alert. The key
// is the source channel so all alerts from one channel land in one
// partition, preserving their order.
func BuildMessage(channel, content string, at time.Time) (kafka.Message, error) {
	value, err := json.Marshal(AlertRecord{Channel: channel, Content: content, Time: at})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(channel),
		Value: value,
		Time:  at,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
