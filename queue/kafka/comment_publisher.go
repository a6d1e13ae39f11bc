package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nasermirzaei89/reelthread/discuss"
	kgo "github.com/segmentio/kafka-go"
)

const DefaultTopic = "comments.events"

// MessageWriter is the part of *kgo.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

type CommentPublisher struct {
	writer MessageWriter
}

var _ discuss.EventPublisher = (*CommentPublisher)(nil)

func NewCommentPublisher(writer MessageWriter) *CommentPublisher {
	return &CommentPublisher{writer: writer}
}

// NewWriter returns an async writer, so publishing never blocks a request on the broker.
func NewWriter(brokers []string, topic string) *kgo.Writer {
	if topic == "" {
		topic = DefaultTopic
	}

	return &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// Publish keys events by target, so events of one thread stay ordered within a partition.
func (p *CommentPublisher) Publish(ctx context.Context, event discuss.CommentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal comment event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kgo.Message{
		Key:   []byte(string(event.TargetType) + ":" + event.TargetID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kgo.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write comment event: %w", err)
	}

	return nil
}

func (p *CommentPublisher) Close() error {
	err := p.writer.Close()
	if err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}

	return nil
}
