// Package kafkabus carries recompute requests over Kafka so triggers raised in
// one process can be settled by workers in another.
package kafkabus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/pkg/logger"
)

const (
	minBytes     = 1
	maxBytes     = 10e6
	maxWait      = 500 * time.Millisecond
	sinkBackoff  = 100 * time.Millisecond
	headerReason = "reason"
)

// ErrInvalidMessage marks a payload that cannot be decoded into a request.
var ErrInvalidMessage = errors.New("invalid recompute message")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EncodeRequest builds the Kafka message for r, keyed by user so one user's
// requests stay on one partition.
func EncodeRequest(r model.RecomputeRequest) (kafka.Message, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(r.UserID),
		Value:   body,
		Headers: []kafka.Header{{Key: headerReason, Value: []byte(r.Reason)}},
		Time:    r.RequestedAt,
	}, nil
}

// DecodeRequest parses a message produced by EncodeRequest.
func DecodeRequest(msg kafka.Message) (model.RecomputeRequest, error) {
	var r model.RecomputeRequest
	if err := json.Unmarshal(msg.Value, &r); err != nil {
		return r, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if r.ID == "" || r.UserID == "" {
		return r, fmt.Errorf("%w: missing id or user_id", ErrInvalidMessage)
	}
	if !r.Reason.Valid() {
		return r, fmt.Errorf("%w: %w: %q", ErrInvalidMessage, model.ErrInvalidReason, r.Reason)
	}
	return r, nil
}

// Publisher writes recompute requests to a topic.
type Publisher struct {
	w messageWriter
}

// NewPublisher creates a Publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

// Publish sends r and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, r model.RecomputeRequest) error {
	msg, err := EncodeRequest(r)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", r.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// Sink receives decoded requests, normally the local in-memory queue.
type Sink interface {
	Enqueue(ctx context.Context, r model.RecomputeRequest) error
}

// Consumer reads recompute requests from a topic and hands them to a Sink.
// A message is committed only once the sink accepted it.
type Consumer struct {
	r      messageReader
	sink   Sink
	logger logger.Logger
}

// NewConsumer creates a Consumer in groupID reading topic from brokers.
func NewConsumer(brokers []string, topic, groupID string, sink Sink) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: minBytes,
			MaxBytes: maxBytes,
			MaxWait:  maxWait,
		}),
		sink:   sink,
		logger: logger.Get().Named("kafka-consumer"),
	}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		req, err := DecodeRequest(msg)
		if err != nil {
			c.logger.Warn(ctx, "dropping undecodable recompute message",
				logger.Int64("offset", msg.Offset),
				logger.Int("partition", msg.Partition),
				logger.Error(err),
			)
		} else if err := c.deliver(ctx, req); err != nil {
			return nil
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit: %w", err)
		}
	}
}

// deliver retries a full sink until it accepts or ctx ends.
func (c *Consumer) deliver(ctx context.Context, req model.RecomputeRequest) error {
	for {
		err := c.sink.Enqueue(ctx, req)
		if err == nil {
			return nil
		}
		c.logger.Debug(ctx, "sink rejected request, backing off",
			logger.String("request_id", req.ID), logger.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sinkBackoff):
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.r.Close()
}
