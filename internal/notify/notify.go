// Package notify implements the aggregate-refresh notification bus (§4.J):
// a small Kafka topic publishers write to after a refresh completes and
// readers (the price cache, in particular) subscribe to so they can
// invalidate themselves without polling. Adapted directly from the
// teacher's producer/consumer pair — same kafka.Writer/kafka.Reader
// construction, generalized from ISO 20022 payment messages to refresh
// notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Topic is the single topic this bus uses; one message type, two
// aggregates distinguished by the Aggregate field.
const Topic = "aggregate.refreshed"

// Aggregate names one of the two §4.J materialized read models.
type Aggregate string

const (
	AggregateGoalTransactions  Aggregate = "goal_transactions"
	AggregateAccountUnitBalances Aggregate = "account_unit_balances"
)

// RefreshNotification is published once per completed (or failed) refresh
// run of one aggregate.
type RefreshNotification struct {
	Aggregate   Aggregate `json:"aggregate"`
	CompletedAt time.Time `json:"completedAt"`
	Success     bool      `json:"success"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// Publisher writes refresh notifications, grounded on the teacher's
// producer writer settings (batched, low-latency), with synchronous
// writes.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    10,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false, // refresh notifications are rare and must land before callers move on
	}}
}

func (p *Publisher) Close() error { return p.writer.Close() }

func (p *Publisher) Publish(ctx context.Context, n RefreshNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode refresh notification: %w", err)
	}
	msg := kafka.Message{Key: []byte(n.Aggregate), Value: data, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify: publish refresh notification: %w", err)
	}
	return nil
}

// Subscriber reads refresh notifications, grounded on the teacher's
// consumer readMessages loop (kafka.Reader in the consumer group named by
// groupID, so each distinct group, e.g. the price cache's, receives every
// notification).
type Subscriber struct {
	reader *kafka.Reader
}

func NewSubscriber(brokers []string, groupID string) *Subscriber {
	return &Subscriber{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  200 * time.Millisecond,
	})}
}

func (s *Subscriber) Close() error { return s.reader.Close() }

// Listen blocks, invoking fn for every notification until ctx is canceled.
// A handler error is logged by the caller-supplied fn itself; Listen never
// aborts the loop on a single bad message, matching the teacher's
// readMessages "log and continue" posture.
func (s *Subscriber) Listen(ctx context.Context, fn func(RefreshNotification)) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		var n RefreshNotification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			continue
		}
		fn(n)
	}
}
