package natsadapter

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/trailobs/internal/core/domain"
)

// Subscriber follows the report stream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeReports delivers reports published from now on. A message whose
// payload cannot be decoded or whose handler fails is negatively acked and
// redelivered at most twice more.
func (s *Subscriber) SubscribeReports(ctx context.Context, handler func(ctx context.Context, r *domain.Report) error) error {
	sub, err := s.js.Subscribe(reportSubject+">", func(msg *nats.Msg) {
		var r domain.Report
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &r); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	return s.conn.Drain()
}
