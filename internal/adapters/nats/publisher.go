package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/trailobs/internal/core/domain"
)

const (
	ReportStream  = "TRAILOBS_REPORTS"
	reportSubject = "trailobs.reports."
)

// Publisher implements ports.ReportPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

func connect(url string) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := nats.Connect(url,
		nats.Name("trailobs"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return conn, js, nil
}

// NewPublisher connects to NATS and makes sure the report stream exists.
func NewPublisher(url string, maxAge time.Duration) (*Publisher, error) {
	conn, js, err := connect(url)
	if err != nil {
		return nil, err
	}

	cfg := &nats.StreamConfig{
		Name:      ReportStream,
		Subjects:  []string{reportSubject + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAge,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// Subject is the subject a report with the given run id is published on.
func Subject(runID string) string {
	return reportSubject + runID
}

// PublishReport publishes the report as JSON. The run id doubles as the
// JetStream message id, so a retried publish is stored once.
func (p *Publisher) PublishReport(ctx context.Context, r *domain.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(Subject(r.RunID), data, nats.Context(ctx), nats.MsgId(r.RunID))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
