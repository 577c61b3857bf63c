package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/policy-advisor/internal/infrastructure/resilience"
)

const workerQueueGroup = "workers"

// Queue carries "policy uploaded" events from the CLI to the worker pool.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	onLag    func(time.Duration)
}

// Options tunes the connection. Zero values pick the defaults below.
type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	FailFast           bool
	ResilienceExecutor *resilience.Executor
	// LagObserver receives the publish-to-receive delay of every event.
	LagObserver func(time.Duration)
}

func (o Options) natsOptions() []nats.Option {
	orDefault := func(d, def time.Duration) time.Duration {
		if d > 0 {
			return d
		}
		return def
	}
	maxReconnects := o.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	return []nats.Option{
		nats.Name("policy-advisor"),
		nats.Timeout(orDefault(o.ConnectTimeout, 2*time.Second)),
		nats.ReconnectWait(orDefault(o.ReconnectWait, 2*time.Second)),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(!o.FailFast),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

// Connect dials the server. Unless FailFast is set the client keeps
// retrying in the background while publishes buffer.
func Connect(url, subject string, opts Options) (*Queue, error) {
	conn, err := nats.Connect(url, opts.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: opts.ResilienceExecutor,
		onLag:    opts.LagObserver,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

type uploadEvent struct {
	DocumentID  string    `json:"document_id"`
	PublishedAt time.Time `json:"published_at"`
}

func encodeUploadEvent(documentID string, at time.Time) ([]byte, error) {
	return json.Marshal(uploadEvent{DocumentID: documentID, PublishedAt: at.UTC()})
}

// decodeUploadEvent also accepts a bare document id.
func decodeUploadEvent(data []byte) (uploadEvent, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return uploadEvent{}, errors.New("empty upload event")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return uploadEvent{DocumentID: trimmed}, nil
	}
	var ev uploadEvent
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return uploadEvent{}, fmt.Errorf("decode upload event: %w", err)
	}
	if strings.TrimSpace(ev.DocumentID) == "" {
		return uploadEvent{}, errors.New("upload event without document_id")
	}
	return ev, nil
}

func (q *Queue) PublishDocumentUploaded(ctx context.Context, documentID string) error {
	payload, err := encodeUploadEvent(documentID, time.Now())
	if err != nil {
		return fmt.Errorf("encode upload event: %w", err)
	}
	publish := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if q.executor == nil {
		return asTemporary(publish(ctx))
	}
	return asTemporary(q.executor.Execute(ctx, "nats.publish", publish, classifyNATSError))
}

// SubscribeDocumentUploaded blocks until ctx is done, then drains the
// subscription so in-flight handlers finish.
func (q *Queue) SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		ev, err := decodeUploadEvent(msg.Data)
		if err != nil {
			slog.Warn("upload_event_rejected", "error", err)
			return
		}
		if q.onLag != nil && !ev.PublishedAt.IsZero() {
			q.onLag(time.Since(ev.PublishedAt))
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, ev.DocumentID); err != nil {
			slog.Error("upload_handler_failed", "document_id", ev.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
