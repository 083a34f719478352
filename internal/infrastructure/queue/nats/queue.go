package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/knowledge-agents/internal/infrastructure/resilience"
)

const (
	defaultIngestSubject = "documents.ingest"
	defaultCorpusSubject = "corpus.updated"

	workerQueueGroup = "workers"
)

// Queue connects both services to NATS. Document-ingest events are
// shared across the worker queue group; corpus-update events fan out
// to every subscriber so each API instance rebuilds its local index.
type Queue struct {
	conn          *nats.Conn
	ingestSubject string
	corpusSubject string
	executor      *resilience.Executor
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

type Options struct {
	IngestSubject        string
	CorpusSubject        string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	ingestSubject := options.IngestSubject
	if ingestSubject == "" {
		ingestSubject = defaultIngestSubject
	}
	corpusSubject := options.CorpusSubject
	if corpusSubject == "" {
		corpusSubject = defaultCorpusSubject
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("knowledge-agents"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		ingestSubject: ingestSubject,
		corpusSubject: corpusSubject,
		executor:      options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.ingestSubject, documentID)
}

func (q *Queue) PublishCorpusUpdated(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.corpusSubject, documentID)
}

func (q *Queue) publish(ctx context.Context, subject, payload string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(payload)); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}
	if q.executor != nil {
		return q.executor.Execute(ctx, "nats.publish."+subject, call, classifyNATSError)
	}
	return call(ctx)
}

// SubscribeDocumentIngested blocks until ctx is cancelled, sharing
// messages across the worker queue group.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.ingestSubject, workerQueueGroup, q.dispatch(ctx, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", q.ingestSubject, err)
	}
	return q.serve(ctx, sub)
}

// SubscribeCorpusUpdated blocks until ctx is cancelled. Every
// subscriber receives every event.
func (q *Queue) SubscribeCorpusUpdated(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.Subscribe(q.corpusSubject, q.dispatch(ctx, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", q.corpusSubject, err)
	}
	return q.serve(ctx, sub)
}

func (q *Queue) dispatch(ctx context.Context, handler func(context.Context, string) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			slog.Error("queue_handler_failed",
				"subject", msg.Subject,
				"document_id", string(msg.Data),
				"error", err,
			)
		}
	}
}

func (q *Queue) serve(ctx context.Context, sub *nats.Subscription) error {
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
