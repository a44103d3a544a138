package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/resilience"
)

// Queue moves chunk batches from the API's ingestion endpoint to the
// indexing worker. Batches are JSON-encoded; consumers share a queue group
// so each batch is indexed once.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
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
		nats.Name("govrag-evidence"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishChunkBatch(ctx context.Context, batch domain.ChunkBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal chunk batch: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeChunkBatch consumes batches through the shared indexer queue
// group, so a batch is indexed by exactly one worker.
func (q *Queue) SubscribeChunkBatch(ctx context.Context, handler func(context.Context, domain.ChunkBatch) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "indexers", q.batchHandler(ctx, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.waitAndDrain(ctx, sub)
}

// SubscribeChunkBatchFanout delivers every batch to this subscriber,
// independent of the worker queue group. Retrieval processes use it to
// build their in-process index replicas from the same stream the worker
// consumes.
func (q *Queue) SubscribeChunkBatchFanout(ctx context.Context, handler func(context.Context, domain.ChunkBatch) error) error {
	sub, err := q.conn.Subscribe(q.subject, q.batchHandler(ctx, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.waitAndDrain(ctx, sub)
}

func (q *Queue) batchHandler(ctx context.Context, handler func(context.Context, domain.ChunkBatch) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var batch domain.ChunkBatch
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			log.Printf("drop malformed chunk batch: %v", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, batch); err != nil {
			log.Printf("indexer handler error for doc=%s: %v", batch.DocID, err)
		}
	}
}

func (q *Queue) waitAndDrain(ctx context.Context, sub *nats.Subscription) error {
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
