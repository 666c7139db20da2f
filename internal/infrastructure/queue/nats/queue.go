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

	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

const workerQueueGroup = "reanalysis-workers"

// reanalysisMessage is the wire payload of a re-analysis request.
type reanalysisMessage struct {
	DocumentID  string    `json:"document_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	timeout  time.Duration
	now      func() time.Time
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
	// HandlerTimeout bounds a single re-analysis; zero means no bound.
	HandlerTimeout time.Duration
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
		nats.Name("document-intelligence"),
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
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		timeout:  options.HandlerTimeout,
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishReanalysisRequested(ctx context.Context, documentID string) error {
	payload, err := encodeReanalysis(documentID, q.now().UTC())
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return reanalysisNotQueued(documentID, err)
	}
	return nil
}

// SubscribeReanalysisRequested blocks until ctx is done, dispatching each
// request to handler. The subscription is drained on shutdown so in-flight
// messages finish.
func (q *Queue) SubscribeReanalysisRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		req, err := decodeReanalysis(msg.Data)
		if err != nil {
			slog.Error("reanalysis_message_invalid", "error", err, "payload", string(msg.Data))
			return
		}

		handlerCtx, cancel := q.handlerContext(ctx)
		defer cancel()
		if !req.RequestedAt.IsZero() {
			handlerCtx = context.WithValue(handlerCtx, requestedAtKey{}, req.RequestedAt)
		}
		if err := handler(handlerCtx, req.DocumentID); err != nil {
			slog.Error("reanalysis_handler_failed", "document_id", req.DocumentID, "error", err)
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

type requestedAtKey struct{}

// RequestedAtFromContext returns the publish time of the message being
// handled, when the publisher sent one.
func RequestedAtFromContext(ctx context.Context) (time.Time, bool) {
	at, ok := ctx.Value(requestedAtKey{}).(time.Time)
	return at, ok
}

func (q *Queue) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout > 0 {
		return context.WithTimeout(ctx, q.timeout)
	}
	return context.WithCancel(ctx)
}

func encodeReanalysis(documentID string, at time.Time) ([]byte, error) {
	id := strings.TrimSpace(documentID)
	if id == "" {
		return nil, fmt.Errorf("encode reanalysis request: document id is required")
	}
	payload, err := json.Marshal(reanalysisMessage{DocumentID: id, RequestedAt: at})
	if err != nil {
		return nil, fmt.Errorf("encode reanalysis request: %w", err)
	}
	return payload, nil
}

// decodeReanalysis also accepts a bare document id for publishers that
// predate the JSON payload.
func decodeReanalysis(data []byte) (reanalysisMessage, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return reanalysisMessage{}, fmt.Errorf("empty reanalysis payload")
	}
	if !strings.HasPrefix(raw, "{") {
		return reanalysisMessage{DocumentID: raw}, nil
	}
	var msg reanalysisMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return reanalysisMessage{}, fmt.Errorf("decode reanalysis payload: %w", err)
	}
	if strings.TrimSpace(msg.DocumentID) == "" {
		return reanalysisMessage{}, fmt.Errorf("reanalysis payload has no document id")
	}
	return msg, nil
}
