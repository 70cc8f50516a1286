package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

const (
	DefaultAskSubject    = "rag.ask"
	DefaultCorpusSubject = "rag.corpus.built"
	askQueueGroup        = "workers"
)

// Queue carries corpus-built events and ask request/reply traffic.
type Queue struct {
	conn          *nats.Conn
	askSubject    string
	corpusSubject string
	executor      *resilience.Executor
	askTimeout    time.Duration
}

type Options struct {
	AskSubject           string
	CorpusSubject        string
	AskTimeout           time.Duration
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Queue, error) {
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
	askSubject := options.AskSubject
	if askSubject == "" {
		askSubject = DefaultAskSubject
	}
	corpusSubject := options.CorpusSubject
	if corpusSubject == "" {
		corpusSubject = DefaultCorpusSubject
	}
	askTimeout := options.AskTimeout
	if askTimeout <= 0 {
		askTimeout = 2 * time.Minute
	}

	conn, err := nats.Connect(
		url,
		nats.Name("campus-assistant"),
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
		askSubject:    askSubject,
		corpusSubject: corpusSubject,
		executor:      options.ResilienceExecutor,
		askTimeout:    askTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishCorpusBuilt(ctx context.Context, report domain.IngestionReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal corpus report: %w", err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.corpusSubject, payload); err != nil {
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
		return markTemporary("nats publish", err)
	}
	return nil
}

// AskObserver is told about every handled ask request.
type AskObserver interface {
	StartRequest()
	FinishRequest(service string, duration time.Duration, err error)
}

// ServeAsk answers ask requests until ctx is done, then drains the subscription.
func (q *Queue) ServeAsk(ctx context.Context, service string, answerer ports.QuestionAnswerer, observer AskObserver) error {
	sub, err := q.conn.QueueSubscribe(q.askSubject, askQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		started := time.Now()
		if observer != nil {
			observer.StartRequest()
		}
		handlerCtx, cancel := context.WithTimeout(ctx, q.askTimeout)
		defer cancel()

		reply, handleErr := HandleAsk(handlerCtx, answerer, msg.Data)
		if observer != nil {
			observer.FinishRequest(service, time.Since(started), handleErr)
		}
		if handleErr != nil {
			slog.Warn("ask_failed", "subject", msg.Subject, "error", handleErr)
		}
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			slog.Error("ask_reply_failed", "error", err)
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

// Ask sends one question to a worker and waits for its answer.
func (q *Queue) Ask(ctx context.Context, req domain.AskRequest) (domain.AskResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.AskResponse{}, fmt.Errorf("marshal ask request: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.askTimeout)
		defer cancel()
	}

	msg, err := q.conn.RequestWithContext(ctx, q.askSubject, payload)
	if err != nil {
		return domain.AskResponse{}, markTemporary("nats ask", fmt.Errorf("nats request: %w", err))
	}
	return DecodeAskReply(msg.Data)
}
