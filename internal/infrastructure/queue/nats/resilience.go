package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

// Connection-level failures; a worker may come back or the client may reconnect.
var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrNoResponders,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, target := range transientNATSErrors {
		if errors.Is(err, target) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// markTemporary also treats an expired request context as temporary: an ask
// that outlived NATS_ASK_TIMEOUT is worth repeating.
func markTemporary(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.MarkTemporary(operation, err, func(error) resilience.ErrorClassification {
			return resilience.ErrorClassification{Retryable: true}
		})
	}
	return resilience.MarkTemporary(operation, err, classifyNATSError)
}
