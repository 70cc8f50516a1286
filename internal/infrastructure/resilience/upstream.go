package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

const maxStatusBody = 2 << 10

var (
	transient = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	// rejected is a 4xx answer: the upstream is healthy, the request is not.
	rejected = ErrorClassification{}
)

// StatusError is a non-success reply from an HTTP upstream.
type StatusError struct {
	Upstream   string
	Target     string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	where := e.Upstream
	if e.Target != "" {
		where += " " + e.Target
	}
	if e.Body == "" {
		return fmt.Sprintf("%s status: %s", where, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", where, e.Status, e.Body)
}

// ReadStatusError keeps the first 2 KiB of the reply body as the message.
func ReadStatusError(upstream, target string, resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	return &StatusError{
		Upstream:   upstream,
		Target:     target,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(raw)),
	}
}

// StatusCodeOf reports the HTTP status carried by err, if any.
func StatusCodeOf(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an HTTP status to retry and breaker behaviour.
func ClassifyStatus(code int) ErrorClassification {
	if RetryableStatus(code) {
		return transient
	}
	return rejected
}

// ClassifyUpstream is the classifier shared by the HTTP adapters. Statuses
// come from StatusError; adapters with their own error types use
// ClassifyUpstreamWith and a status extractor.
func ClassifyUpstream(err error) ErrorClassification {
	return ClassifyUpstreamWith(StatusCodeOf)(err)
}

func ClassifyUpstreamWith(statusOf func(error) (int, bool)) ErrorClassifier {
	return func(err error) ErrorClassification {
		if err == nil {
			return ErrorClassification{}
		}
		// Caller budget exhausted; per-attempt timeouts arrive as ErrCallTimeout.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ErrorClassification{}
		}
		if IsCircuitOpen(err) {
			return transient
		}
		if code, ok := statusOf(err); ok {
			return ClassifyStatus(code)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return transient
		}
		return permanent
	}
}

// MarkTemporary wraps err as domain.ErrTemporary when a later retry could
// still succeed. Other errors pass through unchanged.
func MarkTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	if classifier(err).Retryable || IsCircuitOpen(err) || IsCallTimeout(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
