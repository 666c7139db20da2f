package nats

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

// classifyPublishError sorts re-analysis publish failures. Lost
// connections are retried and count against the breaker. A payload the
// broker refuses is retried by nobody and says nothing about broker health.
// A draining connection means the process is shutting down.
func classifyPublishError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if class, ok := resilience.ContextClassification(err); ok {
		return class
	}

	switch {
	case errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrDrainTimeout):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrMaxPayload),
		errors.Is(err, nats.ErrBadSubject),
		errors.Is(err, nats.ErrInvalidMsg):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrStaleConnection),
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// reanalysisNotQueued tags a failed publish with the document it was for.
// Failures that may clear on their own are also temporary, so the upload
// can be retried as a whole.
func reanalysisNotQueued(documentID string, err error) error {
	if err == nil {
		return nil
	}
	if classifyPublishError(err).Retryable {
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(domain.ErrReanalysisNotQueued, "queue reanalysis of "+documentID, err)
}
