package ollama

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

// classifyGenerateError decides how a failed content analysis call is
// retried. A missing model fails every document until someone pulls it, so
// it trips the breaker without retrying. An oversized document is that
// document's problem and leaves the breaker alone.
func classifyGenerateError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if class, ok := resilience.ContextClassification(err); ok {
		return class
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.ModelMissing():
			return resilience.ErrorClassification{RecordFailure: true}
		case statusErr.DocumentTooLarge():
			return resilience.ErrorClassification{}
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// contentUnavailable turns a failed generate call into a degraded content
// stage. Failures that may clear on their own are also temporary.
func contentUnavailable(model string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrContentAnalysisUnavailable) {
		return err
	}
	op := fmt.Sprintf("ollama generate with %s", model)
	if classifyGenerateError(err).Retryable || resilience.IsCircuitOpen(err) {
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(domain.ErrContentAnalysisUnavailable, op, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
