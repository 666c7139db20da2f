package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	// ErrStorageUnavailable marks candidate lookup or persistence failures.
	// Duplicate detection is reported as degraded, never as "no duplicates".
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrContentAnalysisUnavailable marks analyzer failures and timeouts.
	ErrContentAnalysisUnavailable = errors.New("content analysis unavailable")
	// ErrReanalysisNotQueued means the upload was stored but its
	// re-analysis request never reached the queue.
	ErrReanalysisNotQueued = errors.New("reanalysis not queued")
	// ErrFatal aborts the whole analysis; only the hasher produces it.
	ErrFatal = errors.New("fatal analysis failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

func invalidInput(operation, format string, args ...any) error {
	return WrapError(ErrInvalidInput, operation, fmt.Errorf(format, args...))
}
