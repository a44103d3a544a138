package domain

import (
	"errors"
	"fmt"
)

// Retrieval-side failures inside a turn never surface as errors; the
// resolver folds them into the result status and degradation diagnostics.
// The sentinels below cover the remaining error paths: caller mistakes,
// missing rows, and dependency outages worth a retry upstream.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmbeddingFailure = errors.New("embedding failure")
	ErrSessionNotFound  = errors.New("session not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrTemporary        = errors.New("temporary failure")
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
