package crossencoder

import (
	"context"
	"errors"
	"net"

	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/resilience"
)

func classifyRerankError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	// Rerank is best effort; anything else fails fast and lets the caller
	// fall back to the fused ordering.
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
