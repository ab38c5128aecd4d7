package domain

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch indicates an embedding vector whose length does not
// match the configured index dimension. This is a configuration-level fault
// and is never retried.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ProviderError wraps a failure from an external embedding or reranking
// backend. Transient by nature; the caller decides whether to retry the
// whole request.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err originated from an external backend.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
