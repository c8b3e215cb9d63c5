package utils

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds background store calls that have no request context
const DefaultTimeout = 5 * time.Second

// WithTimeout creates context with default timeout
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultTimeout)
}

// IsContextError reports whether err comes from cancellation or a deadline, wrapped or not
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
