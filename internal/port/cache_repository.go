package port

import "context"

// TokenRegistry tracks which scan tokens have already produced a
// decrement. A token enters the registry only after its mutation
// succeeded, so a failed attempt stays retryable with the same label.
type TokenRegistry interface {
	// IsConsumed reports whether the token was ever consumed.
	IsConsumed(ctx context.Context, token string) (bool, error)

	// MarkConsumed registers the token, returns false if it already was.
	MarkConsumed(ctx context.Context, token string) (bool, error)
}
