package service

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"

	"estoque/internal/core/domain"
)

var (
	ErrNotFound    = errors.New("item not found")
	ErrOutOfStock  = errors.New("item out of stock")
	ErrAlreadyUsed = errors.New("scan token already consumed")
)

// Outcome is a classified failure: what kind it is and whether the
// caller may retry the same operation.
type Outcome struct {
	Kind      domain.FailureKind
	Retryable bool
}

// Classify maps an error from a persistence call or guard into the
// failure taxonomy. Expected, user-recoverable kinds come back as
// their own kind; anything unrecognized is Unknown and should be
// logged with full context by the caller.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: domain.FailureNone}
	case errors.Is(err, domain.ErrMalformedToken):
		return Outcome{Kind: domain.FailureMalformedToken}
	case errors.Is(err, ErrNotFound):
		return Outcome{Kind: domain.FailureNotFound}
	case errors.Is(err, ErrOutOfStock):
		return Outcome{Kind: domain.FailureOutOfStock}
	case errors.Is(err, ErrAlreadyUsed):
		return Outcome{Kind: domain.FailureAlreadyUsed}
	case errors.Is(err, ErrBusy):
		return Outcome{Kind: domain.FailureBusy, Retryable: true}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1040, 1203, 1226: // too many connections / user limits
			return Outcome{Kind: domain.FailureRateLimited, Retryable: true}
		case 1205, 1213: // lock wait timeout, deadlock
			return Outcome{Kind: domain.FailureConflict, Retryable: true}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Outcome{Kind: domain.FailureConflict, Retryable: true}
	}

	return Outcome{Kind: domain.FailureUnknown}
}

// messageFor renders the user-facing message for a failure kind. The
// UI shows these verbatim, so keep them actionable.
func messageFor(kind domain.FailureKind) string {
	switch kind {
	case domain.FailureMalformedToken:
		return "label could not be read, re-scan or enter the code manually"
	case domain.FailureNotFound:
		return "no item matches this label"
	case domain.FailureOutOfStock:
		return "item has no remaining stock"
	case domain.FailureAlreadyUsed:
		return "this label was already scanned"
	case domain.FailureBusy:
		return "another change for this section is in progress, try again"
	case domain.FailureRateLimited:
		return "backend is rate limiting, wait a moment before retrying"
	case domain.FailureConflict:
		return "the change could not be applied, try again"
	default:
		return "something went wrong, the error has been logged"
	}
}
