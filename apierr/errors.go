// Package apierr defines the error taxonomy shared by every core component:
// registry store, lease manager, discovery pipeline, and replication worker
// all report failures through these sentinel kinds so callers can
// errors.Is/errors.As without depending on a specific package's error type.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way the core's error-handling design
// requires: NotFound and Validation surface to callers, Transient is
// recovered by the replication retry queue, Permanent is logged and
// dropped, ChannelClosed is swallowed by push delivery.
type Kind int

const (
	// KindNotFound means a lookup/renew/remove targeted a key that does
	// not exist.
	KindNotFound Kind = iota
	// KindValidation means the input violates a contract and was
	// rejected before reaching the core.
	KindValidation
	// KindTransient means an upstream call failed with a retryable
	// signal (timeout, connect error, 5xx, 408, 429).
	KindTransient
	// KindPermanent means an upstream call failed with a signal that
	// retrying will not fix (4xx other than 408/429, parse failure).
	KindPermanent
	// KindChannelClosed means a push send failed because the
	// subscriber disconnected.
	KindChannelClosed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindChannelClosed:
		return "channel_closed"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// classification without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinel values for errors.Is comparisons. New wraps one of these with
// an operation name and, optionally, an underlying cause.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrTransient     = errors.New("transient upstream failure")
	ErrPermanent     = errors.New("permanent upstream failure")
	ErrChannelClosed = errors.New("channel closed")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindTransient:
		return ErrTransient
	case KindPermanent:
		return ErrPermanent
	case KindChannelClosed:
		return ErrChannelClosed
	default:
		return errors.New("unclassified error")
	}
}

// New builds an *Error for op, wrapping cause (which may be nil) and
// chaining the Kind's sentinel so errors.Is(err, apierr.ErrNotFound)
// works regardless of the wrapped message.
//
// Example:
//
//	if !ok {
//	    return apierr.New(apierr.KindNotFound, "lease.Renew", nil)
//	}
func New(k Kind, op string, cause error) *Error {
	var err error
	if cause != nil {
		err = fmt.Errorf("%w: %v", sentinelFor(k), cause)
	} else {
		err = sentinelFor(k)
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// Is reports whether err was constructed with the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return errors.Is(err, sentinelFor(k))
}

// IsRetryable classifies an HTTP status code the way the replication
// worker's error taxonomy requires: 5xx, 408, and 429 are retryable;
// all other 4xx responses are permanent.
func IsRetryable(statusCode int) bool {
	if statusCode >= 500 {
		return true
	}
	return statusCode == 408 || statusCode == 429
}
