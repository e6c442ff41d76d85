package reliability

import (
	"context"
	"errors"
	"time"
)

// Kind buckets a failure for the UI boundary. Nothing here is fatal to the
// process; worst case a feature degrades to a fallback state.
type Kind string

const (
	KindPermission Kind = "permission"
	KindTransient  Kind = "transient"
	KindValidation Kind = "validation"
	KindPayment    Kind = "payment"
	KindUnknown    Kind = "unknown"
)

// ClassifiedError carries the failure bucket alongside the cause. Status is
// the upstream HTTP status when one exists, zero otherwise.
type ClassifiedError struct {
	Kind      Kind
	Code      string
	Status    int
	Retryable bool
	Err       error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Code
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classify maps an error to its failure kind. Context cancellation and
// deadline expiry count as transient: the caller tore down or timed out.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsRetryable reports whether retrying the failed call could help. Unknown
// errors are not retryable; transient ones are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return Classify(err) == KindTransient
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// KindForHTTPStatus maps a provider HTTP status onto the failure taxonomy.
func KindForHTTPStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindPermission
	case code == 409 || code == 422 || code == 400:
		return KindValidation
	case code == 402:
		return KindPayment
	case IsRetryableHTTPStatus(code):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Backoff computes a deterministic capped exponential backoff duration.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
