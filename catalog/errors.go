package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Network error kinds.
const (
	KindTimeout     = "timeout"
	KindConnection  = "connection"
	KindForbidden   = "forbidden"
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindStatus      = "status"
	KindCanceled    = "canceled"
	KindOther       = "other"
)

// NetworkError reports a transport failure or a non-success response.
type NetworkError struct {
	Kind       string
	StatusCode int
	URL        string
	Err        error
}

func (e NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network %s: %s: http status %d: %v", e.Kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError reports a response body that is not a list of items.
type DecodeError struct {
	URL string
	Err error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err wraps a NetworkError.
func IsNetworkError(err error) bool {
	var netErr NetworkError
	return errors.As(err, &netErr)
}

// IsDecodeError reports whether err wraps a DecodeError.
func IsDecodeError(err error) bool {
	var decodeErr DecodeError
	return errors.As(err, &decodeErr)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var netErr NetworkError
	if errors.As(err, &netErr) {
		return netErr.Kind
	}
	var decodeErr DecodeError
	if errors.As(err, &decodeErr) {
		return "decode"
	}
	return KindOther
}

// classifyError maps a transport error and status code onto a NetworkError.
// It returns nil when the exchange succeeded.
func classifyError(rawURL string, err error, statusCode int) error {
	if err == nil && (statusCode == 0 || statusCode < http.StatusMultipleChoices) {
		return nil
	}

	kind := KindOther
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &opErr):
		kind = KindConnection
	case statusCode == http.StatusForbidden:
		kind = KindForbidden
	case statusCode == http.StatusNotFound:
		kind = KindNotFound
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case statusCode >= http.StatusMultipleChoices:
		kind = KindStatus
	}

	if err == nil {
		err = fmt.Errorf("%s", http.StatusText(statusCode))
	}
	return NetworkError{Kind: kind, StatusCode: statusCode, URL: rawURL, Err: err}
}
