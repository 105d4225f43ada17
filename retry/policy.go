package retry

import (
	"errors"
	"net"
	"syscall"
)

// StatusCoder is implemented by errors carrying an HTTP-like status.
type StatusCoder interface {
	StatusCode() int
}

// Coder is implemented by errors carrying a symbolic code.
type Coder interface {
	Code() string
}

// IsTransient reports whether err looks like a timeout, a network blip or a
// server-side (5xx, 408, 429) failure. Business and validation errors are not
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return isTimeout(err) || isNetworkError(err) || isRetryableStatus(err)
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func isRetryableStatus(err error) bool {
	var sc StatusCoder
	if !errors.As(err, &sc) {
		return false
	}
	code := sc.StatusCode()
	return code == 408 || code == 429 || (code >= 500 && code < 600)
}

// OnStatuses returns a Retryable matcher accepting errors whose StatusCode is listed.
func OnStatuses(codes ...int) func(error) bool {
	return func(err error) bool {
		var sc StatusCoder
		if !errors.As(err, &sc) {
			return false
		}
		for _, c := range codes {
			if sc.StatusCode() == c {
				return true
			}
		}
		return false
	}
}

// OnCodes returns a Retryable matcher accepting errors whose Code is listed.
func OnCodes(codes ...string) func(error) bool {
	return func(err error) bool {
		var c Coder
		if !errors.As(err, &c) {
			return false
		}
		for _, code := range codes {
			if c.Code() == code {
				return true
			}
		}
		return false
	}
}

// Any combines matchers; an error is retryable if one of them accepts it.
func Any(matchers ...func(error) bool) func(error) bool {
	return func(err error) bool {
		for _, m := range matchers {
			if m(err) {
				return true
			}
		}
		return false
	}
}
