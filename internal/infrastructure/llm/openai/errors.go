package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
	// RetryAfter is zero when the provider sent no usable Retry-After header.
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "chat completion status error"
	}
	msg := fmt.Sprintf("chat completion status: %s", e.Status)
	if e.StatusCode == http.StatusTooManyRequests && e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// DecodeError reports a 2xx response whose body is not a chat completion.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode chat completion: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrorKindFor maps a transport-level failure onto the pipeline error taxonomy.
func ErrorKindFor(err error) domain.ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.KindTimeout
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return domain.KindAuthError
		case code == http.StatusTooManyRequests:
			return domain.KindRateLimited
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return domain.KindTimeout
		case code >= 500:
			return domain.KindTransportError
		default:
			return domain.KindUnknownError
		}
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return domain.KindUnknownError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.KindTimeout
		}
		return domain.KindTransportError
	}
	return domain.KindUnknownError
}

// ParseRetryAfterHeader accepts delta-seconds or an HTTP date. Unusable values yield zero.
func ParseRetryAfterHeader(val string) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait.Round(time.Second)
		}
	}
	return 0
}

var apiKeyPattern = regexp.MustCompile(`\b(sk-[A-Za-z0-9_\-]{2})[A-Za-z0-9_\-*.]+`)

// redact strips the caller's credential and anything shaped like an API key from a message.
func redact(message, credential string) string {
	if credential != "" {
		message = strings.ReplaceAll(message, credential, "[redacted]")
	}
	return apiKeyPattern.ReplaceAllString(message, "${1}***")
}
