package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

func fastRetry(attempts int) Config {
	return Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}
}

func kindError(kind domain.ErrorKind) error {
	return domain.NewPipelineError(kind, "a.txt", errors.New(string(kind)))
}

func TestDefaultConfigIsSingleAttempt(t *testing.T) {
	exec := NewExecutor(Config{}, nil)

	attempts := 0
	err := exec.Execute(context.Background(), "infer", func(context.Context) error {
		attempts++
		return kindError(domain.KindRateLimited)
	}, nil)
	if domain.ErrorKindOf(err) != domain.KindRateLimited {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteRetriesRetryableKinds(t *testing.T) {
	for _, kind := range []domain.ErrorKind{domain.KindRateLimited, domain.KindTimeout, domain.KindTransportError} {
		exec := NewExecutor(fastRetry(3), nil)

		attempts := 0
		err := exec.Execute(context.Background(), "infer", func(context.Context) error {
			attempts++
			if attempts < 3 {
				return kindError(kind)
			}
			return nil
		}, nil)
		if err != nil {
			t.Fatalf("%s: expected success after retries, got %v", kind, err)
		}
		if attempts != 3 {
			t.Fatalf("%s: expected 3 attempts, got %d", kind, attempts)
		}
	}
}

func TestExecuteDoesNotRetryPermanentKinds(t *testing.T) {
	for _, kind := range []domain.ErrorKind{domain.KindAuthError, domain.KindUnknownError, domain.KindMalformedResponse, domain.KindUnsupportedFormat} {
		exec := NewExecutor(fastRetry(3), nil)

		attempts := 0
		err := exec.Execute(context.Background(), "infer", func(context.Context) error {
			attempts++
			return kindError(kind)
		}, nil)
		if domain.ErrorKindOf(err) != kind {
			t.Fatalf("expected %s, got %v", kind, err)
		}
		if attempts != 1 {
			t.Fatalf("%s: expected 1 attempt, got %d", kind, attempts)
		}
	}
}

func TestExecuteReturnsLastErrorWhenAttemptsExhausted(t *testing.T) {
	exec := NewExecutor(fastRetry(2), nil)

	attempts := 0
	err := exec.Execute(context.Background(), "infer", func(context.Context) error {
		attempts++
		return kindError(domain.KindTimeout)
	}, nil)
	if domain.ErrorKindOf(err) != domain.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnCanceledContext(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Hour,
		RetryMaxBackoff:     time.Hour,
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- exec.Execute(ctx, "infer", func(context.Context) error {
			attempts++
			return kindError(domain.KindTransportError)
		}, nil)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if domain.ErrorKindOf(err) != domain.KindTransportError {
			t.Fatalf("expected last transport error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("executor did not stop after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, nil)

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "infer", func(context.Context) error {
			return kindError(domain.KindTransportError)
		}, nil)
		if domain.ErrorKindOf(err) != domain.KindTransportError {
			t.Fatalf("expected transport error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "infer", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if domain.ErrorKindOf(err) != domain.KindTransportError {
		t.Fatalf("expected open circuit to surface as transport error, got %s", domain.ErrorKindOf(err))
	}
}

func TestAuthFailuresDoNotTripBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:   1,
		BreakerEnabled:     true,
		BreakerMinRequests: 1,
	}, nil)

	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "infer", func(context.Context) error {
			return kindError(domain.KindAuthError)
		}, nil)
		if IsCircuitOpen(err) {
			t.Fatalf("auth failures must not open the circuit")
		}
	}
}

func TestClassifyByKindIgnoresCancellation(t *testing.T) {
	class := ClassifyByKind(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("expected cancellation to be neither retryable nor recorded, got %+v", class)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     350 * time.Millisecond,
		RetryMultiplier:     2,
	}.withDefaults()

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
	if got := cfg.backoff(0); got != 0 {
		t.Fatalf("expected no wait before the first attempt, got %v", got)
	}
}

func TestWithDefaultsRepairsInvalidValues(t *testing.T) {
	cfg := Config{
		RetryMaxAttempts:    -2,
		RetryInitialBackoff: -time.Second,
		RetryMultiplier:     0.5,
		BreakerFailureRatio: 1.5,
	}.withDefaults()

	if cfg.RetryMaxAttempts != 1 || cfg.RetryInitialBackoff != 0 || cfg.RetryMultiplier != 2 {
		t.Fatalf("unexpected retry settings %+v", cfg)
	}
	if cfg.BreakerFailureRatio != 0.6 || cfg.BreakerMinRequests != 5 || cfg.BreakerOpenTimeout != time.Minute {
		t.Fatalf("unexpected breaker settings %+v", cfg)
	}
}
