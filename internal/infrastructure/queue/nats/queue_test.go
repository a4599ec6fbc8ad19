package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/infrastructure/resilience"
)

func TestRecordRoundTripsThroughJSON(t *testing.T) {
	record := domain.RunRecord{
		ID:         "run-1",
		BatchID:    "batch-1",
		Filename:   "a.msg",
		FileKind:   domain.KindMessage,
		Task:       "categorize-mail",
		TaskKind:   domain.TaskCategorize,
		Model:      "gpt-3.5-turbo",
		Status:     domain.RunFailed,
		ErrorKind:  domain.KindRateLimited,
		Usage:      domain.TokenUsage{Prompt: 10, Completion: 2, Total: 12},
		Duration:   1500 * time.Millisecond,
		RecordedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := encodeRecord(record)
	if err != nil {
		t.Fatalf("encodeRecord() error = %v", err)
	}
	got, err := decodeRecord(payload)
	if err != nil {
		t.Fatalf("decodeRecord() error = %v", err)
	}
	if got != record {
		t.Fatalf("expected %+v, got %+v", record, got)
	}
}

func TestDecodeRecordRejectsInvalidPayloads(t *testing.T) {
	for _, payload := range []string{"not json", `{"id":"run-1"}`, `{}`} {
		if _, err := decodeRecord([]byte(payload)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("payload %q: expected invalid input, got %v", payload, err)
		}
	}
}

func TestClassifyPublishError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.ErrorClassification
	}{
		{name: "no servers", err: nats.ErrNoServers, want: resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{name: "wrapped disconnect", err: fmt.Errorf("nats publish: %w", nats.ErrDisconnected), want: resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{name: "canceled", err: context.Canceled},
		{name: "payload too large", err: nats.ErrMaxPayload},
		{name: "other", err: errors.New("boom"), want: resilience.ErrorClassification{RecordFailure: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyPublishError(tc.err); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestPublishError(t *testing.T) {
	if err := publishError(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed)); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if err := publishError(nats.ErrMaxPayload); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversized record, got %v", err)
	}
	permanent := errors.New("boom")
	if got := publishError(permanent); got != permanent {
		t.Fatalf("expected unknown error unchanged, got %v", got)
	}
	if publishError(nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{MaxReconnects: -1}.withDefaults()
	if opts.ConnectTimeout != 2*time.Second || opts.ReconnectWait != 2*time.Second || opts.MaxReconnects != 60 {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	if opts.Logger == nil {
		t.Fatalf("expected a default logger")
	}
	if got := len(opts.natsOptions()); got != 7 {
		t.Fatalf("expected 7 connection options, got %d", got)
	}
}
