package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const testKey = "sk-test-0123456789abcdef"

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	client, err := New(Config{BaseURL: baseURL, Timeout: timeout, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func testPayload() domain.PromptPayload {
	return domain.PromptPayload{
		Model:       "gpt-3.5-turbo",
		System:      "categorize",
		User:        "File: a.msg\nType: msg\n\nContent:\nSubject: Q3 Report",
		MaxTokens:   50,
		Temperature: 0.1,
	}
}

func TestNewRequiresTimeout(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestInferSendsChatCompletion(t *testing.T) {
	var captured map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"model": "gpt-3.5-turbo-0125",
			"choices": [{"message": {"role": "assistant", "content": " Reporting anfragen|0.9 \n"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1/", time.Second)
	result := client.Infer(context.Background(), testPayload(), testKey)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Text != "Reporting anfragen|0.9" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Usage != (domain.TokenUsage{Prompt: 42, Completion: 7, Total: 49}) {
		t.Fatalf("unexpected usage %+v", result.Usage)
	}
	if result.Model != "gpt-3.5-turbo-0125" || result.FinishReason != "stop" {
		t.Fatalf("unexpected model/finish reason: %+v", result)
	}
	if auth != "Bearer "+testKey {
		t.Fatalf("unexpected authorization header %q", auth)
	}
	if captured["model"] != "gpt-3.5-turbo" || captured["max_tokens"] != float64(50) || captured["temperature"] != 0.1 {
		t.Fatalf("unexpected request body: %v", captured)
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", captured["messages"])
	}
}

func TestInferMissingUsageAndChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	result := newTestClient(t, server.URL, time.Second).Infer(context.Background(), testPayload(), testKey)
	if !result.Success || result.Text != "" {
		t.Fatalf("expected empty successful result, got %+v", result)
	}
	if result.Usage != (domain.TokenUsage{}) {
		t.Fatalf("expected zero usage, got %+v", result.Usage)
	}
	if result.Model != "gpt-3.5-turbo" {
		t.Fatalf("expected payload model fallback, got %q", result.Model)
	}
}

func TestInferMapsHTTPFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		body       string
		want       domain.ErrorKind
		contains   string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"Incorrect API key provided: sk-test-0123456789abcdef."}}`, want: domain.KindAuthError},
		{name: "forbidden", status: http.StatusForbidden, want: domain.KindAuthError},
		{name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "20", body: `{"error":{"message":"Rate limit reached"}}`, want: domain.KindRateLimited, contains: "retry after 20s"},
		{name: "request timeout", status: http.StatusRequestTimeout, want: domain.KindTimeout},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, want: domain.KindTimeout},
		{name: "server error", status: http.StatusBadGateway, body: "upstream down", want: domain.KindTransportError, contains: "upstream down"},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"model not found"}}`, want: domain.KindUnknownError, contains: "model not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result := newTestClient(t, server.URL, time.Second).Infer(context.Background(), testPayload(), testKey)
			if result.Success {
				t.Fatalf("expected failure")
			}
			if result.ErrorKind != tt.want {
				t.Fatalf("expected kind %s, got %s (%s)", tt.want, result.ErrorKind, result.ErrorMessage)
			}
			if tt.contains != "" && !strings.Contains(result.ErrorMessage, tt.contains) {
				t.Fatalf("expected %q in message %q", tt.contains, result.ErrorMessage)
			}
			if strings.Contains(result.ErrorMessage, testKey) {
				t.Fatalf("credential leaked into message %q", result.ErrorMessage)
			}
		})
	}
}

func TestInferTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	result := newTestClient(t, server.URL, 50*time.Millisecond).Infer(context.Background(), testPayload(), testKey)
	if result.ErrorKind != domain.KindTimeout {
		t.Fatalf("expected timeout, got %+v", result)
	}
}

func TestInferTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	result := newTestClient(t, url, time.Second).Infer(context.Background(), testPayload(), testKey)
	if result.ErrorKind != domain.KindTransportError {
		t.Fatalf("expected transport error, got %+v", result)
	}
}

func TestInferUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	result := newTestClient(t, server.URL, time.Second).Infer(context.Background(), testPayload(), testKey)
	if result.ErrorKind != domain.KindUnknownError {
		t.Fatalf("expected unknown error, got %+v", result)
	}
}

func TestInferRejectsMissingCredential(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer server.Close()

	result := newTestClient(t, server.URL, time.Second).Infer(context.Background(), testPayload(), "  ")
	if result.ErrorKind != domain.KindAuthError {
		t.Fatalf("expected auth error, got %+v", result)
	}
	if called {
		t.Fatalf("expected no request without credential")
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	if got := ParseRetryAfterHeader("30"); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	for _, v := range []string{"", "-1", "soon", "Wed, 21 Oct 2015 07:28:00 GMT"} {
		if got := ParseRetryAfterHeader(v); got != 0 {
			t.Fatalf("expected 0 for %q, got %s", v, got)
		}
	}
}

func TestRedact(t *testing.T) {
	got := redact("bad key sk-proj-abcdef123456 and "+testKey, testKey)
	if strings.Contains(got, "abcdef123456") || strings.Contains(got, testKey) {
		t.Fatalf("expected secrets redacted, got %q", got)
	}
}
