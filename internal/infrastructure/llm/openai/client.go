// Package openai calls OpenAI-compatible chat completion endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Config struct {
	BaseURL string
	// Timeout bounds every call. It is required.
	Timeout time.Duration
	// RequestsPerMinute paces outgoing calls. Zero disables pacing.
	RequestsPerMinute int
	Logger            *slog.Logger
}

// Client implements ports.InferenceClient. One Infer call is one HTTP round trip.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new inference client", errors.New("timeout is required"))
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		baseURL: baseURL,
		timeout: cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		logger:  logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Infer never returns a Go error; failures are reported through the result's ErrorKind.
func (c *Client) Infer(ctx context.Context, payload domain.PromptPayload, credential string) (result domain.InferenceResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = domain.FailedInference(domain.KindUnknownError, fmt.Sprintf("inference panic: %v", r))
		}
		c.logger.Debug("inference.call",
			"model", payload.Model,
			"success", result.Success,
			"error_kind", result.ErrorKind,
			"duration_ms", time.Since(started).Milliseconds(),
			"total_tokens", result.Usage.Total,
		)
	}()

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.FailedInference(domain.KindAuthError, "missing API credential")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.FailedInference(domain.KindTimeout, fmt.Sprintf("waiting for request slot: %v", err))
		}
	}

	request := chatRequest{
		Model: payload.Model,
		Messages: []chatMessage{
			{Role: "system", Content: payload.System},
			{Role: "user", Content: payload.User},
		},
		MaxTokens:   payload.MaxTokens,
		Temperature: payload.Temperature,
	}

	var response chatResponse
	if err := c.postJSON(ctx, "/chat/completions", credential, request, &response); err != nil {
		return domain.FailedInference(ErrorKindFor(err), redact(err.Error(), credential))
	}

	result = domain.InferenceResult{
		Success: true,
		Model:   response.Model,
	}
	if result.Model == "" {
		result.Model = payload.Model
	}
	if response.Usage != nil {
		result.Usage = domain.TokenUsage{
			Prompt:     response.Usage.PromptTokens,
			Completion: response.Usage.CompletionTokens,
			Total:      response.Usage.TotalTokens,
		}
	}
	if len(response.Choices) > 0 {
		result.Text = strings.TrimSpace(response.Choices[0].Message.Content)
		result.FinishReason = response.Choices[0].FinishReason
	}
	return result
}
