package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ChatConfig configures the OpenAI-compatible chat transport.
type ChatConfig struct {
	Provider    string // openai, azure
	BaseURL     string
	Deployment  string // azure only
	APIVersion  string // azure only
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ChatClient implements Completer over /chat/completions.
type ChatClient struct {
	client      *resty.Client
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
}

// NewChatClient creates a chat transport.
// Parameters:
//   - cfg: provider, endpoint, credentials and request defaults.
//
// Returns:
//   - *ChatClient: client ready to be wrapped by a Gateway.
func NewChatClient(cfg ChatConfig) *ChatClient {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	var endpoint string
	if cfg.Provider == "azure" {
		client.SetHeader("api-key", cfg.APIKey)
		client.SetQueryParam("api-version", cfg.APIVersion)
		endpoint = fmt.Sprintf("%s/openai/deployments/%s/chat/completions", baseURL, url.PathEscape(cfg.Deployment))
	} else {
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
		endpoint = baseURL + "/chat/completions"
	}

	return &ChatClient{
		client:      client,
		endpoint:    endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Endpoint returns the chat completion URL.
func (c *ChatClient) Endpoint() string {
	return c.endpoint
}

type chatRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Complete sends one chat completion request.
func (c *ChatClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature != 0 {
		body.Temperature = req.Temperature
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	var errResp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&errResp).
		Post(c.endpoint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return "", &Error{Kind: KindCanceled, Err: err}
		}
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("failed to call chat API: %w", err)}
	}

	if httpResp.IsError() {
		msg := string(httpResp.Body())
		if errResp.Error != nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", &Error{
			Kind:       kindForStatus(httpResp.StatusCode()),
			RetryAfter: parseRetryAfter(httpResp.Header().Get("Retry-After"), time.Now()),
			Err:        fmt.Errorf("chat API returned HTTP %d: %s", httpResp.StatusCode(), msg),
		}
	}

	if resp.Error != nil {
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("chat API error: %s", resp.Error.Message)}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("no choices in response (status: %d)", httpResp.StatusCode())}
	}
	return resp.Choices[0].Message.Content, nil
}

// kindForStatus maps an HTTP error status to a failure kind.
func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindTransport
	default:
		return KindClient
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
