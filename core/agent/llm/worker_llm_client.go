// Package llm adapts the hosted chat completion API to the classifier's
// TextGenerator port.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const DefaultModel = "gpt-4o-mini"

var errEmptyCompletion = errors.New("completion returned no choices")

type ClientConfig struct {
	APIKey      string
	BaseURL     string // optional, for OpenAI compatible gateways
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client implements out.TextGenerator on go-openai, guarded by a circuit
// breaker so a failing upstream is skipped quickly and the classifier can
// fall back to rule scoring.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	cb          *gobreaker.CircuitBreaker
	log         *logger.Logger
}

var _ out.TextGenerator = (*Client)(nil)

func NewClientWithConfig(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	log := logger.WithField("component", "llm_client")
	cbSettings := gobreaker.Settings{
		Name:        "llm-api",
		MaxRequests: 3,                // probes allowed while half-open
		Interval:    60 * time.Second, // closed-state counter reset
		Timeout:     30 * time.Second, // open-state duration before half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			// Client errors are our fault, not the upstream's.
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
		log:         log,
	}
}

// Generate sends a system instruction plus prompt. JSON format requests a
// strict JSON object reply.
func (c *Client) Generate(ctx context.Context, req out.GenerateRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}
	if req.Format == out.ResponseFormatJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", c.wrapError(err)
	}
	return result.(string), nil
}

// State reports the breaker state for health checks.
func (c *Client) State() string {
	return c.cb.State().String()
}

func (c *Client) wrapError(err error) error {
	if status := httpStatus(err); status == http.StatusTooManyRequests {
		return &domain.RateLimitError{Err: err}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Debug("llm call short-circuited: %v", err)
	}
	return &domain.UpstreamUnavailableError{Op: "llm", Err: err}
}

func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func isClientError(err error) bool {
	status := httpStatus(err)
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}
