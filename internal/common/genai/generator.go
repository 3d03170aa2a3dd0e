// Package genai is the generative text backend used for greetings, grounded answers,
// message analysis and lead state proposals.
package genai

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/metrics"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// CompletionRequest is one prompt/system-prompt pair sent to the backend.
type CompletionRequest struct {
	Operation    string
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	// Temperature is nil for the configured default; a pointer to 0 asks for deterministic output.
	Temperature  *float64
}

// Temperature returns a pointer for CompletionRequest.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

// Generator produces text. Implementations must honour ctx cancellation.
type Generator interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// New returns the configured backend, or Unavailable when no API key is set.
func New(cfg config.GenAIConfig) Generator {
	if cfg.APIKey == "" {
		return Unavailable{}
	}
	return NewAnthropicGenerator(cfg)
}

// Unavailable always fails; callers fall back to their static paths.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, CompletionRequest) (string, error) {
	return "", errors.NewGeneratorUnavailableError()
}

type AnthropicGenerator struct {
	client      sdk.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
}

func NewAnthropicGenerator(cfg config.GenAIConfig, opts ...option.RequestOption) *AnthropicGenerator {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &AnthropicGenerator{
		client:      sdk.NewClient(clientOpts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		limiter:     limiter,
	}
}

func (g *AnthropicGenerator) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	op := req.Operation
	if op == "" {
		op = "completion"
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.complete(ctx, req)
	metrics.GeneratorLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.GeneratorCalls.WithLabelValues(op, "timeout").Inc()
			return "", errors.NewGenerationTimeoutError(op, g.timeout)
		}
		metrics.GeneratorCalls.WithLabelValues(op, "error").Inc()
		return "", errors.NewGenerationError(op, err)
	}
	metrics.GeneratorCalls.WithLabelValues(op, "ok").Inc()
	return text, nil
}

func (g *AnthropicGenerator) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "anthropic: throttle")
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	temperature := g.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(g.model),
		MaxTokens:   int64(maxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
		Temperature: sdk.Float(temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", eris.New("anthropic: empty completion")
	}
	return text, nil
}
