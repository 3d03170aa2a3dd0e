package messageguardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/textutil"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "message-guardrail"

	truncationMarker = "..."
	maxPasses        = 3
)

type Handler struct {
	config *Config
	rules  []Rule
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		rules:  DefaultRules,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

// WithRules swaps the rule table, e.g. for a tenant-specific rule set.
func (h *Handler) WithRules(rules []Rule) *Handler {
	h.rules = rules
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(client, job, h.config.Timeout, h.logger, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := camunda.DecodeVariables(job, &input); err != nil {
			return nil, err
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	text := textFromRaw(input.Text)

	var result Result
	if input.Direction == DirectionOutput {
		result = h.ValidateResponse(ctx, text)
	} else {
		input.Direction = DirectionInput
		result = h.ValidateInput(ctx, text)
	}
	return &Output{Direction: input.Direction, Result: result}, nil
}

// ValidateInput sanitizes an inbound customer message.
func (h *Handler) ValidateInput(ctx context.Context, text string) Result {
	return h.validate(ctx, DirectionInput, text, h.config.MaxInputLength)
}

// ValidateResponse sanitizes generated text before it is sent.
func (h *Handler) ValidateResponse(ctx context.Context, text string) Result {
	return h.validate(ctx, DirectionOutput, text, h.config.MaxOutputLength)
}

func (h *Handler) validate(ctx context.Context, direction Direction, text string, maxLen int) Result {
	result := Result{
		IsSafe:     true,
		Flags:      []string{},
		Categories: []string{},
		Warnings:   []string{},
	}
	if text == "" {
		return result
	}

	seen := make(map[string]bool)
	for _, r := range h.rules {
		for pass := 0; pass < maxPasses; pass++ {
			matches := r.Pattern.FindAllStringIndex(text, -1)
			if len(matches) == 0 {
				break
			}
			for range matches {
				result.Flags = append(result.Flags, r.ID)
				metrics.SecurityFlags.WithLabelValues(string(direction), r.Category, string(r.Severity)).Inc()
			}
			text = r.Pattern.ReplaceAllLiteralString(text, h.config.Placeholder)

			if !seen[r.Category] {
				seen[r.Category] = true
				result.Categories = append(result.Categories, r.Category)
				result.Warnings = append(result.Warnings, "filtered "+r.Category+" content")
			}
			if r.Severity == SeverityHigh {
				result.IsSafe = false
				result.Severity = SeverityHigh
			} else if result.Severity == "" {
				result.Severity = r.Severity
			}
		}
	}
	// The cap applies to the sanitized text; placeholders can be longer than what they replace.
	text, result.Truncated = textutil.Truncate(text, maxLen, truncationMarker)
	if result.Truncated {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s truncated to %d characters", direction, maxLen))
	}
	result.SanitizedText = text

	if len(result.Flags) > 0 {
		h.emit(ctx, SecurityEvent{
			ID:             uuid.NewString(),
			Direction:      direction,
			Severity:       result.Severity,
			Categories:     result.Categories,
			FlagCount:      len(result.Flags),
			RuleSetVersion: RuleSetVersion,
			DetectedAt:     time.Now().UTC(),
		})
	}
	return result
}

func (h *Handler) emit(_ context.Context, event SecurityEvent) {
	fields := map[string]interface{}{
		"eventId":        event.ID,
		"direction":      string(event.Direction),
		"severity":       string(event.Severity),
		"categories":     event.Categories,
		"flagCount":      event.FlagCount,
		"ruleSetVersion": event.RuleSetVersion,
	}
	if event.Severity == SeverityHigh {
		h.logger.Warn("security event", fields)
		return
	}
	h.logger.Info("security event", fields)
}

func textFromRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
