package synthesizeresponse

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/genai"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/textutil"
	"assistant-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "synthesize-response"

type Handler struct {
	config    *Config
	generator genai.Generator
	logger    logger.Logger
}

func NewHandler(config *Config, generator genai.Generator, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		generator: generator,
		logger:    log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(client, job, h.config.Timeout, h.logger, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := camunda.DecodeVariables(job, &input); err != nil {
			return nil, err
		}
		return h.Generate(ctx, &input), nil
	})
}

// Generate picks exactly one of greeting, confident or fallback and never returns an error.
func (h *Handler) Generate(ctx context.Context, input *Input) *Output {
	start := time.Now()
	lang := supportedLanguage(input.Language)

	out := &Output{
		ConfidenceScore:    input.ConfidenceScore,
		IsConfident:        input.IsConfident,
		ContextSourcesUsed: []models.ContextSource{},
		Metadata: Metadata{
			Language:   lang,
			BusinessID: input.Business.ID,
		},
	}

	switch {
	case IsPleasantry(input.Question):
		reply, err := h.complete(ctx, genai.CompletionRequest{
			Operation:    "greeting",
			Prompt:       input.Question,
			SystemPrompt: greetingSystemPrompt(input.Business, lang),
			MaxTokens:    h.config.MaxTokens,
			Temperature:  genai.Temperature(h.config.GreetingTemperature),
		})
		if err != nil {
			out.Response = greetingReply(lang, input.Business.Name)
			out.Metadata.Method = MethodGreetingStatic
			out.Metadata.GeneratorError = string(err.Code)
		} else {
			out.Response = reply
			out.Metadata.Method = MethodGreeting
		}

	case input.IsConfident:
		used := input.Sources
		if len(used) > h.config.MaxSources {
			used = used[:h.config.MaxSources]
		}
		out.ContextSourcesUsed = append(out.ContextSourcesUsed, used...)

		reply, err := h.complete(ctx, genai.CompletionRequest{
			Operation:    "answer",
			Prompt:       groundedPrompt(input.Question, used),
			SystemPrompt: groundedSystemPrompt(input.Business, lang),
			MaxTokens:    h.config.MaxTokens,
			Temperature:  genai.Temperature(h.config.Temperature),
		})
		if err != nil {
			out.Response = StaticReply(lang, input.LeadState)
			out.Metadata.Method = MethodConfidentStatic
			out.Metadata.GeneratorError = string(err.Code)
		} else {
			out.Response = reply
			out.Metadata.Method = MethodConfident
		}

	default:
		out.Response = fallbackReply(lang)
		out.RequiresEscalation = true
		out.Metadata.Method = MethodFallback
	}

	out.Metadata.ContextCount = len(out.ContextSourcesUsed)
	out.Metadata.ResponseLength = textutil.CharCount(out.Response)
	out.Metadata.WordCount = textutil.WordCount(out.Response)
	out.ResponseTimeMs = time.Since(start).Milliseconds()

	h.logger.Info("response synthesized", map[string]interface{}{
		"businessId":     input.Business.ID,
		"method":         out.Metadata.Method,
		"language":       lang,
		"contextCount":   out.Metadata.ContextCount,
		"responseTimeMs": out.ResponseTimeMs,
	})
	return out
}

// complete bounds one generator call and normalizes every failure to a StandardError.
func (h *Handler) complete(ctx context.Context, req genai.CompletionRequest) (string, *errors.StandardError) {
	ctx, cancel := context.WithTimeout(ctx, h.config.GeneratorTimeout)
	defer cancel()

	text, err := h.generator.Complete(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.NewGenerationError(req.Operation, stderrors.New("empty completion"))
	}
	if err == nil {
		return strings.TrimSpace(text), nil
	}

	stdErr, ok := errors.AsStandard(err)
	if !ok {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			stdErr = errors.NewGenerationTimeoutError(req.Operation, h.config.GeneratorTimeout)
		} else {
			stdErr = errors.NewGenerationError(req.Operation, err)
		}
	}
	h.logger.Warn("generator call failed, using static reply", map[string]interface{}{
		"operation": req.Operation,
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
	return "", stdErr
}

func businessLabel(b models.BusinessProfile) string {
	if b.Name == "" {
		return "this business"
	}
	if b.Industry != "" {
		return fmt.Sprintf("%s (%s)", b.Name, b.Industry)
	}
	return b.Name
}

func greetingSystemPrompt(b models.BusinessProfile, lang string) string {
	return fmt.Sprintf(`You are the friendly messaging assistant for %s.
The customer has sent a greeting, a thank-you or a general request for help.
Reply warmly in one or two short sentences in %s and invite them to ask their question.
Do not state any facts about products, prices, availability or policies.`,
		businessLabel(b), languageNames[lang])
}

func groundedSystemPrompt(b models.BusinessProfile, lang string) string {
	return fmt.Sprintf(`You are the customer assistant for %s.
Answer the customer's question using ONLY the information inside the <context> block.
If the context does not contain the answer, say that you do not have that information.
Never invent prices, dates, policies or contact details.
Reply in %s, in a concise and friendly tone, in plain text without markdown.`,
		businessLabel(b), languageNames[lang])
}

func groundedPrompt(question string, sources []models.ContextSource) string {
	var b strings.Builder
	b.WriteString("<context>\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s / %s\n%s\n\n", i+1, s.OriginType, s.SectionName, strings.TrimSpace(s.Content))
	}
	b.WriteString("</context>\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}
