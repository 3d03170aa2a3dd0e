package synthesizeresponse

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/genai"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingGenerator struct{}

func (blockingGenerator) Complete(ctx context.Context, _ genai.CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

var business = models.BusinessProfile{ID: "b1", Name: "Acme Web", Industry: "web design"}

func sources(n int) []models.ContextSource {
	out := make([]models.ContextSource, n)
	for i := range out {
		out[i] = models.ContextSource{
			ID:          string(rune('a' + i)),
			OriginType:  models.OriginContext,
			SectionName: "section",
			Content:     "source content " + string(rune('A'+i)),
		}
	}
	return out
}

func newTestHandler(t *testing.T, gen genai.Generator) *Handler {
	return NewHandler(LoadConfig(), gen, logger.NewTestLogger(t))
}

func TestIsPleasantry(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"Hi!", true},
		{"hello there", true},
		{"Good morning", true},
		{"Thanks so much!", true},
		{"thank you for your help", true},
		{"Hi, how are you?", true},
		{"How's it going?", true},
		{"Can you help me?", true},
		{"I need help please", true},
		{"¡Hola!", true},
		{"¿Cómo estás?", true},
		{"Muchas gracias", true},
		{"Olá, tudo bem?", true},
		{"Obrigada", true},
		{"Pode me ajudar?", true},
		{"Hi, what are your prices?", false},
		{"Can you help me with a refund?", false},
		{"What services do you offer?", false},
		{"", false},
		{"!!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPleasantry(tt.message))
		})
	}
}

func TestGenerate_Greeting(t *testing.T) {
	gen := &genai.Scripted{Replies: map[string]string{"greeting": "Hi there! How can I help?"}}
	h := newTestHandler(t, gen)

	out := h.Generate(context.Background(), &Input{Question: "Hello!", Business: business, Language: "en", IsConfident: true})

	assert.Equal(t, MethodGreeting, out.Metadata.Method)
	assert.Equal(t, "Hi there! How can I help?", out.Response)
	assert.Empty(t, out.ContextSourcesUsed)
	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "greeting", calls[0].Operation)
	assert.Contains(t, calls[0].SystemPrompt, "Do not state any facts")
}

func TestGenerate_GreetingStaticOnGeneratorError(t *testing.T) {
	h := newTestHandler(t, genai.Unavailable{})

	out := h.Generate(context.Background(), &Input{Question: "hola", Business: business, Language: "es-MX"})

	assert.Equal(t, MethodGreetingStatic, out.Metadata.Method)
	assert.Contains(t, out.Response, "Acme Web")
	assert.Contains(t, out.Response, "Hola")
	assert.Equal(t, "es", out.Metadata.Language)
	assert.Equal(t, string(apperrors.ErrCodeGeneratorUnavailable), out.Metadata.GeneratorError)
}

func TestGenerate_ConfidentUsesTopSourcesOnly(t *testing.T) {
	gen := &genai.Scripted{Replies: map[string]string{"answer": "We build websites and run hosting."}}
	h := newTestHandler(t, gen)

	out := h.Generate(context.Background(), &Input{
		Question:        "What services do you offer?",
		Sources:         sources(4),
		ConfidenceScore: 0.88,
		IsConfident:     true,
		Business:        business,
		Language:        "en",
	})

	assert.Equal(t, MethodConfident, out.Metadata.Method)
	assert.Equal(t, "We build websites and run hosting.", out.Response)
	assert.Len(t, out.ContextSourcesUsed, 3)
	assert.Equal(t, 3, out.Metadata.ContextCount)
	assert.Equal(t, 0.88, out.ConfidenceScore)
	assert.False(t, out.RequiresEscalation)
	assert.Equal(t, 6, out.Metadata.WordCount)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "source content A")
	assert.Contains(t, calls[0].Prompt, "source content C")
	assert.NotContains(t, calls[0].Prompt, "source content D")
	assert.Contains(t, calls[0].SystemPrompt, "ONLY")
	assert.Contains(t, calls[0].SystemPrompt, "Acme Web (web design)")
}

func TestGenerate_ConfidentStaticOnError(t *testing.T) {
	gen := &genai.Scripted{Err: errors.New("quota exceeded")}
	h := newTestHandler(t, gen)

	out := h.Generate(context.Background(), &Input{
		Question:    "Do you do logo design?",
		Sources:     sources(1),
		IsConfident: true,
		Business:    business,
		LeadState:   models.StateInterested,
	})

	assert.Equal(t, MethodConfidentStatic, out.Metadata.Method)
	assert.Equal(t, StaticReply("en", models.StateInterested), out.Response)
	assert.Equal(t, string(apperrors.ErrCodeGenerationFailed), out.Metadata.GeneratorError)
}

func TestGenerate_ConfidentStaticOnTimeout(t *testing.T) {
	cfg := LoadConfig()
	cfg.GeneratorTimeout = 20 * time.Millisecond
	h := NewHandler(cfg, blockingGenerator{}, logger.NewTestLogger(t))

	start := time.Now()
	out := h.Generate(context.Background(), &Input{Question: "Do you host sites?", Sources: sources(1), IsConfident: true})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, MethodConfidentStatic, out.Metadata.Method)
	assert.Equal(t, string(apperrors.ErrCodeGenerationTimeout), out.Metadata.GeneratorError)
	assert.Equal(t, StaticReply("en", models.StateInitialContact), out.Response)
}

func TestGenerate_FallbackWhenNotConfident(t *testing.T) {
	gen := &genai.Scripted{Replies: map[string]string{"*": "should not be used"}}
	h := newTestHandler(t, gen)

	out := h.Generate(context.Background(), &Input{
		Question:        "What is the meaning of life?",
		ConfidenceScore: 0.2,
		Business:        business,
		Language:        "pt-BR",
	})

	assert.Equal(t, MethodFallback, out.Metadata.Method)
	assert.True(t, out.RequiresEscalation)
	assert.Equal(t, fallbackReplies["pt"], out.Response)
	assert.Empty(t, gen.Calls())
	assert.Equal(t, 0, out.Metadata.ContextCount)
	assert.GreaterOrEqual(t, out.ResponseTimeMs, int64(0))
}

func TestStaticReply_CoversEveryState(t *testing.T) {
	for _, lang := range []string{"en", "es", "pt", "fr"} {
		for _, s := range models.AllLeadStates() {
			assert.NotEmpty(t, StaticReply(lang, models.LeadState(s)), "%s/%s", lang, s)
		}
	}
	assert.Equal(t, StaticReply("en", models.StateInitialContact), StaticReply("en", "bogus"))
}
