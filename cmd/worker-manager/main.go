// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"assistant-workers/internal/common/aws"
	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/genai"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/observability"
	"assistant-workers/internal/common/ratelimit"
	"assistant-workers/internal/common/semantic"
	"assistant-workers/internal/common/zoho"
	"assistant-workers/internal/repository"
	"assistant-workers/pkg/registry"

	pm "assistant-workers/internal/workers/ai-conversation/process-message"
	sr "assistant-workers/internal/workers/ai-conversation/synthesize-response"
	rc "assistant-workers/internal/workers/knowledge/retrieve-context"
	sc "assistant-workers/internal/workers/knowledge/score-confidence"
	al "assistant-workers/internal/workers/lead/advance-lead-state"
	tu "assistant-workers/internal/workers/lead/track-unanswered-question"
	mg "assistant-workers/internal/workers/security/message-guardrail"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// stores groups the backend-specific implementations selected from config.
type stores struct {
	conversations interface {
		al.ConversationStore
		pm.ConversationStore
	}
	content   rc.ContentStore
	questions tu.QuestionStore
	sessions  pm.SessionStore
	limiter   ratelimit.Store
	cache     rc.Cache
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	p := cfg.Pipeline

	// --- Zeebe ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClient(ctx, cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	var readiness []func(context.Context) error
	s := stores{
		conversations: repository.NewMemoryConversationStore(),
		content:       repository.NewMemoryContentStore(),
		questions:     repository.NewMemoryQuestionStore(),
		sessions:      repository.NewMemorySessionStore(),
		limiter:       ratelimit.NewMemoryStore(),
	}

	// --- PostgreSQL ---
	if p.StoreBackend == "postgres" || p.Retrieval.Backend == "postgres" {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		readiness = append(readiness, pg.Ping)
		zapLog.Info("PostgreSQL connected successfully")

		if p.StoreBackend == "postgres" {
			s.conversations = repository.NewPostgresConversationStore(pg.DB)
			s.questions = repository.NewPostgresQuestionStore(pg.DB)
		}
		if p.Retrieval.Backend == "postgres" {
			s.content = repository.NewPostgresContentStore(pg.DB)
		}
	}

	// --- Elasticsearch ---
	if p.Retrieval.Backend == "elasticsearch" {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		readiness = append(readiness, esClient.Ping)
		s.content = repository.NewElasticsearchContentStore(esClient.Client, cfg.Database.Elasticsearch.ContentIndex)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Redis ---
	if p.RateLimit.Backend == "redis" || p.SessionBackend == "redis" || p.Retrieval.CacheTTL > 0 {
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		readiness = append(readiness, rdb.Ping)
		zapLog.Info("Redis connected successfully")

		if p.RateLimit.Backend == "redis" {
			s.limiter = ratelimit.NewRedisStore(rdb)
		}
		if p.SessionBackend == "redis" {
			s.sessions = repository.NewRedisSessionStore(rdb)
		}
		if p.Retrieval.CacheTTL > 0 {
			s.cache = rc.NewRedisCache(rdb)
		}
	}

	// --- External services ---
	generator := genai.New(cfg.APIs.GenAI)
	if _, ok := generator.(genai.Unavailable); ok {
		zapLog.Warn("generative backend not configured, static replies and rule-based analysis only")
	}

	var scorer semantic.Scorer
	if httpScorer := semantic.NewHTTPScorer(cfg.APIs.Semantic); httpScorer != nil {
		scorer = httpScorer
	}

	var notifier al.EscalationNotifier
	if esc := cfg.Notifications.Escalation; esc.Enabled {
		n, err := newEscalationNotifier(ctx, cfg)
		if err != nil {
			zapLog.Error("escalation notifier disabled", zap.Error(err))
		} else {
			notifier = n
		}
	}

	var crm al.LeadSink
	if z := cfg.Integrations.Zoho; z.Enabled {
		crm = zoho.NewCRMClient(z.BaseURL, z.AuthToken)
	}
	zapLog.Info("All external service clients initialized",
		zap.Bool("semanticScorer", scorer != nil),
		zap.Bool("escalation", notifier != nil),
		zap.Bool("crm", crm != nil),
	)

	// --- Handlers ---
	generatorTimeout := config.GetDuration(p.GeneratorTimeout)

	guardrailCfg := mg.LoadConfig()
	guardrailCfg.MaxInputLength = p.MaxInputLength
	guardrailCfg.MaxOutputLength = p.MaxOutputLength
	guardrail := mg.NewHandler(guardrailCfg, log)

	retrievalCfg := rc.LoadConfig()
	retrievalCfg.Backend = p.Retrieval.Backend
	retrievalCfg.DefaultLimit = p.Retrieval.DefaultLimit
	retrievalCfg.MaxLimit = p.Retrieval.MaxLimit
	retrievalCfg.Threshold = p.Retrieval.Threshold
	retrievalCfg.LexicalWeight = p.Retrieval.LexicalWeight
	retrievalCfg.SemanticWeight = p.Retrieval.SemanticWeight
	retrievalCfg.CacheTTL = time.Duration(p.Retrieval.CacheTTL) * time.Second
	var retrieverScorer semantic.Scorer
	if p.Features.SemanticScore {
		retrieverScorer = scorer
	}
	retriever := rc.NewHandler(retrievalCfg, s.content, retrieverScorer, s.cache, log)

	scoringCfg := sc.LoadConfig()
	scoringCfg.DefaultThreshold = p.ConfidenceThreshold
	scoringCfg.Weights = sc.Weights{
		Relevance:     p.Weights.Relevance,
		Completeness:  p.Weights.Completeness,
		SourceQuality: p.Weights.SourceQuality,
		SemanticMatch: p.Weights.SemanticMatch,
	}
	confidence := sc.NewHandler(scoringCfg, scorer, log)

	synthCfg := sr.LoadConfig()
	synthCfg.GeneratorTimeout = generatorTimeout
	synthesizer := sr.NewHandler(synthCfg, generator, log)

	leadCfg := al.LoadConfig()
	leadCfg.GeneratorTimeout = generatorTimeout
	leads := al.NewHandler(leadCfg, s.conversations, generator, notifier, crm, log)

	tracker := tu.NewHandler(tu.LoadConfig(), s.questions, log)

	limiter := ratelimit.NewLimiter(s.limiter, p.RateLimit.Requests, time.Duration(p.RateLimit.WindowSeconds)*time.Second, log)

	pipelineCfg := pm.LoadConfig()
	pipelineCfg.Features = pm.Features{
		LeadTracking:       p.Features.LeadTracking,
		UnansweredTracking: p.Features.UnansweredTracking,
		OutputGuardrail:    p.Features.OutputGuardrail,
		SemanticScore:      p.Features.SemanticScore,
	}
	pipeline := pm.NewHandler(pipelineCfg, pm.Dependencies{
		Guardrail:     guardrail,
		Retriever:     retriever,
		Scorer:        confidence,
		Synthesizer:   synthesizer,
		Leads:         leads,
		Questions:     tracker,
		Limiter:       limiter,
		Conversations: s.conversations,
		Sessions:      s.sessions,
	}, obs, log)

	// --- Workers ---
	handlers := []struct {
		activity registry.Activity
		handle   worker.JobHandler
	}{
		{registry.Activity{TaskType: mg.TaskType, DisplayName: "Message Guardrail", Category: "security",
			Description: "Sanitizes inbound and generated text against injection patterns",
			ErrorCodes:  []string{string(apperrors.ErrCodeInvalidInput)}}, guardrail.Handle},
		{registry.Activity{TaskType: rc.TaskType, DisplayName: "Retrieve Context", Category: "knowledge",
			Description: "Ranks business content sections against a question",
			ErrorCodes:  []string{string(apperrors.ErrCodeInvalidInput), string(apperrors.ErrCodeRetrievalFailed)}}, retriever.Handle},
		{registry.Activity{TaskType: sc.TaskType, DisplayName: "Score Confidence", Category: "knowledge",
			Description: "Combines relevance, completeness, source quality and semantic match",
			ErrorCodes:  []string{string(apperrors.ErrCodeInvalidInput)}}, confidence.Handle},
		{registry.Activity{TaskType: sr.TaskType, DisplayName: "Synthesize Response", Category: "ai-conversation",
			Description: "Produces a greeting, grounded answer or fallback reply",
			ErrorCodes:  []string{string(apperrors.ErrCodeGenerationFailed), string(apperrors.ErrCodeGenerationTimeout)}}, synthesizer.Handle},
		{registry.Activity{TaskType: al.TaskType, DisplayName: "Advance Lead State", Category: "lead",
			Description: "Analyses a message and moves the conversation through the sales funnel",
			ErrorCodes:  []string{string(apperrors.ErrCodeInvalidInput), string(apperrors.ErrCodePersistenceFailed)}}, leads.Handle},
		{registry.Activity{TaskType: tu.TaskType, DisplayName: "Track Unanswered Question", Category: "lead",
			Description: "Deduplicates low-confidence questions per business",
			ErrorCodes:  []string{string(apperrors.ErrCodePersistenceFailed)}}, tracker.Handle},
		{registry.Activity{TaskType: pm.TaskType, DisplayName: "Process Inbound Message", Category: "ai-conversation",
			Description: "Runs the full guardrail, retrieval, scoring, synthesis and lead pipeline",
			ErrorCodes:  []string{string(apperrors.ErrCodeInvalidInput), string(apperrors.ErrCodeUnsafeInput), string(apperrors.ErrCodeRateLimited)}}, pipeline.Handle},
	}

	activities := registry.New(cfg.App.Version)
	activities.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	var workers []worker.JobWorker
	for _, h := range handlers {
		wcfg := config.GetWorkerConfig(cfg, h.activity.TaskType)
		a := h.activity
		a.Enabled = wcfg.Enabled
		a.Timeout = config.GetDuration(wcfg.Timeout).String()
		a.Retries = wcfg.MaxRetries
		activities.Add(a)

		if jw := camunda.StartWorker(zeebeClient, a.TaskType, wcfg, h.handle, log); jw != nil {
			workers = append(workers, jw)
		}
	}
	if err := activities.Validate(); err != nil {
		zapLog.Fatal("invalid activity registry", zap.Error(err))
	}
	zapLog.Info("workers registered", zap.Int("active", len(workers)), zap.Int("total", len(handlers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := append([]func(context.Context) error{func(c context.Context) error {
			return camunda.HealthCheck(c, zeebeClient, 3*time.Second)
		}}, readiness...)
		for _, check := range checks {
			if err := check(checkCtx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
		taskType := r.URL.Query().Get("taskType")
		if taskType == "" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(activities)
			return
		}
		a, ok := activities.Lookup(taskType)
		if !ok {
			writeStatus(w, http.StatusNotFound, map[string]string{"error": "unknown taskType " + taskType})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a)
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := cfg.App.HTTPPort
	if port == 0 {
		port = 8080
	}
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func newEscalationNotifier(ctx context.Context, cfg *config.Config) (*aws.EscalationNotifier, error) {
	esc := cfg.Notifications.Escalation
	region := cfg.Notifications.AWS.Region

	var snsClient *aws.SNSClient
	if esc.SNSTopicARN != "" {
		c, err := aws.NewSNSClient(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		snsClient = c
	}
	var sesClient *aws.SESClient
	if esc.FromEmail != "" && esc.ToEmail != "" {
		c, err := aws.NewSESClient(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		sesClient = c
	}
	if snsClient == nil && sesClient == nil {
		return nil, fmt.Errorf("no escalation channel configured")
	}
	return aws.NewEscalationNotifier(snsClient, sesClient, esc.SNSTopicARN, esc.FromEmail, esc.ToEmail), nil
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
