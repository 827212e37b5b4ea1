// cmd/assistant-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"family-assistant/internal/assistant"
	"family-assistant/internal/assistant/agents"
	"family-assistant/internal/assistant/dispatcher"
	"family-assistant/internal/assistant/entities"
	"family-assistant/internal/assistant/identity"
	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/assistant/neutralvoice"
	"family-assistant/internal/assistant/state"
	"family-assistant/internal/common/auth"
	commonaws "family-assistant/internal/common/aws"
	"family-assistant/internal/common/calendar"
	"family-assistant/internal/common/camunda"
	"family-assistant/internal/common/config"
	"family-assistant/internal/common/database"
	"family-assistant/internal/common/eventbus"
	commonhttp "family-assistant/internal/common/http"
	"family-assistant/internal/common/knowledge"
	"family-assistant/internal/common/learning"
	"family-assistant/internal/common/llm"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/observability"
	"family-assistant/internal/common/search"
	"family-assistant/internal/common/store"
	"family-assistant/pkg/registry"

	cfi "family-assistant/internal/workers/assistant/classify-family-intent"
	nm "family-assistant/internal/workers/assistant/neutralize-message"
	pfm "family-assistant/internal/workers/assistant/process-family-message"
)

const (
	defaultRegistryPath = "configs/activity-registry.json"
	identityTTL         = 30 * 24 * time.Hour
	learningLogLength   = 500
)

func main() {
	bootLog := logger.New("info", "console")
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assistant manager...", zap.String("provider", cfg.Assistant.Provider))

	obs := observability.New("assistant-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebeClient, err := camunda.Connect(ctx, camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: cfg.Camunda.Insecure,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, 10, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err), zap.Bool("retryable", camunda.IsRetryableError(err)))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = camunda.RetryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err), zap.Bool("retryable", camunda.IsRetryableError(err)))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = camunda.RetryWithBackoff(ctx, func() error {
		return database.PingRedis(ctx, rdb)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err), zap.Bool("retryable", camunda.IsRetryableError(err)))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	svc, voice, classifier, extractor, disp := buildAssistant(ctx, cfg, pg, rdb, obs, log)
	defer disp.WaitLearning()

	// --- Workers ---
	regPath := cfg.Registry.Path
	if regPath == "" {
		regPath = defaultRegistryPath
	}
	reg, err := registry.LoadRegistry(regPath)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.String("path", regPath), zap.Error(err))
	}
	if problems := reg.Validate(); len(problems) > 0 {
		zapLog.Fatal("activity registry is invalid", zap.Strings("problems", problems))
	}

	var workers []worker.JobWorker
	start := func(taskType string, wcfg config.WorkerConfig, handler camunda.JobHandlerFunc) {
		if w := camunda.StartWorker(zeebeClient, taskType, wcfg, handler, log); w != nil {
			workers = append(workers, w)
		}
	}

	if wcfg := config.GetWorkerConfig(cfg, pfm.TaskType); wcfg.Enabled {
		activity, _ := reg.Find(pfm.TaskType)
		handler, err := pfm.NewHandler(pfm.NewConfig(wcfg, activity), svc, log)
		if err != nil {
			zapLog.Fatal("failed to create process-family-message handler", zap.Error(err))
		}
		start(pfm.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, cfi.TaskType); wcfg.Enabled {
		activity, _ := reg.Find(cfi.TaskType)
		handler, err := cfi.NewHandler(cfi.NewConfig(wcfg, activity), classifier, extractor, log)
		if err != nil {
			zapLog.Fatal("failed to create classify-family-intent handler", zap.Error(err))
		}
		start(cfi.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, nm.TaskType); wcfg.Enabled {
		activity, _ := reg.Find(nm.TaskType)
		handler, err := nm.NewHandler(nm.NewConfig(wcfg, activity), voice, log)
		if err != nil {
			zapLog.Fatal("failed to create neutralize-message handler", zap.Error(err))
		}
		start(nm.TaskType, wcfg, handler.Handle)
	}

	zapLog.Info("Assistant workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.DefaultServeMux
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(rctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err)
			return
		}
		if err := database.PingRedis(rctx, rdb); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.HealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
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

	for _, w := range workers {
		w.Close()
	}
	for _, w := range workers {
		w.AwaitClose()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Assistant manager stopped gracefully")
}

// buildAssistant wires the conversational pipeline. Optional integrations
// (Elasticsearch, Keycloak, SNS, SES, the knowledge graph) are skipped when
// unconfigured or unreachable.
func buildAssistant(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, rdb *redis.Client, obs *observability.Observability, log logger.Logger) (*assistant.Service, *neutralvoice.Filter, *intent.Classifier, *entities.Extractor, *dispatcher.Dispatcher) {
	a := cfg.Assistant
	prefix := cfg.Database.Redis.KeyPrefix
	storeTimeout := config.GetDuration(a.StoreTimeout)

	completion, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Error("completion client setup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	docs, err := store.NewPostgresStore(pg.DB, cfg.Database.Postgres.DocumentTable, storeTimeout)
	if err != nil {
		log.Error("document store setup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	voice := neutralvoice.New(log)
	memory := state.NewRedisMemory(rdb, prefix, config.GetDuration(a.RepeatWindowMS))
	classifier := intent.NewClassifier(completion, memory, intent.Options{
		DampeningFactor: a.DampeningFactor,
		DampeningFloor:  a.DampeningFloor,
	}, log)
	extractor := entities.NewExtractor(completion, log)

	var validator identity.TokenValidator
	if kc := cfg.Auth.Keycloak; kc.URL != "" {
		validator = auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret, storeTimeout)
	}
	resolver := identity.NewResolver(validator, docs, identity.NewRedisPersistence(rdb, prefix, identityTTL), identity.Options{
		AllowDemo:    a.AllowDemoIdentity,
		DemoFamilyID: a.DemoFamilyID,
		DemoUserID:   a.DemoUserID,
	}, log)

	disp := dispatcher.New(classifier, extractor, resolver, voice, dispatcher.Options{
		MinConfidence:   a.MinConfidence,
		LearningTimeout: config.GetDuration(a.LearningTimeout),
	}, log,
		dispatcher.WithLearning(learning.NewRedisRecorder(rdb, prefix, learningLogLength)),
		dispatcher.WithObservability(obs),
		dispatcher.WithStats(state.NewStats()),
	)

	actions := dispatcher.NewActions(docs, calendar.NewStoreCalendar(docs), log, integrations(ctx, cfg, log)...)
	actions.RegisterAll(disp)

	var graph knowledge.Graph
	if kg := cfg.APIs.KnowledgeGraph; kg.BaseURL != "" {
		graph = knowledge.NewClient(
			commonhttp.NewClient(kg.BaseURL, kg.APIKey, config.GetDuration(kg.Timeout), 2),
			config.GetDuration(a.KnowledgeTimeout),
			log,
			knowledge.WithCache(rdb, prefix, time.Duration(a.KnowledgeCacheTTLS)*time.Second),
		)
	}
	responder := agents.NewResponder(completion, graph, voice, agents.ResponderOptions{
		KnowledgeTimeout: config.GetDuration(a.KnowledgeTimeout),
		RecentWindow:     a.RecentWindow,
	}, log, agents.WithObservability(obs))

	svc, err := assistant.NewService(assistant.Components{
		Classifier: classifier,
		Dispatcher: disp,
		Responder:  responder,
		Voice:      voice,
	}, assistant.Options{RecentWindow: a.RecentWindow}, log)
	if err != nil {
		log.Error("assistant service setup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	return svc, voice, classifier, extractor, disp
}

// integrations returns the optional action dependencies that are configured
// and reachable.
func integrations(ctx context.Context, cfg *config.Config, log logger.Logger) []dispatcher.ActionsOption {
	var opts []dispatcher.ActionsOption
	storeTimeout := config.GetDuration(cfg.Assistant.StoreTimeout)

	if esCfg := cfg.Database.Elasticsearch; esCfg.GetURL() != "" {
		es, err := database.NewElasticsearch(esCfg)
		if err == nil {
			err = database.PingElasticsearch(ctx, es)
		}
		if err != nil {
			log.Warn("provider search disabled", map[string]interface{}{"error": err.Error()})
		} else {
			opts = append(opts, dispatcher.WithSearch(search.NewProviderIndex(es, esCfg.ProviderIndex, storeTimeout)))
		}
	}

	aws := cfg.Integrations.AWS
	if aws.SNS.Enabled {
		client, err := commonaws.NewSNSClient(ctx, aws.Region)
		if err != nil {
			log.Warn("sns notifications disabled", map[string]interface{}{"error": err.Error()})
		} else {
			opts = append(opts, dispatcher.WithPublisher(eventbus.NewSNSPublisher(client, aws.SNS.TopicARN, storeTimeout, log)))
		}
	}
	if aws.SES.Enabled {
		client, err := commonaws.NewSESClient(ctx, aws.Region)
		if err != nil {
			log.Warn("ses invites disabled", map[string]interface{}{"error": err.Error()})
		} else {
			opts = append(opts, dispatcher.WithInviter(eventbus.NewSESInviter(client, aws.SES.FromEmail, storeTimeout)))
		}
	}
	return opts
}

func writeStatus(w http.ResponseWriter, code int, status string, err error) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
