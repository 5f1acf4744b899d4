// Package main implements memoryd - the persistent memory service
// autonomous agent sessions read guidelines, tools, knowledge, and
// experiences from, and write new ones back into.
//
// This file serves as the entry point and service wiring hub: configuration
// load, storage adapter, embedding engine, rate limiting, circuit breaking,
// classification, learning, librarian recommendations, permissions, and the
// MCP stdio tool server are all assembled here before the server blocks on
// stdin.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"memoryd/internal/breaker"
	"memoryd/internal/classify"
	memcontext "memoryd/internal/context"
	"memoryd/internal/config"
	"memoryd/internal/cursor"
	"memoryd/internal/embedding"
	"memoryd/internal/export"
	"memoryd/internal/handler"
	"memoryd/internal/learn"
	"memoryd/internal/librarian"
	"memoryd/internal/logging"
	"memoryd/internal/mcp"
	"memoryd/internal/metrics"
	"memoryd/internal/permissions"
	"memoryd/internal/ratelimit"
	"memoryd/internal/scheduler"
	"memoryd/internal/store"
)

var (
	configPath string
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "memoryd",
	Short: "memoryd - persistent memory service for autonomous agents",
	Long: `memoryd serves guidelines, tools, knowledge, and experiences to
agent sessions over an MCP stdio tool protocol, classifying free-text
submissions into the right artifact kind and learning new experiences from
hook events as sessions run.

Run without arguments to start the MCP server on stdin/stdout.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("memoryd: initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "memoryd.yaml", "Path to the memoryd configuration file")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// toRule converts a config.LimiterRule (plain ints) into ratelimit.Rule
// (a time.Duration window), since the two packages deliberately don't
// share types.
func toRule(r config.LimiterRule) ratelimit.Rule {
	return ratelimit.Rule{
		MaxRequests: r.MaxRequests,
		Window:      time.Duration(r.WindowMS) * time.Millisecond,
		Burst:       r.Burst,
	}
}

// permissionFor maps a handler operation name onto the coarse read/write
// permission the permissions package grants, since permission grants are
// not issued per CRUD verb.
func permissionFor(op string) string {
	switch op {
	case "get", "list", "history":
		return "read"
	default:
		return "write"
	}
}

// firstDeniedIndex returns the lowest index present in a CheckBatch denial
// map, used to report a deterministic representative error when a bulk
// operation is rejected.
func firstDeniedIndex(denied map[int]error) int {
	first := -1
	for i := range denied {
		if first == -1 || i < first {
			first = i
		}
	}
	return first
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("memoryd: load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("memoryd: invalid config: %w", err)
	}

	if err := logging.Initialize(cfg.DataDir, logging.Config{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: warning: failed to initialize file logging: %v\n", err)
	}
	bootLog := logging.Get(logging.CategoryBoot)
	bootLog.Info("memoryd starting, data_dir=%s", cfg.DataDir)

	adapter, err := store.Open(store.Options{
		Path:          cfg.Memory.DatabasePath,
		BusyTimeoutMS: cfg.Memory.BusyTimeoutMS,
	})
	if err != nil {
		return fmt.Errorf("memoryd: open store: %w", err)
	}
	defer adapter.Close()

	guidelineRepo := store.NewGuidelineRepo(adapter)
	toolRepo := store.NewToolRepo(adapter)
	knowledgeRepo := store.NewKnowledgeRepo(adapter)
	experienceRepo := store.NewExperienceRepo(adapter)

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("memoryd: build embedding engine: %w", err)
	}

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		OpenTimeout:      time.Duration(cfg.Breaker.OpenTimeoutMS) * time.Millisecond,
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
	})
	engine = withBreaker(engine, breakers)

	embedQueue := embedding.NewQueue(
		engine,
		func(ctx context.Context, key embedding.Key, vector []float32, model string) error {
			return adapter.UpsertVector(ctx, key.EntryType, key.EntryID, key.VersionID, model, vector)
		},
		cfg.Embedding.MaxConcurrency,
		cfg.Embedding.MaxAttempts,
		time.Duration(cfg.Embedding.InitialBackoffMS)*time.Millisecond,
		time.Duration(cfg.Embedding.MaxBackoffMS)*time.Millisecond,
		cfg.Embedding.QueueCapacity,
	)
	embedQueue.Start(ctx)
	defer embedQueue.Stop()

	rateLimiter := ratelimit.Build(ratelimit.Settings{
		Backend:            cfg.RateLimit.Backend,
		FailMode:           cfg.RateLimit.FailMode,
		Burst:              toRule(cfg.RateLimit.Burst),
		Global:             toRule(cfg.RateLimit.Global),
		PerAgent:           toRule(cfg.RateLimit.PerAgent),
		RedisAddr:          cfg.RateLimit.Redis.Addr,
		RedisDB:            cfg.RateLimit.Redis.DB,
		RedisDialTimeoutMS: cfg.RateLimit.Redis.DialTimeoutMS,
	})

	cursorSecret := cfg.Cursor.Secret
	if cursorSecret == "" {
		cursorSecret = uuid.NewString()
		bootLog.Warn("no cursor secret configured, generating an ephemeral one; pagination tokens will not survive a restart")
	}
	cursorIssuer, err := cursor.New(cursorSecret, time.Duration(cfg.Cursor.TTLMS)*time.Millisecond, cfg.Cursor.MaxBytes)
	if err != nil {
		return fmt.Errorf("memoryd: build cursor issuer: %w", err)
	}

	met := metrics.New()
	auditWriter := metrics.NewAuditWriter(adapter.DB(), 256)
	defer auditWriter.Close()

	classifier := classify.New(classify.Config{
		CacheSize:          cfg.Classification.CacheSize,
		CacheTTL:           time.Duration(cfg.Classification.CacheTTLMS) * time.Millisecond,
		MinConfidence:      cfg.Classification.MinConfidence,
		MaxFeedbackBoost:   cfg.Classification.MaxFeedbackBoost,
		MaxFeedbackPenalty: cfg.Classification.MaxFeedbackPenalty,
		LLMFallbackEnabled: cfg.Classification.LLMFallbackEnabled,
	}, classify.NewSQLFeedbackStore(adapter.DB(),
		cfg.Classification.MaxFeedbackBoost, cfg.Classification.MaxFeedbackPenalty,
		cfg.Classification.LearningRate, cfg.Classification.FeedbackDecayDays), nil)

	clusterer := librarian.NewFTSClusterer(adapter, 0.5, 20)
	recStore := librarian.NewSQLRecommendationStore(adapter.DB())
	runner := librarian.NewRunner(librarian.Config{
		MinClusterSize:      cfg.Librarian.MinClusterSize,
		PromotionConfidence: cfg.Librarian.PromotionConfidence,
		JobTimeout:          time.Duration(cfg.Librarian.JobTimeoutMS) * time.Millisecond,
	}, recStore, clusterer)

	learnSvc := learn.New(learn.Config{
		MinFailuresForExperience: 3,
		SignificantSummaryLen:    200,
		ErrorPatternThreshold:    3,
		ErrorPatternWindow:       10 * time.Minute,
		LibrarianTriggerCount:    cfg.Learning.LibrarianTriggerCount,
		LibrarianTriggerWindow:   time.Duration(cfg.Learning.LibrarianTriggerWindowMS) * time.Millisecond,
	}, experienceRepo, func(ctx context.Context) {
		if err := runner.Run(ctx); err != nil {
			logging.Get(logging.CategoryLearn).Warn("librarian trigger run failed: %v", err)
		}
	})

	permChecker := permissions.New(permissions.NewSQLStore(adapter.DB()))
	checkPermission := func(ctx context.Context, kind, op string, scope store.Scope) error {
		agentID := memcontext.AgentIDFromContext(ctx)
		if agentID == "" {
			return nil // unauthenticated local tooling; production deployments require agentId.
		}
		return permChecker.Check(ctx, agentID, permissions.Resource{
			ScopeType: string(scope.Type),
			ScopeID:   scope.ID,
			EntryType: kind,
		}, permissionFor(op))
	}
	checkPermissionBatch := func(ctx context.Context, kind, op string, scopes []store.Scope) error {
		agentID := memcontext.AgentIDFromContext(ctx)
		if agentID == "" {
			return nil // unauthenticated local tooling; production deployments require agentId.
		}
		resources := make([]permissions.Resource, len(scopes))
		for i, scope := range scopes {
			resources[i] = permissions.Resource{ScopeType: string(scope.Type), ScopeID: scope.ID, EntryType: kind}
		}
		denied, err := permChecker.CheckBatch(ctx, agentID, resources, permissionFor(op))
		if err != nil {
			return err
		}
		if len(denied) == 0 {
			return nil
		}
		return fmt.Errorf("memoryd: %d of %d items denied, first at index %d: %w", len(denied), len(scopes), firstDeniedIndex(denied), denied[firstDeniedIndex(denied)])
	}

	cursorCodec := newCursorCodec(cursorIssuer)

	guidelineFactory := handler.NewFactory[store.GuidelinePayload]("guideline", guidelineRepo,
		handler.WithValidator[store.GuidelinePayload](guidelineValidator),
		handler.WithPermissionChecker[store.GuidelinePayload](checkPermission),
		handler.WithBatchPermissionChecker[store.GuidelinePayload](checkPermissionBatch),
		handler.WithCursorCodec[store.GuidelinePayload](cursorCodec),
		handler.WithMaxListLimit[store.GuidelinePayload](cfg.Memory.MaxPageSize),
	)
	toolFactory := handler.NewFactory[store.ToolPayload]("tool", toolRepo,
		handler.WithValidator[store.ToolPayload](toolValidator),
		handler.WithPermissionChecker[store.ToolPayload](checkPermission),
		handler.WithBatchPermissionChecker[store.ToolPayload](checkPermissionBatch),
		handler.WithCursorCodec[store.ToolPayload](cursorCodec),
		handler.WithMaxListLimit[store.ToolPayload](cfg.Memory.MaxPageSize),
	)
	knowledgeFactory := handler.NewFactory[store.KnowledgePayload]("knowledge", knowledgeRepo,
		handler.WithValidator[store.KnowledgePayload](knowledgeValidator),
		handler.WithPermissionChecker[store.KnowledgePayload](checkPermission),
		handler.WithBatchPermissionChecker[store.KnowledgePayload](checkPermissionBatch),
		handler.WithCursorCodec[store.KnowledgePayload](cursorCodec),
		handler.WithMaxListLimit[store.KnowledgePayload](cfg.Memory.MaxPageSize),
	)
	experienceFactory := handler.NewFactory[store.ExperiencePayload]("experience", experienceRepo,
		handler.WithValidator[store.ExperiencePayload](experienceValidator),
		handler.WithPermissionChecker[store.ExperiencePayload](checkPermission),
		handler.WithBatchPermissionChecker[store.ExperiencePayload](checkPermissionBatch),
		handler.WithCursorCodec[store.ExperiencePayload](cursorCodec),
		handler.WithMaxListLimit[store.ExperiencePayload](cfg.Memory.MaxPageSize),
	)

	guidelineHandlers := guidelineFactory.Handlers()
	toolHandlers := toolFactory.Handlers()
	knowledgeHandlers := knowledgeFactory.Handlers()
	experienceHandlers := experienceFactory.Handlers()

	withEmbedding[store.GuidelinePayload](guidelineHandlers, embedQueue, "guideline", guidelineEmbedText)
	withEmbedding[store.ToolPayload](toolHandlers, embedQueue, "tool", toolEmbedText)
	withEmbedding[store.KnowledgePayload](knowledgeHandlers, embedQueue, "knowledge", knowledgeEmbedText)
	withEmbedding[store.ExperiencePayload](experienceHandlers, embedQueue, "experience", experienceEmbedText)

	archiver := export.NewSQLArchiver(adapter.DB())
	backup := backupRepos{
		guideline:  guidelineRepo,
		tool:       toolRepo,
		knowledge:  knowledgeRepo,
		experience: experienceRepo,
		checkerFor: archiver.ExistenceCheckerFor,
	}

	registry := mcp.NewRegistry()
	registry.Register(mcp.NewActionTool("guideline", "Prescriptive rules agents should follow.", actionSchema(guidelinePayloadSchema), instrument("guideline", guidelineHandlers, rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("tool", "Callable-tool descriptors agents can discover and invoke.", actionSchema(toolPayloadSchema), instrument("tool", toolHandlers, rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("knowledge", "Factual reference material.", actionSchema(knowledgePayloadSchema), instrument("knowledge", knowledgeHandlers, rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("experience", "Recorded trajectories agents learned from.", actionSchema(experiencePayloadSchema), instrument("experience", experienceHandlers, rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("observe", "Records session hook events (tool failures, subagent completions, error notifications) into the learning pipeline.", json.RawMessage(observeSchema), instrument("observe", observeHandlers(learnSvc), rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("librarian", "Triggers and reviews batch pattern-detection runs over the artifact store.", json.RawMessage(librarianSchema), instrument("librarian", librarianHandlers(runner, recStore, nil), rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("backup", "Exports and imports artifact envelopes for offline backup and migration.", json.RawMessage(backupSchema), instrument("backup", backupHandlers(backup), rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("analytics", "Aggregates raw interaction traces into success-rate and tool-failure trend reports.", json.RawMessage(analyticsSchema), instrument("analytics", analyticsHandlers(experienceRepo), rateLimiter, met, auditWriter)))
	registry.Register(mcp.NewActionTool("classify", "Suggests which artifact kind a piece of free text belongs to.", json.RawMessage(classifySchema), instrument("classify", classifyHandlers(classifier), rateLimiter, met, auditWriter)))

	sched := scheduler.New()
	sched.AddJob(archivalJob{archiver: archiver, cfg: export.ArchivalConfig{
		ArchiveAfterDays:   cfg.Memory.ArchiveAfterDays,
		MinAccessToArchive: cfg.Memory.MinAccessToArchive,
	}}, 24*time.Hour)
	sched.AddJob(runner, time.Duration(cfg.Librarian.JobTimeoutMS)*time.Millisecond)
	sched.Start(ctx)
	defer sched.Stop()

	server := mcp.NewServer(registry, mcp.ServerInfo{Name: "memoryd", Version: "0.1.0"})
	return server.Run(ctx)
}

// archivalJob adapts export.ArchiveStale into a scheduler.Job so the
// archival sweep runs on the same ticking infrastructure as the librarian.
type archivalJob struct {
	archiver *export.SQLArchiver
	cfg      export.ArchivalConfig
}

func (archivalJob) Name() string { return "archival" }

func (j archivalJob) Run(ctx context.Context) error {
	stats, err := export.ArchiveStale(ctx, j.archiver, j.archiver, j.archiver, j.cfg, time.Now())
	if err != nil {
		return err
	}
	logging.Get(logging.CategoryExport).Info("archival sweep: considered=%d archived=%d failed=%d", stats.Considered, stats.Archived, stats.Failed)
	return nil
}
