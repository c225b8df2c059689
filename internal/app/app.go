package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/agent/architect"
	"github.com/yungbote/courseforge-backend/internal/data/db"
	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/http/handlers"
	"github.com/yungbote/courseforge-backend/internal/http/middleware"
	"github.com/yungbote/courseforge-backend/internal/ingest"
	"github.com/yungbote/courseforge-backend/internal/llm/ledger"
	"github.com/yungbote/courseforge-backend/internal/llm/providers"
	"github.com/yungbote/courseforge-backend/internal/llm/registry"
	"github.com/yungbote/courseforge-backend/internal/llm/router"
	"github.com/yungbote/courseforge-backend/internal/platform/localmedia"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/platform/objectstore"
	"github.com/yungbote/courseforge-backend/internal/ratelimit"
	"github.com/yungbote/courseforge-backend/internal/server"
	"github.com/yungbote/courseforge-backend/internal/services"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	Log    *logger.Logger
	Cfg    Config
	DB     *gorm.DB
	Router *gin.Engine

	limiter   *ratelimit.MemoryLimiter
	ingestor  *services.Ingestor
	structure services.StructureService
}

func New() (*App, error) {
	cfg := LoadConfig()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	gdb, err := db.Connect(cfg.PostgresDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store, err := objectstore.New(log, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}

	reg, err := registry.Load(cfg.ModelCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load model catalog: %w", err)
	}
	provs, err := providers.Build(cfg.Providers, log)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	factory := repos.NewFactory(gdb, log)
	ledgerWriter := ledger.NewWriter(log, factory.LLMCalls())
	modelRouter := router.New(log, reg, provs, cfg.LLMMaxRetries, ledgerWriter.Callback())

	processors, err := buildProcessors(log, cfg, provs, modelRouter)
	if err != nil {
		return nil, err
	}

	agent, err := architect.New(log, modelRouter, architect.Config{PromptPath: cfg.ArchitectPromptPath})
	if err != nil {
		return nil, fmt.Errorf("init architect: %w", err)
	}

	limiter := ratelimit.NewMemory(log)
	ingestor := services.NewIngestor(log, factory, store, processors)

	authService := services.NewAuthService(log, factory.APIKeys())
	courseService := services.NewCourseService(log, factory)
	materialService := services.NewMaterialService(log, factory, store, ingestor)
	slideMappingService := services.NewSlideMappingService(log, factory)
	structureService := services.NewStructureService(log, factory, agent)
	reportService := services.NewReportService(log, factory.LLMCalls())

	engine := server.NewRouter(server.RouterConfig{
		Log:                 log,
		AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
		ScopeMiddleware:     middleware.NewScopeMiddleware(log, limiter),
		CORSOrigins:         cfg.CORSAllowOrigins,
		HealthHandler:       handlers.NewHealthHandler(log, gdb, store),
		CourseHandler:       handlers.NewCourseHandler(log, courseService),
		MaterialHandler:     handlers.NewMaterialHandler(log, materialService),
		SlideMappingHandler: handlers.NewSlideMappingHandler(log, slideMappingService),
		StructureHandler:    handlers.NewStructureHandler(log, structureService),
		ReportHandler:       handlers.NewReportHandler(log, reportService),
	})

	return &App{
		Log:       log,
		Cfg:       cfg,
		DB:        gdb,
		Router:    engine,
		limiter:   limiter,
		ingestor:  ingestor,
		structure: structureService,
	}, nil
}

// buildProcessors assembles the per-source-type ingestion pipeline. Video is
// Gemini-first with an optional local whisper fallback.
func buildProcessors(log *logger.Logger, cfg Config, provs map[string]providers.Provider, modelRouter *router.Router) (map[string]ingest.Processor, error) {
	processors := map[string]ingest.Processor{
		ingest.SourceText:         ingest.NewTextProcessor(log),
		ingest.SourceWeb:          ingest.NewWebProcessor(log, cfg.WebFetchTimeout),
		ingest.SourcePresentation: ingest.NewPresentationProcessor(log, modelRouter),
	}

	var primary, fallback ingest.Processor
	if p, ok := provs["gemini"]; ok {
		if gp, ok := p.(*providers.GeminiProvider); ok {
			primary = ingest.NewGeminiVideoProcessor(log, gp.Client(), cfg.GeminiVideoModel)
		}
	}
	if cfg.WhisperFallback {
		transcoder, err := localmedia.NewTranscoder(log, cfg.FFmpegBin, cfg.WhisperBin, cfg.WhisperModelPath)
		if err != nil {
			return nil, fmt.Errorf("init whisper fallback: %w", err)
		}
		fallback = ingest.NewWhisperVideoProcessor(log, transcoder, int64(cfg.WhisperMaxConcurrent))
	}

	switch {
	case primary != nil:
		processors[ingest.SourceVideo] = ingest.NewCompositeVideoProcessor(log, primary, fallback, fallback != nil)
	case fallback != nil:
		processors[ingest.SourceVideo] = fallback
	default:
		log.Warn("video ingestion disabled", "reason", "no gemini credentials and whisper fallback off")
	}
	return processors, nil
}

func (a *App) Run() error {
	a.Log.Info("http server starting", "addr", a.Cfg.HTTPAddr, "environment", a.Cfg.Environment)
	return a.Router.Run(a.Cfg.HTTPAddr)
}

// Close drains background work before releasing process-wide resources.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.structure.Wait()
	a.ingestor.Wait()
	a.limiter.Stop()
	if a.Log != nil {
		a.Log.Sync()
	}
}
