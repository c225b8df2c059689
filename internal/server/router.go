package server

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseforge-backend/internal/http/handlers"
	"github.com/yungbote/courseforge-backend/internal/http/middleware"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware  *middleware.AuthMiddleware
	ScopeMiddleware *middleware.ScopeMiddleware
	CORSOrigins     []string

	HealthHandler       *handlers.HealthHandler
	CourseHandler       *handlers.CourseHandler
	MaterialHandler     *handlers.MaterialHandler
	SlideMappingHandler *handlers.SlideMappingHandler
	StructureHandler    *handlers.StructureHandler
	ReportHandler       *handlers.ReportHandler
}

// NewRouter assembles the gin engine. /health is open; everything under
// /api/v1 sits behind the API-key gate and per-scope rate limits.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", cfg.HealthHandler.Check)

	api := r.Group("/api/v1")
	api.Use(cfg.AuthMiddleware.RequireAPIKey())

	prep := cfg.ScopeMiddleware.RequireScope(types.ScopePrep)
	read := cfg.ScopeMiddleware.RequireScope(types.ScopePrep, types.ScopeCheck)

	// Courses
	api.POST("/courses", prep, cfg.CourseHandler.Create)
	api.GET("/courses", read, cfg.CourseHandler.List)
	api.GET("/courses/:id", read, cfg.CourseHandler.Get)
	api.GET("/courses/:id/lessons/:lesson_id", read, cfg.CourseHandler.GetLesson)

	// Materials
	api.POST("/courses/:id/materials", prep, cfg.MaterialHandler.Add)
	api.GET("/courses/:id/materials", read, cfg.MaterialHandler.List)

	// Slide mapping
	api.POST("/courses/:id/slide-mapping", prep, cfg.SlideMappingHandler.Set)
	api.GET("/courses/:id/slide-mapping", read, cfg.SlideMappingHandler.List)

	// Structure generation
	api.POST("/courses/:id/structure/generate", prep, cfg.StructureHandler.Generate)
	api.GET("/courses/:id/structure/runs/latest", read, cfg.StructureHandler.LatestRun)
	api.GET("/structure-runs/:run_id", read, cfg.StructureHandler.GetRun)

	// Reports
	api.GET("/reports/cost", read, cfg.ReportHandler.Cost)

	return r
}
