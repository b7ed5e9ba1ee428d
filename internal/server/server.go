package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/config"
	"github.com/lgscvb/Brain-sub000/internal/handler"
	"github.com/lgscvb/Brain-sub000/internal/knowledge"
	"github.com/lgscvb/Brain-sub000/internal/llm"
	"github.com/lgscvb/Brain-sub000/internal/middleware"
	"github.com/lgscvb/Brain-sub000/internal/repository"
	"github.com/lgscvb/Brain-sub000/internal/router"
	"github.com/lgscvb/Brain-sub000/internal/service"
)

// Server wires repositories, services and handlers onto a gin engine.
type Server struct {
	engine   *gin.Engine
	http     *http.Server
	registry *llm.Registry
	kb       *knowledge.Client
	logger   *zap.Logger
}

func NewServer(cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (*Server, error) {
	registry, err := llm.NewRegistry(cfg.Providers, logger)
	if err != nil {
		return nil, err
	}

	kb := knowledge.NewClient(cfg.Knowledge.URL, knowledge.CacheConfig{
		Enabled:  cfg.Knowledge.Cache.Enabled,
		Addr:     cfg.Knowledge.Cache.Addr,
		Password: cfg.Knowledge.Cache.Password,
		DB:       cfg.Knowledge.Cache.DB,
		TTL:      time.Duration(cfg.Knowledge.Cache.TTLSeconds) * time.Second,
	}, logger)

	engine := gin.Default()
	engine.Use(corsMiddleware())

	s := &Server{
		engine:   engine,
		registry: registry,
		kb:       kb,
		logger:   logger,
	}
	s.setupRoutes(cfg, db)

	s.http = &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}
	return s, nil
}

func (s *Server) setupRoutes(cfg *config.Config, db *sqlx.DB) {
	messageRepo := repository.NewMessageRepository(db, s.logger)
	draftRepo := repository.NewDraftRepository(db, s.logger)
	roundRepo := repository.NewRefinementRepository(db, s.logger)
	responseRepo := repository.NewResponseRepository(db, s.logger)
	exportRepo := repository.NewExportRepository(db, s.logger)

	routing := router.Config{
		Enabled:         cfg.Routing.Enabled,
		SimpleKeywords:  cfg.Routing.SimpleKeywords,
		ComplexKeywords: cfg.Routing.ComplexKeywords,
		FinancialTerms:  cfg.Routing.FinancialTerms,
		MaxSimpleLength: cfg.Routing.MaxSimpleLength,
		MaxHistoryLen:   cfg.Routing.MaxHistoryLen,
	}
	fastProvider, fastModel := s.registry.Primary(router.TierFast)
	routing.Fast = router.ModelRef{Provider: fastProvider, ModelID: fastModel}
	smartProvider, smartModel := s.registry.Primary(router.TierSmart)
	routing.Smart = router.ModelRef{Provider: smartProvider, ModelID: smartModel}

	timeout := time.Duration(cfg.Model.TimeoutSeconds) * time.Second

	generator := service.NewGenerator(messageRepo, draftRepo, s.registry, s.kb,
		routing, cfg.Knowledge.SearchLimit, timeout, s.logger)
	refiner := service.NewRefiner(messageRepo, draftRepo, roundRepo, s.registry, timeout, s.logger)
	feedback := service.NewFeedbackCollector(draftRepo, s.logger)
	tracker := service.NewTracker(messageRepo, draftRepo, roundRepo, responseRepo, s.logger)
	exporter := service.NewExporter(draftRepo, roundRepo, responseRepo, exportRepo, s.logger)

	messageHandler := handler.NewMessageHandler(messageRepo, generator, tracker, s.logger)
	draftHandler := handler.NewDraftHandler(refiner, feedback, s.logger)
	trainingHandler := handler.NewTrainingHandler(exporter, s.logger)
	knowledgeHandler := handler.NewKnowledgeHandler(s.kb, roundRepo, s.logger)

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "brain-cs-assistant"})
	})

	api := s.engine.Group("/api/v1")
	if cfg.Auth.Enabled {
		api.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret), s.logger))
	}
	{
		api.POST("/messages", messageHandler.Create)
		api.GET("/messages", messageHandler.List)
		api.GET("/messages/:id", messageHandler.Get)
		api.POST("/messages/:id/regenerate", messageHandler.Regenerate)
		api.POST("/messages/:id/send", messageHandler.Send)
		api.POST("/messages/:id/archive", messageHandler.Archive)

		api.POST("/drafts/:id/refine", draftHandler.Refine)
		api.GET("/drafts/:id/refinements", draftHandler.ListRefinements)
		api.POST("/drafts/:id/refinements/:round_id/accept", draftHandler.AcceptRound)
		api.POST("/drafts/:id/refinements/:round_id/reject", draftHandler.RejectRound)
		api.POST("/drafts/:id/feedback", draftHandler.SubmitFeedback)
		api.GET("/drafts/:id/feedback/history", draftHandler.FeedbackHistory)
		api.GET("/drafts/:id/content", draftHandler.WorkingContent)

		api.POST("/knowledge/from-refinement", knowledgeHandler.PromoteFromRefinement)

		api.POST("/training/export", trainingHandler.Export)
		api.GET("/training/export/:id/download", trainingHandler.Download)
		api.GET("/training/stats", trainingHandler.Stats)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.logger.Info("Server starting", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases provider clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if cerr := s.registry.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := s.kb.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
