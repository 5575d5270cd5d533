// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/replenish/internal/api"
	"github.com/andresuchdata/replenish/internal/cache"
	"github.com/andresuchdata/replenish/internal/config"
	"github.com/andresuchdata/replenish/internal/planner"
	"github.com/andresuchdata/replenish/internal/repository"
	"github.com/andresuchdata/replenish/internal/repository/postgres"
	"github.com/andresuchdata/replenish/internal/service"
	"github.com/andresuchdata/replenish/internal/solver"
	"github.com/andresuchdata/replenish/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize repositories
	policyRepo := repository.NewPolicyRepository(db.DB, db)
	cycleRepo := repository.NewCycleRepository(db.DB)
	masterRepo := repository.NewMasterRepository(db.DB)
	forecastRepo := repository.NewForecastRepository(db.DB)

	policyCache, err := cache.NewPolicyCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("policy cache unavailable, continuing without it")
		policyCache = cache.NewNoopPolicyCache()
	}

	// Initialize the optimization pipeline shared with the planner CLI
	plannerCfg := plannerConfigFrom(cfg)
	controller := planner.NewController(plannerCfg, solver.NewMILP(), policyRepo, cycleRepo, policyCache)

	services := &api.Services{
		PolicyService:  service.NewPolicyService(policyRepo, cycleRepo),
		PlannerService: service.NewPlannerService(controller, plannerCfg, masterRepo, forecastRepo),
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func plannerConfigFrom(cfg *config.Config) planner.Config {
	return planner.Config{
		Horizon:             cfg.Planner.Horizon,
		WorkerCount:         cfg.Planner.WorkerCount,
		MaxPartitionItems:   cfg.Planner.MaxPartitionItems,
		FailureThreshold:    cfg.Planner.FailureThreshold,
		TieBreakEpsilon:     cfg.Solver.TieBreakEpsilon,
		ShortageAllowance:   cfg.Planner.ShortageAllowance,
		RelaxedSafetyFactor: cfg.Planner.RelaxedSafetyFactor,
		Granularity:         cfg.Planner.UnitGranularity,
		SolveOptions: solver.Options{
			TimeLimit:    cfg.Solver.TimeLimit,
			GapTolerance: cfg.Solver.GapTolerance,
			NodeLimit:    cfg.Solver.NodeLimit,
		},
	}
}
