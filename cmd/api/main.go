package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Kartikesh07/RailSetuBackend/internal/approx"
	"github.com/Kartikesh07/RailSetuBackend/internal/config"
	"github.com/Kartikesh07/RailSetuBackend/internal/db"
	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/feed"
	"github.com/Kartikesh07/RailSetuBackend/internal/handlers"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/report"
	"github.com/Kartikesh07/RailSetuBackend/internal/repository"
	"github.com/Kartikesh07/RailSetuBackend/internal/scenario"
)

func main() {
	log.Println("Starting RailSetu decision service...")

	// Load base .env first, then .env.local (which overrides for local development)
	config.LoadEnvFiles(".")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Config loaded: mode=%s, report_interval=%v, retention=%v", cfg.DecisionMode, cfg.ReportInterval, cfg.RetentionDuration)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	stores := []report.RunStore{database}
	pingers := map[string]handlers.Pinger{"sqlite": database}
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewRunRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			// Continue without the mirror: SQLite stays the primary store
			log.Printf("Warning: PostgreSQL unavailable, runs will not be mirrored: %v", err)
		} else {
			defer pg.Close()
			if err := pg.EnsureSchema(ctx); err != nil {
				log.Fatalf("Failed to ensure PostgreSQL schema: %v", err)
			}
			stores = append(stores, pg)
			pingers["postgres"] = pg
			log.Println("PostgreSQL run mirror enabled")
		}
	}

	// Engine
	sec := scenario.SolapurWadiSection()
	policy := loadPolicy(ctx, cfg, database)
	eng := engine.New(sec, policy, engine.WithWorkers(cfg.SimWorkers))
	log.Printf("Engine: section=%s policy=%s ready=%v", sec.Name(), policy.Name(), eng.Ready())

	// Snapshot source: live GTFS-RT when configured, synthetic scenarios otherwise
	var source report.Source
	if cfg.LiveFeed() {
		schedules, err := feed.LoadTimetable(cfg.TimetablePath)
		if err != nil {
			log.Fatalf("Failed to load timetable: %v", err)
		}
		source = report.NewFeedSource(feed.NewPoller(sec, schedules, cfg))
		log.Printf("Feed: %d timetabled trains, polling %s", len(schedules), cfg.GTFSVehiclePositionsURL)
	} else {
		gen := scenario.NewGenerator(sec, time.Now(), time.Now().UnixNano())
		source = report.NewScenarioSource(gen, cfg.ScenarioTrains)
	}

	reporter := report.NewReporter(eng, source,
		report.WithRunStores(stores...),
		report.WithDelayRecorder(database),
	)
	stream := handlers.NewStream()
	defer stream.Close()

	decisionHandler, err := handlers.NewDecisionHandler(eng, stores...)
	if err != nil {
		log.Fatalf("Failed to create decision handler: %v", err)
	}
	reportHandler := handlers.NewReportHandler(reporter)
	runHandler := handlers.NewRunHandler(database)
	delayHandler := handlers.NewDelayHandler(database)
	healthHandler := handlers.NewHealthHandler(eng, pingers)

	// Background reporting loop
	go func() {
		ticker := time.NewTicker(cfg.ReportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reportOnce(ctx, reporter, stream, database, cfg)
			case <-ctx.Done():
				log.Println("Reporting loop stopped")
				return
			}
		}
	}()

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", healthHandler.GetHealth)

	r.Get("/api/live_report", reportHandler.GetLiveReport)
	r.Post("/api/decisions", decisionHandler.PostDecisions)
	r.Post("/api/metrics", decisionHandler.PostMetrics)
	r.Get("/api/runs", runHandler.ListRuns)
	r.Get("/api/runs/{runId}", runHandler.GetRun)
	r.Get("/api/delays/stats", delayHandler.GetDelayStats)
	r.Get("/api/stream", stream.ServeHTTP)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on :%s", cfg.Port)
		log.Println("  GET  /api/live_report")
		log.Println("  POST /api/decisions")
		log.Println("  POST /api/metrics")
		log.Println("  GET  /api/runs, /api/runs/{runId}")
		log.Println("  GET  /api/delays/stats")
		log.Println("  GET  /api/stream?stream=reports")
		log.Println("  GET  /health")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

// loadPolicy picks the decision policy for the configured mode. In model mode
// a missing or unreadable model leaves the engine not ready rather than failing startup.
func loadPolicy(ctx context.Context, cfg *config.Config, database *db.DB) engine.Policy {
	if cfg.DecisionMode != config.ModeModel {
		return engine.NewSimulationPolicy()
	}

	stored, err := database.LatestModel(ctx)
	if errors.Is(err, models.ErrNoModel) {
		log.Println("Warning: no trained model stored; run cmd/train first. Serving placeholders.")
		return engine.NewModelPolicy(approx.NewForest(cfg.ForestTrees))
	}
	if err != nil {
		log.Printf("Warning: failed to load model: %v", err)
		return engine.NewModelPolicy(approx.NewForest(cfg.ForestTrees))
	}

	log.Printf("Regrowing model %s from %d samples...", stored.ID, stored.SampleCount)
	forest, err := approx.FromStored(stored)
	if err != nil {
		log.Printf("Warning: stored model %s is unusable: %v", stored.ID, err)
		return engine.NewModelPolicy(approx.NewForest(cfg.ForestTrees))
	}
	log.Printf("Loaded model %s (%d samples, %d trees)", stored.ID, forest.Size(), forest.Trees())
	return engine.NewModelPolicy(forest)
}

func reportOnce(ctx context.Context, reporter *report.Reporter, stream *handlers.Stream, database *db.DB, cfg *config.Config) {
	rep, err := reporter.Generate(ctx)
	switch {
	case errors.Is(err, engine.ErrNotReady):
		log.Println("Report: engine not ready, skipping")
	case err != nil:
		log.Printf("Report error: %v", err)
	default:
		if err := stream.Publish(rep); err != nil {
			log.Printf("Stream publish error: %v", err)
		}
	}

	// Cleanup old data
	if err := database.Cleanup(ctx, cfg.RetentionDuration); err != nil {
		log.Printf("Cleanup error: %v", err)
	}
}
