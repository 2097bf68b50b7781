package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/docverify/docverify-backend/internal/verification/authenticity"
	"github.com/docverify/docverify-backend/internal/verification/consumers"
	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/internal/verification/events"
	"github.com/docverify/docverify-backend/internal/verification/handler"
	"github.com/docverify/docverify-backend/internal/verification/jobs"
	"github.com/docverify/docverify-backend/internal/verification/ocr"
	"github.com/docverify/docverify-backend/internal/verification/pipeline"
	"github.com/docverify/docverify-backend/internal/verification/processor"
	"github.com/docverify/docverify-backend/internal/verification/rules"
	"github.com/docverify/docverify-backend/internal/verification/service"
	"github.com/docverify/docverify-backend/internal/verification/storage"
	"github.com/docverify/docverify-backend/pkg/config"
	"github.com/docverify/docverify-backend/pkg/database"
	"github.com/docverify/docverify-backend/pkg/httputil"
	"github.com/docverify/docverify-backend/pkg/logger"
	"github.com/docverify/docverify-backend/pkg/messaging"
)

const serviceName = "verification-service"

// records are the stores behind jobs, results and document metadata
type records struct {
	jobs      storage.Store[domain.ProcessingJob]
	results   storage.Store[domain.ProcessingResult]
	documents storage.Store[domain.Document]
}

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.FormatFor(cfg.Server.Environment),
	})
	log.Info().Msg("starting Verification Service")

	maxUpload, err := cfg.Server.MaxUploadBytes()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid upload limit")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthChecks := map[string]handler.Check{}
	janitor := storage.NewJanitor(cfg.Processing.ResultTTL, log)

	// Records live in PostgreSQL when enabled, otherwise in memory
	var recs records
	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := storage.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}

		jobStore := storage.NewPostgresStore[domain.ProcessingJob](db, storage.KindJob)
		resultStore := storage.NewPostgresStore[domain.ProcessingResult](db, storage.KindResult)
		recs = records{
			jobs:      jobStore,
			results:   resultStore,
			documents: storage.NewPostgresStore[domain.Document](db, storage.KindDocument),
		}
		janitor.Register(storage.KindJob, jobStore)
		janitor.Register(storage.KindResult, resultStore)
		healthChecks["database"] = db.Health
	} else {
		jobStore := storage.NewMemoryStore[domain.ProcessingJob](storage.KindJob)
		resultStore := storage.NewMemoryStore[domain.ProcessingResult](storage.KindResult)
		recs = records{
			jobs:      jobStore,
			results:   resultStore,
			documents: storage.NewMemoryStore[domain.Document](storage.KindDocument),
		}
		janitor.Register(storage.KindJob, jobStore)
		janitor.Register(storage.KindResult, resultStore)
		log.Warn().Msg("database disabled, records are kept in memory")
	}

	blobs, err := storage.NewDocumentStore(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document storage")
	}

	// Collaborators are optional; the pipeline degrades without them
	engine := rules.NewEngine()
	tracker := jobs.NewTracker(recs.jobs, log)
	opts := []pipeline.Option{pipeline.WithTracker(tracker), pipeline.WithLogger(log)}
	services := map[string]bool{
		"ai_detection":   true,
		"gemini":         cfg.Gemini.Enabled(),
		"face_detection": cfg.Face.URL != "",
		"ocr":            cfg.OCR.Enabled,
	}

	if cfg.Gemini.Enabled() {
		gemini := processor.NewGeminiClient(cfg.Gemini)
		opts = append(opts,
			pipeline.WithExtractor(processor.NewRegistry(gemini)),
			pipeline.WithReviewer(gemini),
		)
		if cfg.Gemini.RemoteAuthenticity {
			opts = append(opts, pipeline.WithRemoteAuthenticity(gemini))
		}
	}
	if cfg.Face.URL != "" {
		opts = append(opts, pipeline.WithFaceAnalyzer(processor.NewFaceClient(cfg.Face)))
	}
	if cfg.OCR.Enabled {
		recognizer := ocr.NewRecognizer(cfg.OCR)
		log.Info().Strs("languages", recognizer.Languages()).Str("version", recognizer.Version()).Msg("local OCR enabled")
		opts = append(opts, pipeline.WithTextRecognizer(recognizer))
	}

	orchestrator := pipeline.New(authenticity.NewScorer(log), engine, opts...)

	// Messaging is optional; without it no events are published
	var publisher *events.VerificationEventPublisher
	var rmq *messaging.RabbitMQ
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(ctx, &cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.DeclareTopology(serviceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare messaging topology")
		}

		publisher, err = events.NewVerificationEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		healthChecks["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }
	}

	svc := service.New(orchestrator, tracker, engine, service.Stores{
		Documents: recs.documents,
		Results:   recs.results,
		Blobs:     blobs,
	}, publisher, service.Config{
		MaxUploadBytes:    maxUpload,
		AllowedExtensions: cfg.Processing.AllowedExtensions,
		MaxConcurrentJobs: cfg.Processing.MaxConcurrentJobs,
		BatchWorkers:      cfg.Processing.BatchWorkers,
		FaceTolerance:     cfg.Face.Tolerance,
	}, log)

	if rmq != nil {
		requestConsumer, err := consumers.NewRequestConsumer(rmq, svc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create request consumer")
		}
		if err := requestConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start request consumer")
		}
	}

	if err := janitor.Start(cfg.Processing.CleanupSchedule); err != nil {
		log.Fatal().Err(err).Msg("failed to start record janitor")
	}

	docHandler := handler.NewDocumentHandler(svc, maxUpload, log)
	healthHandler := handler.NewHealthHandler(services, healthChecks)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		handler.Mount(r, docHandler, healthHandler)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("jobs still running at shutdown")
	}
	janitor.Stop()

	log.Info().Msg("server stopped")
}
