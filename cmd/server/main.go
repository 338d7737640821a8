package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ml-orchestrator/api/rest/routes"
	"ml-orchestrator/config"
	"ml-orchestrator/core/auth"
	"ml-orchestrator/core/executor"
	"ml-orchestrator/core/logging"
	"ml-orchestrator/core/monitoring"
	"ml-orchestrator/core/prediction"
	"ml-orchestrator/core/repository"
	"ml-orchestrator/core/scheduler"
	"ml-orchestrator/providers/aws"
	"ml-orchestrator/storage"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.Init(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize job ledger
	db, err := repository.Open(cfg.DatabaseURL, cfg.JobDBPath)
	if err != nil {
		return fmt.Errorf("connect to job database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate job database: %w", err)
	}
	logger.Info("Job database ready", zap.String("driver", db.Driver()))

	// Initialize artifact storage
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	store := storage.NewArtifactStore(blobs, logger.Named("artifacts"))

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	eventRepo := repository.NewEventRepository(db)

	metrics := monitoring.NewMetrics()

	// Initialize training executor and scheduler
	trainingExecutor := executor.NewTrainingExecutor(jobRepo, store, metrics, logger.Named("executor"))
	sched := scheduler.NewScheduler(jobRepo, trainingExecutor, cfg.TrainingWorkers, metrics, logger.Named("scheduler"))
	if err := sched.Recover(ctx); err != nil {
		return fmt.Errorf("recover unfinished jobs: %w", err)
	}

	predictor, err := prediction.NewService(store, cfg.ModelCacheSize, metrics, logger.Named("prediction"))
	if err != nil {
		return err
	}

	keys, err := auth.LoadKeyStore(cfg.APIKeysFile)
	if err != nil {
		return fmt.Errorf("load API keys: %w", err)
	}

	go sched.Start(ctx)
	monitor := monitoring.NewJobMonitor(jobRepo, metrics, 15*time.Second, logger.Named("monitor"))
	go monitor.Start(ctx)

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, routes.Dependencies{
		DB:             db,
		Jobs:           jobRepo,
		Events:         eventRepo,
		Scheduler:      sched,
		Store:          store,
		Predictor:      predictor,
		Keys:           keys,
		Metrics:        metrics,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	handler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-API-Key", "X-Request-ID"}),
	)(r)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger.Named("recovery"))),
		handlers.PrintRecoveryStack(true),
	)(handler)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Running jobs finish; queued ones are failed on the next start
	sched.Stop()
	cancel()
	select {
	case <-sched.Done():
	case <-shutdownCtx.Done():
		logger.Warn("Training workers still running at shutdown deadline")
	}
	logger.Info("Server exited")
	return nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.ArtifactBackend {
	case "fs":
		return storage.NewFSBlobStore(filepath.Join(cfg.DataDir, "artifacts"))
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("ARTIFACT_BACKEND=s3 requires S3_BUCKET")
		}
		return aws.NewS3BlobStore(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown ARTIFACT_BACKEND %q", cfg.ArtifactBackend)
	}
}
