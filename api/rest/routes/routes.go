package routes

import (
	"ml-orchestrator/api/rest/handlers"
	"ml-orchestrator/api/rest/middleware"
	"ml-orchestrator/core/auth"
	"ml-orchestrator/core/monitoring"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ArtifactStore serves both datasets and models
type ArtifactStore interface {
	handlers.DatasetStore
	handlers.ModelStore
}

// Dependencies are the services the HTTP surface is built on
type Dependencies struct {
	DB             handlers.Pinger
	Jobs           handlers.JobStore
	Events         handlers.EventStore
	Scheduler      handlers.Enqueuer
	Store          ArtifactStore
	Predictor      handlers.Predictor
	Keys           *auth.KeyStore
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// SetupRoutes configures all API routes. The banner, health and metrics endpoints
// are public; everything else requires an API key.
func SetupRoutes(r *mux.Router, deps Dependencies) {
	system := handlers.NewSystemHandler(deps.DB)
	jobHandler := handlers.NewJobHandler(deps.Jobs, deps.Events, deps.Scheduler, deps.Metrics)
	datasetHandler := handlers.NewDatasetHandler(deps.Store, deps.MaxUploadBytes, deps.Metrics)
	modelHandler := handlers.NewModelHandler(deps.Store, deps.Predictor)

	r.Use(middleware.RequestID(deps.Logger), middleware.Logging, middleware.Metrics(deps.Metrics))

	r.HandleFunc("/", system.Root).Methods("GET")
	r.HandleFunc("/health", system.Health).Methods("GET")
	r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")

	// Scoring and analysis only read tenant data; uploads, training and deletes need write.
	read := r.NewRoute().Subrouter()
	read.Use(middleware.Auth(deps.Keys, auth.PermissionRead))
	write := r.NewRoute().Subrouter()
	write.Use(middleware.Auth(deps.Keys, auth.PermissionWrite))

	// Training endpoints
	write.HandleFunc("/train", jobHandler.SubmitTraining).Methods("POST")
	read.HandleFunc("/training-status/{job_id}", jobHandler.GetTrainingStatus).Methods("GET")
	read.HandleFunc("/training-status/{job_id}/events", jobHandler.GetJobEvents).Methods("GET")
	read.HandleFunc("/training-jobs", jobHandler.ListTrainingJobs).Methods("GET")

	// Dataset endpoints
	write.HandleFunc("/upload-dataset", datasetHandler.UploadDataset).Methods("POST")
	read.HandleFunc("/analyze-dataset", datasetHandler.AnalyzeDataset).Methods("POST")
	read.HandleFunc("/datasets", datasetHandler.ListDatasets).Methods("GET")
	read.HandleFunc("/datasets/{dataset_id}", datasetHandler.GetDataset).Methods("GET")
	read.HandleFunc("/datasets/{dataset_id}/columns/{column}/values", datasetHandler.GetColumnValues).Methods("GET")
	write.HandleFunc("/datasets/{dataset_id}", datasetHandler.DeleteDataset).Methods("DELETE")

	// Model endpoints
	read.HandleFunc("/predict", modelHandler.Predict).Methods("POST")
	read.HandleFunc("/models", modelHandler.ListModels).Methods("GET")
	read.HandleFunc("/models/{model_id}", modelHandler.GetModel).Methods("GET")
	write.HandleFunc("/models/{model_id}", modelHandler.DeleteModel).Methods("DELETE")
}
