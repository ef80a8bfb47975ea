package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/veridian-health/readmit/pkg/common/auth"
	"github.com/veridian-health/readmit/pkg/common/config"
	"github.com/veridian-health/readmit/pkg/common/database"
	"github.com/veridian-health/readmit/pkg/common/kafka"
	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/observability/metrics"
	"github.com/veridian-health/readmit/pkg/storage"
	"github.com/veridian-health/readmit/pkg/tracking"
	"github.com/veridian-health/readmit/pkg/training"
)

func main() {
	logger.Init("training-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres()

	repo := training.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate training schema")
	}
	tracker := tracking.NewRepository(db)
	if err := tracker.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate tracking schema")
	}
	dataset := storage.NewDatasetStore(db)
	if err := dataset.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate dataset schema")
	}

	service, err := training.NewService(repo, dataset, tracker, cfg.ArtifactDir, cfg.ServingModel, cfg.TrainingWorkers, cfg.TrainingSeed)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize training service")
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/").Subrouter()
	if cfg.OIDCIssuer != "" {
		authenticator, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to initialize OIDC authenticator")
		}
		api.Use(authenticator.Middleware)
	}
	training.NewHTTPHandler(service).Register(api)

	// New dataset runs trigger a training job automatically.
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.DatasetTopic, cfg.KafkaGroupID)
	go func() {
		err := consumer.Consume(consumerCtx, func(ctx context.Context, event kafka.Event) error {
			if event.Type != "dataset-ready" {
				return nil
			}
			runID, _ := event.Data["run_id"].(string)
			job, err := service.Create(ctx, training.CreateJobInput{DatasetRunID: runID})
			if err != nil {
				return err
			}
			logger.WithFields(map[string]interface{}{
				"job_id":         job.ID,
				"dataset_run_id": runID,
			}).Info("Training job queued from dataset event")
			return nil
		})
		if err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("Dataset consumer stopped")
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Training Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Training Service...")
	stopConsumer()
	consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Training Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
