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
	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/observability/metrics"
	"github.com/veridian-health/readmit/pkg/serving"
	"github.com/veridian-health/readmit/pkg/serving/predictor"
	"github.com/veridian-health/readmit/pkg/storage"
)

func main() {
	logger.Init("serving-service")
	cfg := config.Load()

	// The online store is optional; without it omitted aggregates simply
	// default to zero.
	var online *storage.FeatureStore
	if os.Getenv("FEATURE_STORE_DISABLED") == "" {
		online = storage.NewFeatureStore(database.GetRedis(), cfg.FeatureStorePrefix, cfg.FeatureStoreTTL)
		defer database.CloseRedis()
	}

	handler := serving.NewHandler(predictor.NewPredictor(cfg.ArtifactDir), online, cfg.ServingModel)

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
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"model": cfg.ServingModel,
		}).Info("Serving Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Serving Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Serving Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
