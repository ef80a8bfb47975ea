package main

import (
	"context"
	"flag"
	"os"

	"github.com/veridian-health/readmit/pkg/common/config"
	"github.com/veridian-health/readmit/pkg/common/database"
	"github.com/veridian-health/readmit/pkg/common/kafka"
	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/pipeline"
	"github.com/veridian-health/readmit/pkg/storage"
)

func main() {
	logger.Init("feature-pipeline")

	configPath := flag.String("config", "pipeline.yaml", "path to the pipeline run configuration")
	flag.Parse()

	runCfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load pipeline configuration")
	}

	cfg := config.Load()

	var dataset *storage.DatasetStore
	if runCfg.Sinks.Lakehouse {
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to the lakehouse")
		}
		dataset = storage.NewDatasetStore(db)
		if err := dataset.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate dataset schema")
		}
		defer database.ClosePostgres()
	}

	var online *storage.FeatureStore
	if runCfg.Sinks.FeatureStore {
		online = storage.NewFeatureStore(database.GetRedis(), cfg.FeatureStorePrefix, cfg.FeatureStoreTTL)
		defer database.CloseRedis()
	}

	var producer, quality *kafka.Producer
	if runCfg.Sinks.Events {
		producer = kafka.NewProducer(cfg.DatasetTopic)
		defer producer.Close()
		quality = kafka.NewProducer(cfg.QualityTopic)
		defer quality.Close()
	}

	runner := pipeline.NewRunner(runCfg, dataset, online, producer, quality)
	result, err := runner.Run(context.Background())
	if err != nil {
		logger.Log.WithError(err).Error("Pipeline run failed")
		os.Exit(1)
	}

	logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"rows":   len(result.Rows),
		"output": runCfg.OutputPath,
	}).Info("Dataset written")
}
