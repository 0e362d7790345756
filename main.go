package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/blob"
	"github.com/muhammadolammi/resumepipeline/internal/bus"
	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/extract"
	"github.com/muhammadolammi/resumepipeline/internal/logger"
	"github.com/muhammadolammi/resumepipeline/internal/match"
	"github.com/muhammadolammi/resumepipeline/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("loading config: ", err)
	}

	zlog, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		log.Fatal("building logger: ", err)
	}
	defer zlog.Sync()

	db, err := sql.Open("postgres", cfg.DBURL)
	if err != nil {
		zlog.Fatal("opening db", zap.Error(err))
	}
	dbqueries := database.New(db)

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKey, cfg.R2SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		zlog.Fatal("creating aws config", zap.Error(err))
	}
	blobs := blob.NewR2Store(awsConfig, cfg.R2AccountID, cfg.R2Bucket)

	extractor, err := extract.New(cfg.GoogleAPIKey)
	if err != nil {
		zlog.Fatal("creating extractor agents", zap.Error(err))
	}

	rabbit, err := bus.NewRabbitBus(cfg.RabbitMQURL, zlog)
	if err != nil {
		zlog.Fatal("connecting to rabbitmq", zap.Error(err))
	}
	defer rabbit.Close()

	for _, stage := range cfg.Stages {
		var err error
		switch stage {
		case "extractor":
			err = pipeline.NewExtractor(rabbit, dbqueries, extractor, cfg.Pipeline, zlog).Start()
		case "parser":
			err = pipeline.NewParser(rabbit, blobs, dbqueries, extractor, cfg.Pipeline, zlog).Start()
		case "scorer":
			cache := match.NewMemoryJDCache(cfg.JDCacheTTL)
			err = pipeline.NewScorer(rabbit, dbqueries, cache, cfg.Pipeline, zlog).Start()
		case "reporter":
			err = pipeline.NewReporter(rabbit, blobs, dbqueries, cfg.Pipeline, zlog).Start()
		}
		if err != nil {
			zlog.Fatal("starting stage", zap.String("stage", stage), zap.Error(err))
		}
		zlog.Info("stage started", zap.String("stage", stage), zap.Int("workers", cfg.Pipeline.Workers))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	zlog.Info("shutting down", zap.String("signal", sig.String()))
}
