package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/muhammadolammi/resumepipeline/internal/match"
	"github.com/muhammadolammi/resumepipeline/internal/pipeline"
)

// AppConfig is everything the worker binary reads from the environment.
type AppConfig struct {
	DBURL        string
	RabbitMQURL  string
	GoogleAPIKey string

	R2AccountID string
	R2Bucket    string
	R2AccessKey string
	R2SecretKey string

	// Stages selects which pipeline stages this replica runs.
	Stages []string

	Pipeline   pipeline.Config
	JDCacheTTL time.Duration

	LogJSON  bool
	LogDebug bool
}

var allStages = []string{"extractor", "parser", "scorer", "reporter"}

func loadConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		DBURL:        os.Getenv("DB_URL"),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		R2AccountID:  os.Getenv("R2_ACCOUNT_ID"),
		R2Bucket:     os.Getenv("R2_BUCKET"),
		R2AccessKey:  os.Getenv("R2_ACCESS_KEY"),
		R2SecretKey:  os.Getenv("R2_SECRET_KEY"),
		LogJSON:      envBool("LOG_JSON", false),
		LogDebug:     envBool("LOG_DEBUG", false),
	}

	for name, value := range map[string]string{
		"DB_URL":         cfg.DBURL,
		"RABBITMQ_URL":   cfg.RabbitMQURL,
		"GOOGLE_API_KEY": cfg.GoogleAPIKey,
		"R2_ACCOUNT_ID":  cfg.R2AccountID,
		"R2_BUCKET":      cfg.R2Bucket,
		"R2_ACCESS_KEY":  cfg.R2AccessKey,
		"R2_SECRET_KEY":  cfg.R2SecretKey,
	} {
		if value == "" {
			return nil, fmt.Errorf("empty %s in environment", name)
		}
	}

	cfg.Stages = allStages
	if raw := os.Getenv("STAGES"); raw != "" {
		cfg.Stages = nil
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(strings.ToLower(s))
			if s == "" {
				continue
			}
			if !contains(allStages, s) {
				return nil, fmt.Errorf("unknown stage %q in STAGES", s)
			}
			cfg.Stages = append(cfg.Stages, s)
		}
		if len(cfg.Stages) == 0 {
			return nil, fmt.Errorf("STAGES selects no stage")
		}
	}

	cfg.Pipeline = pipeline.Config{
		MaxDeliver:       envInt("MAX_DELIVER", 3),
		ScorerMaxDeliver: envInt("SCORER_MAX_DELIVER", 5),
		RetryBase:        envDuration("RETRY_BASE", 2*time.Second),
		RetryCap:         envDuration("RETRY_CAP", 30*time.Second),
		AckWait:          envDuration("ACK_WAIT", 30*time.Second),
		Workers:          envInt("WORKERS_PER_STAGE", 3),
		FetchTimeout:     envDuration("FETCH_TIMEOUT", 10*time.Second),
		ExtractTimeout:   envDuration("EXTRACT_TIMEOUT", 30*time.Second),
		Weights:          match.DefaultWeights(),
	}
	cfg.JDCacheTTL = envDuration("JD_CACHE_TTL", 24*time.Hour)

	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return v
}

func envBool(name string, def bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
