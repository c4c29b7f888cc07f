package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // AGORA_DATABASE_URL (optional, empty = in-memory journal)
	GRPCAddr    string // AGORA_GRPC_ADDR (default ":9090")
	HTTPAddr    string // AGORA_HTTP_ADDR (default ":8080")
	NATSURL     string // AGORA_NATS_URL (optional, empty = no events)
	AuthToken   string // AGORA_AUTH_TOKEN (optional, empty = auth disabled)
	SchemesFile string // AGORA_SCHEMES_FILE (optional TOML catalog extension)

	// Recompute settings
	RecomputeRetry    time.Duration // AGORA_RECOMPUTE_RETRY (default 2s)
	LabelHistory      int           // AGORA_LABEL_HISTORY (default 32)
	PreferredCacheTTL time.Duration // AGORA_PREFERRED_CACHE_TTL (default 10m)

	// Export settings
	ExportInterval   time.Duration // AGORA_EXPORT_INTERVAL (default 0 = disabled)
	ExportS3Bucket   string        // AGORA_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // AGORA_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // AGORA_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // AGORA_EXPORT_S3_KEY (default "agora/deliberations.jsonl")
	ExportGitRepo    string        // AGORA_EXPORT_GIT_REPO (enables git when set; path to clone)
	ExportGitFile    string        // AGORA_EXPORT_GIT_FILE (default "deliberations.jsonl")
	ExportGitBranch  string        // AGORA_EXPORT_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("AGORA_DATABASE_URL"),
		GRPCAddr:         envOrDefault("AGORA_GRPC_ADDR", ":9090"),
		HTTPAddr:         envOrDefault("AGORA_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("AGORA_NATS_URL"),
		AuthToken:        os.Getenv("AGORA_AUTH_TOKEN"),
		SchemesFile:      os.Getenv("AGORA_SCHEMES_FILE"),
		ExportS3Bucket:   os.Getenv("AGORA_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("AGORA_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("AGORA_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("AGORA_EXPORT_S3_KEY", "agora/deliberations.jsonl"),
		ExportGitRepo:    os.Getenv("AGORA_EXPORT_GIT_REPO"),
		ExportGitFile:    envOrDefault("AGORA_EXPORT_GIT_FILE", "deliberations.jsonl"),
		ExportGitBranch:  envOrDefault("AGORA_EXPORT_GIT_BRANCH", "main"),
	}

	var err error
	if c.RecomputeRetry, err = durationEnv("AGORA_RECOMPUTE_RETRY", "2s"); err != nil {
		return nil, err
	}
	if c.PreferredCacheTTL, err = durationEnv("AGORA_PREFERRED_CACHE_TTL", "10m"); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = durationEnv("AGORA_EXPORT_INTERVAL", "0"); err != nil {
		return nil, err
	}
	if c.RecomputeRetry <= 0 {
		return nil, fmt.Errorf("AGORA_RECOMPUTE_RETRY must be positive")
	}

	history := envOrDefault("AGORA_LABEL_HISTORY", "32")
	n, err := strconv.Atoi(history)
	if err != nil {
		return nil, fmt.Errorf("AGORA_LABEL_HISTORY: %w", err)
	}
	if n < 1 {
		return nil, fmt.Errorf("AGORA_LABEL_HISTORY must be at least 1, got %d", n)
	}
	c.LabelHistory = n

	return c, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
