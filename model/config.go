package model

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/siherrmann/recaller/helper"
)

// RecallerConfig represents the full configuration, resolved once at startup.
// Call sites never read the environment themselves.
type RecallerConfig struct {
	// Store connections
	LongTerm  *helper.DatabaseConfiguration `json:"long_term"`
	ShortTerm *helper.DatabaseConfiguration `json:"short_term"`

	// Promotion parameters
	PromoteDocumentNodes bool  `json:"promote_document_nodes"`
	DefaultTTLMillis     int64 `json:"default_ttl_millis"`

	// Commit parameters
	RequireValidated bool `json:"require_validated"`

	// Maintenance parameters
	BatchSize      int           `json:"batch_size"`
	SweepInterval  time.Duration `json:"sweep_interval"`  // 0 disables the timer
	CommitInterval time.Duration `json:"commit_interval"` // 0 means on demand only

	// Retrieval parameters
	TopK         int `json:"top_k"`
	EmbeddingDim int `json:"embedding_dim"`
}

// DefaultRecallerConfig returns a sensible default configuration
func DefaultRecallerConfig() *RecallerConfig {
	return &RecallerConfig{
		PromoteDocumentNodes: true,
		DefaultTTLMillis:     3600000,
		RequireValidated:     false,
		BatchSize:            10000,
		SweepInterval:        time.Minute,
		CommitInterval:       0,
		TopK:                 5,
		EmbeddingDim:         384,
	}
}

// NewRecallerConfigFromEnv builds the configuration from the environment.
// Store settings come from the LONGTERM_/SHORTTERM_ prefixed database
// variables, everything else from RECALLER_* variables with the defaults of
// DefaultRecallerConfig. A .env file is loaded first if present.
func NewRecallerConfigFromEnv() (*RecallerConfig, error) {
	_ = godotenv.Load()

	longTerm, err := helper.NewPrefixedDatabaseConfiguration("LONGTERM_")
	if err != nil {
		return nil, err
	}
	shortTerm, err := helper.NewPrefixedDatabaseConfiguration("SHORTTERM_")
	if err != nil {
		return nil, err
	}

	config := DefaultRecallerConfig()
	config.LongTerm = longTerm
	config.ShortTerm = shortTerm

	err = parseEnvBool("RECALLER_PROMOTE_DOCUMENT_NODES", &config.PromoteDocumentNodes)
	if err != nil {
		return nil, err
	}
	err = parseEnvInt64("RECALLER_DEFAULT_TTL_MS", &config.DefaultTTLMillis)
	if err != nil {
		return nil, err
	}
	err = parseEnvBool("RECALLER_REQUIRE_VALIDATED", &config.RequireValidated)
	if err != nil {
		return nil, err
	}
	err = parseEnvInt("RECALLER_BATCH_SIZE", &config.BatchSize)
	if err != nil {
		return nil, err
	}
	err = parseEnvDuration("RECALLER_SWEEP_INTERVAL", &config.SweepInterval)
	if err != nil {
		return nil, err
	}
	err = parseEnvDuration("RECALLER_COMMIT_INTERVAL", &config.CommitInterval)
	if err != nil {
		return nil, err
	}
	err = parseEnvInt("RECALLER_TOP_K", &config.TopK)
	if err != nil {
		return nil, err
	}
	err = parseEnvInt("RECALLER_EMBEDDING_DIM", &config.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	return config, nil
}

func parseEnvBool(key string, target *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return helper.NewCodeError("configuration parse", helper.CodeInvalidInput, fmt.Errorf("invalid %s: %w", key, err))
	}
	*target = parsed
	return nil
}

func parseEnvInt(key string, target *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return helper.NewCodeError("configuration parse", helper.CodeInvalidInput, fmt.Errorf("invalid %s: %w", key, err))
	}
	*target = parsed
	return nil
}

func parseEnvInt64(key string, target *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return helper.NewCodeError("configuration parse", helper.CodeInvalidInput, fmt.Errorf("invalid %s: %w", key, err))
	}
	*target = parsed
	return nil
}

func parseEnvDuration(key string, target *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return helper.NewCodeError("configuration parse", helper.CodeInvalidInput, fmt.Errorf("invalid %s: %w", key, err))
	}
	*target = parsed
	return nil
}
