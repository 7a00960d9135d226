// Package config holds the matcher settings and their defaults.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ideamlabs/guidesignal-matcher/internal/cache"
	"github.com/ideamlabs/guidesignal-matcher/internal/fairness"
	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
	"github.com/ideamlabs/guidesignal-matcher/internal/workerpool"
)

const (
	ProviderHashing = "hashing"
	ProviderGemini  = "gemini"

	defaultGeminiModel = "text-embedding-004"
)

type Config struct {
	Database string `mapstructure:"database" validate:"required"`

	CacheSize     int           `mapstructure:"cache-size" validate:"gt=0"`
	CacheTTL      time.Duration `mapstructure:"cache-ttl" validate:"gt=0"`
	WorkerCount   int           `mapstructure:"worker-count" validate:"gt=0"`
	TaskTimeoutMs int           `mapstructure:"task-timeout-ms" validate:"gt=0"`

	LearningRate            float64 `mapstructure:"learning-rate" validate:"gt=0,lte=1"`
	Momentum                float64 `mapstructure:"momentum" validate:"gte=0,lt=1"`
	FeedbackBatchSize       int     `mapstructure:"feedback-batch-size" validate:"gt=0"`
	HighConfidenceThreshold float64 `mapstructure:"high-confidence-threshold" validate:"gte=0,lte=1"`
	MinRecalibrationSamples int     `mapstructure:"min-recalibration-samples" validate:"gte=2"`
	RecalibrationWindow     int     `mapstructure:"recalibration-window" validate:"gte=0"`

	FairnessThreshold     float64 `mapstructure:"fairness-threshold" validate:"gte=0,lte=1"`
	FairnessMaxCorrection float64 `mapstructure:"fairness-max-correction" validate:"gt=0,lt=1"`
	FairnessMinGroup      int     `mapstructure:"fairness-min-group" validate:"gt=0"`

	DiversityFactor float64 `mapstructure:"diversity-factor" validate:"gte=0,lte=1"`
	BatchSize       int     `mapstructure:"batch-size" validate:"gt=0"`
	MaxSuggestions  int     `mapstructure:"max-suggestions" validate:"gte=0"`
	RecentHours     int     `mapstructure:"recent-hours" validate:"gte=0"`

	PollInterval time.Duration `mapstructure:"poll-interval" validate:"gt=0"`

	Embedding Embedding `mapstructure:"embedding"`
}

type Embedding struct {
	Provider   string `mapstructure:"provider" validate:"oneof=hashing gemini"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Dimension  int    `mapstructure:"dimension" validate:"gt=0"`
	CacheSize  int    `mapstructure:"cache-size" validate:"gte=0"`
}

// ConfigurationError lists every invalid setting. The engine refuses to start with one.
type ConfigurationError struct {
	Fields []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Fields, "; ")
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database:                "guidesignal.db",
		CacheSize:               10000,
		CacheTTL:                time.Hour,
		WorkerCount:             runtime.NumCPU(),
		TaskTimeoutMs:           10000,
		LearningRate:            0.01,
		Momentum:                0.9,
		FeedbackBatchSize:       100,
		HighConfidenceThreshold: 0.8,
		MinRecalibrationSamples: 20,
		RecalibrationWindow:     0,
		FairnessThreshold:       0.1,
		FairnessMaxCorrection:   0.2,
		FairnessMinGroup:        fairness.DefaultMinGroupSamples,
		DiversityFactor:         0.3,
		BatchSize:               32,
		MaxSuggestions:          3,
		RecentHours:             720,
		PollInterval:            5 * time.Second,
		Embedding: Embedding{
			Provider:  ProviderHashing,
			Dimension: 256,
			CacheSize: 4096,
		},
	}
}

// SetDefaults registers Default() on v so that unset keys fall back to it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("database", d.Database)
	v.SetDefault("cache-size", d.CacheSize)
	v.SetDefault("cache-ttl", d.CacheTTL)
	v.SetDefault("worker-count", d.WorkerCount)
	v.SetDefault("task-timeout-ms", d.TaskTimeoutMs)
	v.SetDefault("learning-rate", d.LearningRate)
	v.SetDefault("momentum", d.Momentum)
	v.SetDefault("feedback-batch-size", d.FeedbackBatchSize)
	v.SetDefault("high-confidence-threshold", d.HighConfidenceThreshold)
	v.SetDefault("min-recalibration-samples", d.MinRecalibrationSamples)
	v.SetDefault("recalibration-window", d.RecalibrationWindow)
	v.SetDefault("fairness-threshold", d.FairnessThreshold)
	v.SetDefault("fairness-max-correction", d.FairnessMaxCorrection)
	v.SetDefault("fairness-min-group", d.FairnessMinGroup)
	v.SetDefault("diversity-factor", d.DiversityFactor)
	v.SetDefault("batch-size", d.BatchSize)
	v.SetDefault("max-suggestions", d.MaxSuggestions)
	v.SetDefault("recent-hours", d.RecentHours)
	v.SetDefault("poll-interval", d.PollInterval)
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api-key", d.Embedding.APIKey)
	v.SetDefault("embedding.api-key-file", d.Embedding.APIKeyFile)
	v.SetDefault("embedding.dimension", d.Embedding.Dimension)
	v.SetDefault("embedding.cache-size", d.Embedding.CacheSize)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Embedding.Provider == ProviderGemini && strings.TrimSpace(cfg.Embedding.Model) == "" {
		cfg.Embedding.Model = defaultGeminiModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate returns a *ConfigurationError naming every invalid field.
func (c *Config) Validate() error {
	var fields []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, describe(fe))
		}
	}

	if c.RecalibrationWindow > 0 && c.RecalibrationWindow < c.MinRecalibrationSamples {
		fields = append(fields, fmt.Sprintf("recalibration-window (%d) must not be below min-recalibration-samples (%d)", c.RecalibrationWindow, c.MinRecalibrationSamples))
	}

	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	return &ConfigurationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	name := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s (got %v)", name, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s must satisfy %s (got %v)", name, fe.Tag(), fe.Value())
}

func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutMs) * time.Millisecond
}

func (c *Config) Cache() cache.Config {
	return cache.Config{Size: c.CacheSize, TTL: c.CacheTTL}
}

func (c *Config) Pool() workerpool.Config {
	return workerpool.Config{Workers: c.WorkerCount, TaskTimeout: c.TaskTimeout()}
}

func (c *Config) Learning() learning.Config {
	return learning.Config{
		LearningRate:   c.LearningRate,
		Momentum:       c.Momentum,
		HighConfidence: c.HighConfidenceThreshold,
		BatchSize:      c.FeedbackBatchSize,
		MinSamples:     c.MinRecalibrationSamples,
		Window:         c.RecalibrationWindow,
	}
}

func (c *Config) Fairness() fairness.Config {
	return fairness.Config{Threshold: c.FairnessThreshold, MaxCorrection: c.FairnessMaxCorrection}
}
