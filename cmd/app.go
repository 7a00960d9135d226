package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/config"
	"github.com/ideamlabs/guidesignal-matcher/internal/embedding"
	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/matching"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/secrets"
	"github.com/ideamlabs/guidesignal-matcher/internal/store"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

// application is everything a command needs, built from the loaded config.
type application struct {
	logger *zap.Logger
	config *config.Config
	store  *store.Store
	engine *matching.Engine
}

// newLogger builds the logger from the persistent flags or dies.
func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// openStore loads the config and opens the database without starting an engine.
func openStore(l *zap.Logger) (*config.Config, *store.Store) {
	cfg, err := getConfig()
	if err != nil {
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			l.Fatal("refusing to start", zap.Strings("invalid", cerr.Fields))
		}
		l.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(cfg, "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	st, err := store.Open(cfg.Database, l.Named("store"))
	if err != nil {
		l.Fatal("opening the database", zap.String("path", cfg.Database), zap.Error(err))
	}
	return cfg, st
}

func setup(ctx context.Context) *application {
	l := newLogger()
	cfg, st := openStore(l)

	l.Info("starting the "+app, zap.String("version", version))

	model, err := weights.NewModel(weights.Default(), weights.WithPersist(st.SaveWeights), weights.WithLogger(l.Named("weights")))
	if err != nil {
		l.Fatal("creating the weight model", zap.Error(err))
	}
	snap, err := st.LoadWeights(ctx)
	switch {
	case err == nil:
		if err := model.Restore(*snap); err != nil {
			l.Warn("ignoring persisted weights", zap.Uint64(logger.FieldWeightsVersion, snap.Version), zap.Error(err))
		} else {
			l.Debug("restored weights", zap.Uint64(logger.FieldWeightsVersion, snap.Version), zap.Stringer("weights", snap.Weights))
		}
	case errors.Is(err, profile.ErrNotFound):
		l.Debug("no persisted weights, using defaults")
	default:
		l.Fatal("loading persisted weights", zap.Error(err))
	}

	embedder, err := newEmbedder(ctx, cfg, l)
	if err != nil {
		l.Fatal("creating the embedding provider", zap.Error(err),
			zap.String("hint", "set embedding.api-key-file or GEMINI_API_KEY, or use embedding.provider: hashing"),
		)
	}

	matching.Version = version
	engine, err := matching.New(*cfg, st, st,
		matching.WithLogger(l),
		matching.WithEmbedder(embedder),
		matching.WithModel(model),
		matching.WithFeedbackLog(st),
		matching.WithFeedbackHistory(st),
	)
	if err != nil {
		l.Fatal("starting the matching engine", zap.Error(err))
	}

	return &application{logger: l, config: cfg, store: st, engine: engine}
}

func (a *application) Close() {
	if err := a.engine.Close(); err != nil {
		a.logger.Warn("closing the engine", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing the database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func newEmbedder(ctx context.Context, cfg *config.Config, l *zap.Logger) (embedding.Embedder, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Embedding.Provider))

	var inner embedding.Embedder
	switch provider {
	case config.ProviderHashing, "":
		inner = embedding.NewHashing(cfg.Embedding.Dimension)
	case config.ProviderGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Embedding.APIKey,
			Env:   "GEMINI_API_KEY",
			File:  cfg.Embedding.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		gemini, err := embedding.NewGemini(ctx, apiKey, cfg.Embedding.Model, cfg.Embedding.Dimension,
			l.With(zap.String("provider", "gemini"), zap.String("model", cfg.Embedding.Model)))
		if err != nil {
			return nil, err
		}
		inner = gemini
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	if cfg.Embedding.CacheSize == 0 {
		return inner, nil
	}
	return embedding.NewCached(inner, cfg.Embedding.CacheSize), nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
