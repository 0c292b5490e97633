package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spigell/mentor-matcher/internal/ai"
	"github.com/spigell/mentor-matcher/internal/ai/gemini"
	"github.com/spigell/mentor-matcher/internal/chat"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/directory/memory"
	"github.com/spigell/mentor-matcher/internal/directory/sqlite"
	"github.com/spigell/mentor-matcher/internal/lifecycle"
	"github.com/spigell/mentor-matcher/internal/logger"
	"github.com/spigell/mentor-matcher/internal/recommend"
	"github.com/spigell/mentor-matcher/internal/secrets"
	"github.com/spigell/mentor-matcher/internal/tools"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// services bundles everything a command needs. Close releases the store.
type services struct {
	config    *Config
	logger    *zap.Logger
	store     directory.Store
	tools     *tools.Registry
	model     ai.Model
	recommend *recommend.Service
	chat      *chat.Service
	lifecycle *lifecycle.Service
}

// mustSetup builds services or exits, the same way every command starts.
func mustSetup(ctx context.Context) *services {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	svc, err := setup(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing services", zap.Error(err))
	}

	return svc
}

func setup(ctx context.Context, config *Config, log *zap.Logger) (*services, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	store, err := openStore(ctx, config.Store, log)
	if err != nil {
		return nil, err
	}

	registry := tools.New(store, store,
		tools.WithMaxAttempts(config.Tools.MaxAttempts),
		tools.WithLogger(logger.Named(log, "tools")),
	)

	model := newModel(ctx, config.AI, log)

	return &services{
		config: config,
		logger: log,
		store:  store,
		tools:  registry,
		model:  model,
		recommend: recommend.New(registry, model,
			recommend.WithTimeout(config.AI.Timeout),
			recommend.WithMaxLogLength(config.AI.Gemini.MaxLogLength),
			recommend.WithLogger(logger.Named(log, "recommend")),
		),
		chat: chat.New(registry, model,
			chat.WithTimeout(config.AI.Timeout),
			chat.WithMaxLogLength(config.AI.Gemini.MaxLogLength),
			chat.WithLogger(logger.Named(log, "chat")),
		),
		lifecycle: lifecycle.New(store, lifecycle.WithLogger(logger.Named(log, "lifecycle"))),
	}, nil
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func openStore(ctx context.Context, cfg StoreConfig, log *zap.Logger) (directory.Store, error) {
	var store directory.Store

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return nil, fmt.Errorf("store.path is required for the sqlite driver")
		}
		db, err := sqlite.Open(ctx, path, logger.Named(log, "store"))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		store = db
	case "memory":
		store = memory.New()
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	if cfg.ProfilesFile == "" {
		return store, nil
	}

	profiles, err := directory.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := directory.Seed(ctx, store, profiles); err != nil {
		store.Close()
		return nil, err
	}

	log.Info("seeded profiles", zap.String("file", cfg.ProfilesFile), zap.Int("count", len(profiles)))
	return store, nil
}

// newModel never fails: without a usable provider every AI caller takes its fallback path.
func newModel(ctx context.Context, cfg AIConfig, log *zap.Logger) ai.Model {
	if !cfg.Enabled {
		log.Info("ai is disabled", zap.String("hint", "set ai.enabled to true to use model rankings"))
		return ai.Unavailable{Reason: "ai is disabled"}
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		log.Warn("skipping ai", zap.String("reason", "unsupported ai provider"), zap.String("provider", cfg.Provider))
		return ai.Unavailable{Reason: fmt.Sprintf("unsupported ai provider: %s", cfg.Provider)}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		log.Warn("skipping ai",
			zap.Error(err),
			zap.String("hint", "set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY"),
		)
		return ai.Unavailable{Reason: "gemini api key is not configured"}
	}

	generator, err := gemini.New(ctx, gemini.Config{
		APIKey:       apiKey,
		Model:        cfg.Gemini.Model,
		MaxRetries:   cfg.Gemini.MaxRetries,
		MaxLogLength: cfg.Gemini.MaxLogLength,
	}, logger.Named(log, "gemini"))
	if err != nil {
		log.Warn("skipping ai", zap.Error(err))
		return ai.Unavailable{Reason: err.Error()}
	}

	log.Info("ai is enabled", ai.Fields(generator)...)
	return generator
}

func redacted(config *Config) Config {
	c := *config
	if c.AI.Gemini.APIKey != "" {
		c.AI.Gemini.APIKey = "<redacted>"
	}
	return c
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
