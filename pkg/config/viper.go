package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/tastes/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the TASTES_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (TASTES_API_LISTEN, TASTES_ENGINE_DECAY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: TASTES_API_LISTEN, TASTES_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("TASTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", d.Storage.RedisPassword)
	v.SetDefault("storage.redis_db", d.Storage.RedisDB)
	v.SetDefault("storage.redis_prefix", d.Storage.RedisPrefix)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.mcp", d.API.MCP)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)

	// Engine
	v.SetDefault("engine.decay", d.Engine.Decay)
	v.SetDefault("engine.weight_scale", d.Engine.WeightScale)
	v.SetDefault("engine.max_attempts", d.Engine.MaxAttempts)
	v.SetDefault("engine.embed_timeout", d.Engine.EmbedTimeout)
	v.SetDefault("engine.store_timeout", d.Engine.StoreTimeout)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.queue_size", d.Engine.QueueSize)
	v.SetDefault("engine.weights.view", d.Engine.Weights.View)
	v.SetDefault("engine.weights.click", d.Engine.Weights.Click)
	v.SetDefault("engine.weights.add_to_list", d.Engine.Weights.AddToList)
	v.SetDefault("engine.weights.purchase", d.Engine.Weights.Purchase)
	v.SetDefault("engine.weights.dismiss", d.Engine.Weights.Dismiss)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}

// FromViper decodes the resolved viper state into a Config and fills any
// remaining zero values from the defaults.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver:        v.GetString("storage.driver"),
			SQLitePath:    v.GetString("storage.sqlite_path"),
			PostgresDSN:   v.GetString("storage.postgres_dsn"),
			RedisAddr:     v.GetString("storage.redis_addr"),
			RedisPassword: v.GetString("storage.redis_password"),
			RedisDB:       v.GetInt("storage.redis_db"),
			RedisPrefix:   v.GetString("storage.redis_prefix"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
			MCP:    v.GetBool("api.mcp"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
			APIKey:     v.GetString("vector_store.api_key"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			APIKey:     v.GetString("embedding.api_key"),
		},
		Engine: EngineConfig{
			Decay:        v.GetFloat64("engine.decay"),
			WeightScale:  v.GetFloat64("engine.weight_scale"),
			MaxAttempts:  v.GetUint("engine.max_attempts"),
			EmbedTimeout: v.GetString("engine.embed_timeout"),
			StoreTimeout: v.GetString("engine.store_timeout"),
			Workers:      v.GetUint("engine.workers"),
			QueueSize:    v.GetUint("engine.queue_size"),
			Weights: WeightsConfig{
				View:      v.GetFloat64("engine.weights.view"),
				Click:     v.GetFloat64("engine.weights.click"),
				AddToList: v.GetFloat64("engine.weights.add_to_list"),
				Purchase:  v.GetFloat64("engine.weights.purchase"),
				Dismiss:   v.GetFloat64("engine.weights.dismiss"),
			},
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetString("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}
	applyDefaults(cfg)
	return cfg
}
