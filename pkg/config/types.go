package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent tastes configuration stored as config.toml
// in the .tastes/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Engine      EngineConfig      `toml:"engine"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects the event log and state store backend.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres", "redis", or "inmemory".
	Driver        string `toml:"driver,omitempty"`
	SQLitePath    string `toml:"sqlite_path,omitempty"`
	PostgresDSN   string `toml:"postgres_dsn,omitempty"`
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
	RedisPrefix   string `toml:"redis_prefix,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
	MCP    bool   `toml:"mcp,omitempty"`
}

// VectorStoreConfig holds product index settings.
type VectorStoreConfig struct {
	// Provider is "sqlite", "qdrant", or "none".
	Provider string `toml:"provider,omitempty"`

	// Target is the sqlite-vec database path or the qdrant host:port.
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// EngineConfig holds preference engine tuning and async worker settings.
// Timeouts are Go duration strings (e.g. "10s").
type EngineConfig struct {
	Decay        float64       `toml:"decay,omitempty"`
	WeightScale  float64       `toml:"weight_scale,omitempty"`
	MaxAttempts  uint          `toml:"max_attempts,omitempty"`
	EmbedTimeout string        `toml:"embed_timeout,omitempty"`
	StoreTimeout string        `toml:"store_timeout,omitempty"`
	Workers      uint          `toml:"workers,omitempty"`
	QueueSize    uint          `toml:"queue_size,omitempty"`
	Weights      WeightsConfig `toml:"weights"`
}

// WeightsConfig is the per-action default weight table.
type WeightsConfig struct {
	View      float64 `toml:"view,omitempty"`
	Click     float64 `toml:"click,omitempty"`
	AddToList float64 `toml:"add_to_list,omitempty"`
	Purchase  float64 `toml:"purchase,omitempty"`
	Dismiss   float64 `toml:"dismiss,omitempty"`
}

// EventStreamConfig holds notification publisher settings.
type EventStreamConfig struct {
	// Provider is "kafka" or "none".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into its entries.
func (c EventStreamConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver":         stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":    stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":   stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.redis_addr":     stringKey(func(c *Config) *string { return &c.Storage.RedisAddr }),
	"storage.redis_password": stringKey(func(c *Config) *string { return &c.Storage.RedisPassword }),
	"storage.redis_prefix":   stringKey(func(c *Config) *string { return &c.Storage.RedisPrefix }),
	"storage.redis_db": {
		get: func(c *Config) string { return strconv.Itoa(c.Storage.RedisDB) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for storage.redis_db: %w", err)
			}
			c.Storage.RedisDB = n
			return nil
		},
	},
	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.mcp": {
		get: func(c *Config) string { return strconv.FormatBool(c.API.MCP) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for api.mcp: %w", err)
			}
			c.API.MCP = b
			return nil
		},
	},
	"vector_store.provider":      stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":        stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection":    stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.api_key":       stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),
	"embedding.provider":         stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":           stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":            stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.api_key":          stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.dimensions":       uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"engine.decay":               floatKey("engine.decay", func(c *Config) *float64 { return &c.Engine.Decay }),
	"engine.weight_scale":        floatKey("engine.weight_scale", func(c *Config) *float64 { return &c.Engine.WeightScale }),
	"engine.max_attempts":        uintKey("engine.max_attempts", func(c *Config) *uint { return &c.Engine.MaxAttempts }),
	"engine.embed_timeout":       durationKey("engine.embed_timeout", func(c *Config) *string { return &c.Engine.EmbedTimeout }),
	"engine.store_timeout":       durationKey("engine.store_timeout", func(c *Config) *string { return &c.Engine.StoreTimeout }),
	"engine.workers":             uintKey("engine.workers", func(c *Config) *uint { return &c.Engine.Workers }),
	"engine.queue_size":          uintKey("engine.queue_size", func(c *Config) *uint { return &c.Engine.QueueSize }),
	"engine.weights.view":        floatKey("engine.weights.view", func(c *Config) *float64 { return &c.Engine.Weights.View }),
	"engine.weights.click":       floatKey("engine.weights.click", func(c *Config) *float64 { return &c.Engine.Weights.Click }),
	"engine.weights.add_to_list": floatKey("engine.weights.add_to_list", func(c *Config) *float64 { return &c.Engine.Weights.AddToList }),
	"engine.weights.purchase":    floatKey("engine.weights.purchase", func(c *Config) *float64 { return &c.Engine.Weights.Purchase }),
	"engine.weights.dismiss":     floatKey("engine.weights.dismiss", func(c *Config) *float64 { return &c.Engine.Weights.Dismiss }),
	"eventstream.provider":       stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":        stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":          stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}
