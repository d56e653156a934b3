// Package stack assembles the storage, embedding, index, and engine
// components shared by the tastes commands.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/papercomputeco/tastes/pkg/config"
	"github.com/papercomputeco/tastes/pkg/dotdir"
	"github.com/papercomputeco/tastes/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/tastes/pkg/embeddings/utils"
	"github.com/papercomputeco/tastes/pkg/eventstream"
	"github.com/papercomputeco/tastes/pkg/eventstream/kafka"
	"github.com/papercomputeco/tastes/pkg/eventstream/nop"
	"github.com/papercomputeco/tastes/pkg/preference"
	"github.com/papercomputeco/tastes/pkg/storage"
	storageutils "github.com/papercomputeco/tastes/pkg/storage/utils"
	"github.com/papercomputeco/tastes/pkg/vector"
	vectorutils "github.com/papercomputeco/tastes/pkg/vector/utils"
)

// Stack holds the long-lived components built from a Config.
type Stack struct {
	Config    *config.Config
	Storage   storage.Driver
	Embedder  embeddings.Embedder
	Publisher eventstream.Publisher
	Engine    *preference.Engine

	// Index is nil when the vector store provider is "none".
	Index vector.Driver

	logger *slog.Logger
}

// Build opens every component named by cfg. configDir resolves default
// SQLite paths into the .tastes/ directory.
func Build(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*Stack, error) {
	s := &Stack{Config: cfg, logger: logger}

	tuning, err := cfg.Engine.Tuning()
	if err != nil {
		return nil, err
	}

	if err := s.openStorage(ctx, configDir); err != nil {
		return nil, err
	}

	if err := s.openEmbedder(); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.openIndex(ctx, configDir); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.openPublisher(); err != nil {
		s.Close()
		return nil, err
	}

	s.Engine, err = preference.NewEngine(preference.Config{
		Store:    s.Storage,
		Embedder: s.Embedder,
		Tuning:   tuning,
		Logger:   logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Stack) openStorage(ctx context.Context, configDir string) error {
	c := s.Config.Storage
	path := c.SQLitePath
	if c.Driver == "sqlite" && path == "" {
		var err error
		path, err = dotdir.NewManager().Path(configDir, dotdir.DatabaseFile)
		if err != nil {
			return err
		}
	}

	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		Driver:        c.Driver,
		SQLitePath:    path,
		PostgresDSN:   c.PostgresDSN,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	s.Storage = driver

	s.logger.Info("storage ready", "driver", c.Driver, "sqlite_path", path)
	return nil
}

func (s *Stack) openEmbedder() error {
	c := s.Config.Embedding
	apiKey := c.APIKey
	if apiKey == "" && c.Provider == "openai" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.Provider,
		TargetURL:    c.Target,
		Model:        c.Model,
		Dimensions:   int(c.Dimensions),
		APIKey:       apiKey,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	s.Embedder = embedder

	s.logger.Info("embedder ready", "provenance", embedder.Provenance().String())
	return nil
}

func (s *Stack) openIndex(ctx context.Context, configDir string) error {
	c := s.Config.VectorStore
	target := c.Target
	if (c.Provider == "sqlite" || c.Provider == "sqlitevec") && target == "" {
		var err error
		target, err = dotdir.NewManager().Path(configDir, dotdir.IndexFile)
		if err != nil {
			return err
		}
	}

	index, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: c.Provider,
		TargetURL:    target,
		Collection:   c.Collection,
		APIKey:       c.APIKey,
		Provenance:   s.Embedder.Provenance(),
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("opening product index: %w", err)
	}
	if index == nil {
		s.logger.Info("product index disabled")
		return nil
	}
	s.Index = index
	return nil
}

func (s *Stack) openPublisher() error {
	c := s.Config.EventStream
	switch c.Provider {
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.BrokerList(),
			Topic:   c.Topic,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("creating kafka publisher: %w", err)
		}
		s.Publisher = p
		s.logger.Info("publishing change events", "brokers", c.Brokers, "topic", c.Topic)
	case "none", "":
		s.Publisher = nop.NewPublisher()
	default:
		return fmt.Errorf("unsupported event stream provider: %s", c.Provider)
	}
	return nil
}

// Close releases every opened component.
func (s *Stack) Close() error {
	var errs []error
	if s.Publisher != nil {
		errs = append(errs, s.Publisher.Close())
	}
	if s.Index != nil {
		errs = append(errs, s.Index.Close())
	}
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.Storage != nil {
		errs = append(errs, s.Storage.Close())
	}
	return errors.Join(errs...)
}
