package config

const (
	defaultStorageDriver = "sqlite"
	defaultRedisPrefix   = "tastes"

	defaultAPIListen = ":8082"

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "products"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingTarget     = "http://localhost:11434"

	defaultDecay        = 0.9
	defaultWeightScale  = 0.1
	defaultMaxAttempts  = 3
	defaultEmbedTimeout = "10s"
	defaultStoreTimeout = "5s"
	defaultWorkers      = 3
	defaultQueueSize    = 256

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "tastes.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:      defaultStorageDriver,
			RedisPrefix: defaultRedisPrefix,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
			MCP:    true,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Engine: EngineConfig{
			Decay:        defaultDecay,
			WeightScale:  defaultWeightScale,
			MaxAttempts:  defaultMaxAttempts,
			EmbedTimeout: defaultEmbedTimeout,
			StoreTimeout: defaultStoreTimeout,
			Workers:      defaultWorkers,
			QueueSize:    defaultQueueSize,
			Weights: WeightsConfig{
				View:      1,
				Click:     2,
				AddToList: 4,
				Purchase:  8,
				Dismiss:   -2,
			},
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
