package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Scoring pipeline settings
	Scoring ScoringConfig `json:"scoring"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ScoringConfig holds the sweep pipeline settings.
type ScoringConfig struct {
	// ArtifactPath is the serialized model loaded once at startup.
	ArtifactPath string `json:"artifactPath"`

	// Threshold is the risk score filter: rows with score > Threshold are
	// reported. Deliberately low so degraded batches (no V1..V28) still
	// surface partial matches.
	Threshold int `json:"threshold"`

	// AlertScore is the score at or above which an anomaly is published
	// on the alert topic for the async worker.
	AlertScore int `json:"alertScore"`

	// ExplainExpr is an optional CEL expression over the canonical features
	// returning the artifact label. Empty selects the built-in boundary
	// heuristic.
	ExplainExpr string `json:"explainExpr"`

	// RateLimitPerMin caps sweep requests per tenant per minute. 0 disables.
	RateLimitPerMin int `json:"rateLimitPerMin"`

	// SummaryCacheTTL is how long digest-keyed summaries stay cached,
	// in seconds.
	SummaryCacheTTL int `json:"summaryCacheTtl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// MaxUploadBytes caps the accepted batch size.
	MaxUploadBytes int64 `json:"maxUploadBytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			ReadTimeout:    30,
			WriteTimeout:   30,
			MaxUploadBytes: 32 << 20, // 32 MiB
		},
		Tier: TierCommunity,
		Scoring: ScoringConfig{
			ArtifactPath:    "./kestrel_model.json",
			Threshold:       5,
			AlertScore:      80,
			RateLimitPerMin: 0,
			SummaryCacheTTL: 300, // 5 minutes
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Scoring.RateLimitPerMin = 120
	cfg.Tracing.Enabled = true
	return cfg
}
