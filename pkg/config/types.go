package config

import "time"

// Document is the structural shape of engine.yaml. It is parsed once at
// startup; Config wraps it with validation and reload bookkeeping.
type Document struct {
	Safety        SafetyConfig                `yaml:"safety"`
	Concurrency   ConcurrencyConfig            `yaml:"concurrency"`
	Retry         RetryConfig                  `yaml:"retry"`
	Embeddings    EmbeddingsConfig             `yaml:"embeddings"`
	LLM           LLMRolesConfig               `yaml:"llm"`
	CircuitBreaker CircuitBreakerConfig        `yaml:"circuit_breaker"`
	Graph         GraphConfig                  `yaml:"graph"`
	Relational    RelationalConfig             `yaml:"relational"`
	Queue         QueueConfig                  `yaml:"queue"`
	ExternalModules ExternalModulesConfig      `yaml:"external_modules"`
	Dedup         DedupConfig                  `yaml:"dedup"`
}

// DedupConfig sets the fuzzy and embedding thresholds for the
// Processor-facing dedup cascade.
type DedupConfig struct {
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold" validate:"required,gt=0,lte=1"`
	EmbeddingThreshold float64 `yaml:"embedding_threshold" validate:"required,gt=0,lte=1"`
	ShortlistSize      int     `yaml:"shortlist_size" validate:"required,min=1"`
}

// SafetyConfig holds the numeric limits enforced by the orchestrator and
// session runtime. These require a process restart to change.
type SafetyConfig struct {
	MaxCyclesPerInvestigation      int           `yaml:"max_cycles_per_investigation" validate:"required,min=1,max=1000"`
	MaxTurnsPerSession             int           `yaml:"max_turns_per_session" validate:"required,min=1,max=1000"`
	MaxWorkOrdersPerCycle          int           `yaml:"max_work_orders_per_cycle" validate:"required,min=1,max=1000"`
	HeartbeatTTL                   time.Duration `yaml:"heartbeat_ttl" validate:"required"`
	ConsecutiveAllFailLimit        int           `yaml:"consecutive_all_fail_limit" validate:"required,min=1"`
	MaxConsecutiveMalformedToolCalls int         `yaml:"max_consecutive_malformed_tool_calls" validate:"required,min=1"`
}

// ConcurrencyConfig bounds pool sizes and per-process fan-out.
type ConcurrencyConfig struct {
	ProcessorPoolSize  int `yaml:"processor_pool_size" validate:"required,min=1,max=1024"`
	BrowserContextCap  int `yaml:"browser_context_cap" validate:"required,min=1,max=256"`
}

// RetryTarget is one {max_attempts, initial_backoff, max_backoff,
// multiplier, jitter} policy, applied through cenkalti/backoff.
type RetryTarget struct {
	MaxAttempts    int           `yaml:"max_attempts" validate:"required,min=1"`
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"required"`
	MaxBackoff     time.Duration `yaml:"max_backoff" validate:"required"`
	Multiplier     float64       `yaml:"multiplier" validate:"required,gt=1"`
	Jitter         bool          `yaml:"jitter"`
}

// RetryConfig holds one RetryTarget per external dependency class.
type RetryConfig struct {
	LLM             RetryTarget `yaml:"llm"`
	Database        RetryTarget `yaml:"database"`
	ExternalModule  RetryTarget `yaml:"external_module"`
	Embedding       RetryTarget `yaml:"embedding"`
}

// EmbeddingsConfig configures the embedding provider and backfill cadence.
type EmbeddingsConfig struct {
	Provider         string        `yaml:"provider" validate:"required"`
	Model            string        `yaml:"model" validate:"required"`
	Dimensions       int           `yaml:"dimensions" validate:"required,min=1"`
	BatchSize        int           `yaml:"batch_size" validate:"required,min=1,max=2048"`
	BackfillInterval time.Duration `yaml:"backfill_interval" validate:"required"`
}

// LLMRoleConfig names the provider+model for one session role.
type LLMRoleConfig struct {
	Provider string `yaml:"provider" validate:"required"`
	Model    string `yaml:"model" validate:"required"`
}

// LLMRolesConfig holds the Analyst and Processor role configurations.
type LLMRolesConfig struct {
	Analyst   LLMRoleConfig `yaml:"analyst"`
	Processor LLMRoleConfig `yaml:"processor"`
}

// CircuitBreakerConfig parameterizes the per-dependency gobreaker instances.
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"required,min=1"`
	Cooldown         time.Duration `yaml:"cooldown" validate:"required"`
	HalfOpenProbes   uint32        `yaml:"half_open_probes" validate:"required,min=1"`
}

// GraphConfig configures the Weaviate-backed graph store adapter.
type GraphConfig struct {
	Scheme string `yaml:"scheme" validate:"required,oneof=http https"`
	Host   string `yaml:"host" validate:"required"`
	APIKey string `yaml:"api_key_env"`
}

// RelationalConfig configures the Postgres-backed relational store.
type RelationalConfig struct {
	DSN             string        `yaml:"dsn_env" validate:"required"`
	MaxConns        int32         `yaml:"max_conns" validate:"required,min=1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

// QueueConfig configures the Redis Streams queue adapter.
type QueueConfig struct {
	Addr             string        `yaml:"addr" validate:"required"`
	ConsumerGroup    string        `yaml:"consumer_group" validate:"required"`
	ReclaimInterval  time.Duration `yaml:"reclaim_interval" validate:"required"`
	StreamMaxLen     int64         `yaml:"stream_max_len" validate:"required,min=1"`
}

// ExternalModulesConfig holds base URLs for the soft-dependency services.
type ExternalModulesConfig struct {
	FetchBaseURL  string `yaml:"fetch_base_url" validate:"required,url"`
	GeoBaseURL    string `yaml:"geo_base_url" validate:"required,url"`
	ScribeBaseURL string `yaml:"scribe_base_url" validate:"required,url"`
}

// Priority is a queue priority stream.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// DefaultWorkOrderPriority is the relational work_orders.priority default,
// 1 (normal). 0 is reserved for administratively deprioritized orders and
// is never assigned by the Analyst's create_work_order tool.
const DefaultWorkOrderPriority = int(PriorityNormal)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}
