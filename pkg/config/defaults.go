package config

import "time"

// defaultDocument returns the built-in defaults merged under any
// user-supplied engine.yaml, covering the engine's structural sections
// (safety, concurrency, retry, embeddings batching, circuit breakers, queue
// consumer settings, dedup). Store endpoints, external module URLs and
// LLM roles have no defaults.
func defaultDocument() Document {
	return Document{
		Safety: SafetyConfig{
			MaxCyclesPerInvestigation:        10,
			MaxTurnsPerSession:               50,
			MaxWorkOrdersPerCycle:            20,
			HeartbeatTTL:                     60 * time.Second,
			ConsecutiveAllFailLimit:          2,
			MaxConsecutiveMalformedToolCalls: 3,
		},
		Concurrency: ConcurrencyConfig{
			ProcessorPoolSize: 8,
			BrowserContextCap: 4,
		},
		Retry: RetryConfig{
			LLM:            RetryTarget{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second, Multiplier: 2, Jitter: true},
			Database:       RetryTarget{MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second, Multiplier: 2, Jitter: true},
			ExternalModule: RetryTarget{MaxAttempts: 2, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2, Jitter: true},
			Embedding:      RetryTarget{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2, Jitter: true},
		},
		Embeddings: EmbeddingsConfig{
			BatchSize:        64,
			BackfillInterval: 5 * time.Minute,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenProbes:   2,
		},
		Queue: QueueConfig{
			ConsumerGroup:   "processors",
			ReclaimInterval: 30 * time.Second,
			StreamMaxLen:    100000,
		},
		Dedup: DedupConfig{
			FuzzyThreshold:     0.85,
			EmbeddingThreshold: 0.90,
			ShortlistSize:      10,
		},
	}
}
