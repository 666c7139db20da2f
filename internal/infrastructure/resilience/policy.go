package resilience

import (
	"strings"
	"time"
)

// Dependency names the backend an operation calls. Operation names are
// "<dependency>.<call>", e.g. "ollama.generate".
type Dependency string

const (
	DependencyContentAnalysis Dependency = "ollama"
	DependencyObjectStorage   Dependency = "s3"
	DependencyReanalysisQueue Dependency = "nats"
)

func dependencyOf(operation string) Dependency {
	name, _, _ := strings.Cut(operation, ".")
	return Dependency(name)
}

// RetryPolicy overrides the retry schedule for one dependency. Zero fields
// fall back to the executor-wide values.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// Dependencies tunes retries per backend. A content analysis call
	// already runs inside the analysis timeout, so it gets fewer and slower
	// attempts than a publish on the upload path.
	Dependencies map[Dependency]RetryPolicy

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// OnStateChange is called with the operation name and new breaker state.
	OnStateChange func(operation, state string)
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		Dependencies: map[Dependency]RetryPolicy{
			// Model servers answer 503 while loading weights; one slow retry.
			DependencyContentAnalysis: {MaxAttempts: 2, InitialBackoff: 500 * time.Millisecond, MaxBackoff: time.Second},
			// The uploader is waiting on the publish.
			DependencyReanalysisQueue: {InitialBackoff: 50 * time.Millisecond, MaxBackoff: 200 * time.Millisecond},
		},

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// retrySchedule resolves the attempts and backoff bounds for operation.
func (c Config) retrySchedule(operation string) (attempts int, initial, ceiling time.Duration) {
	attempts, initial, ceiling = c.RetryMaxAttempts, c.RetryInitialBackoff, c.RetryMaxBackoff
	p, ok := c.Dependencies[dependencyOf(operation)]
	if !ok {
		return attempts, initial, ceiling
	}
	if p.MaxAttempts > 0 {
		attempts = p.MaxAttempts
	}
	if p.InitialBackoff > 0 {
		initial = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		ceiling = p.MaxBackoff
	}
	if ceiling < initial {
		ceiling = initial
	}
	return attempts, initial, ceiling
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
