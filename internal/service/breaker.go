package service

import (
	"context"
	"sync"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/cache"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const probeCacheKey = "generative-backend"

// HealthChecker is the slice of the generative backend the breaker needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// BreakerConfig holds the routing-level circuit breaker parameters.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	CheckInterval    time.Duration // probe cache TTL
	ProbeTimeout     time.Duration
	AlertRatio       float64       // recent fallback ratio that triggers an alert
	AlertCooldown    time.Duration // min spacing between alerts
}

// BreakerState is a read-only copy of the breaker's state machine.
type BreakerState struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	IsOpen              bool      `json:"is_open"`
	OpenUntil           time.Time `json:"open_until,omitempty"`
	Activations         int64     `json:"activations"`
}

// Breaker guards the generative backend: after FailureThreshold consecutive
// failures it opens for Cooldown, then allows exactly one half-open probe.
// Probe results are cached for CheckInterval so concurrent request handlers
// do not hammer the backend's health endpoint.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	open        bool
	openUntil   time.Time
	activations int64
	lastAlert   time.Time

	cfg     BreakerConfig
	backend HealthChecker
	probes  *cache.InMemory[bool]
	group   singleflight.Group

	// fallbackRatio reports the recent fallback share (last 20 outcomes).
	// Optional; wired by the orchestrator to the outcome aggregator.
	fallbackRatio func() float64

	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBreaker creates a closed breaker with an empty probe cache.
func NewBreaker(cfg BreakerConfig, backend HealthChecker, metrics *observability.Metrics, logger *zap.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = 30 * time.Minute
	}
	return &Breaker{
		cfg:     cfg,
		backend: backend,
		probes:  cache.New[bool](cfg.CheckInterval),
		metrics: metrics,
		logger:  logger,
	}
}

// SetFallbackRatioFunc wires the recent-fallback-ratio source used for alerts.
func (b *Breaker) SetFallbackRatioFunc(fn func() float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallbackRatio = fn
}

// RecordFailure counts one generative failure. Reaching the threshold opens
// the breaker for the cooldown period and may emit a rate-limited alert.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	// A real failure supersedes any cached "healthy" probe.
	b.probes.Delete(probeCacheKey)

	if b.open {
		// Failed half-open probe: restart the cooldown.
		b.openUntil = time.Now().Add(b.cfg.Cooldown)
		b.probes.Set(probeCacheKey, false)
		return
	}
	if b.failures < b.cfg.FailureThreshold {
		return
	}

	b.open = true
	b.probes.Set(probeCacheKey, false)
	b.openUntil = time.Now().Add(b.cfg.Cooldown)
	b.activations++
	b.metrics.BreakerOpened()
	b.logger.Warn("circuit breaker opened",
		zap.Int("consecutive_failures", b.failures),
		zap.Time("open_until", b.openUntil),
		zap.Int64("activations", b.activations),
	)

	if b.fallbackRatio == nil || b.cfg.AlertRatio <= 0 {
		return
	}
	if ratio := b.fallbackRatio(); ratio > b.cfg.AlertRatio &&
		time.Since(b.lastAlert) > b.cfg.AlertCooldown {
		b.lastAlert = time.Now()
		b.logger.Error("fallback ratio above alert threshold",
			zap.Float64("ratio", ratio),
			zap.Float64("threshold", b.cfg.AlertRatio),
		)
	}
}

// RecordSuccess resets the consecutive failure count. It never closes an
// open breaker; only a successful half-open probe does that.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Probe reports whether the generative backend is currently usable.
// A cached probe younger than the check interval is returned as-is unless
// force is set. While the breaker is open and the cooldown has not elapsed,
// Probe returns false without touching the backend. Once the cooldown has
// passed, concurrent callers collapse into a single half-open probe.
// Probe never returns an error: every failure mode is healthy=false.
func (b *Breaker) Probe(ctx context.Context, force bool) bool {
	if !force {
		if healthy, ok := b.probes.Get(probeCacheKey); ok {
			return healthy
		}
	}

	b.mu.Lock()
	if b.open && time.Now().Before(b.openUntil) {
		b.mu.Unlock()
		return false
	}
	b.mu.Unlock()

	v, _, _ := b.group.Do(probeCacheKey, func() (any, error) {
		healthy := b.probeBackend(ctx)
		// Cache both outcomes so the next CheckInterval worth of callers
		// gets the answer without a backend call.
		b.probes.Set(probeCacheKey, healthy)
		b.metrics.RecordProbe(healthy)
		return healthy, nil
	})
	healthy, _ := v.(bool)
	return healthy
}

func (b *Breaker) probeBackend(ctx context.Context) bool {
	defer func() {
		// The probe path must never panic out of the breaker.
		if r := recover(); r != nil {
			b.logger.Error("health probe panicked", zap.Any("panic", r))
		}
	}()

	err := b.backend.HealthCheck(ctx, b.cfg.ProbeTimeout)
	if err != nil {
		b.logger.Warn("health probe failed", zap.Error(err))
		b.RecordFailure()
		return false
	}

	b.mu.Lock()
	wasOpen := b.open
	b.open = false
	b.openUntil = time.Time{}
	if wasOpen {
		// Only a half-open recovery clears the consecutive count; a green
		// health endpoint must not mask failing generation calls.
		b.failures = 0
	}
	b.mu.Unlock()

	if wasOpen {
		b.metrics.BreakerClosed()
		b.logger.Info("circuit breaker closed after successful probe")
	}
	return true
}

// Snapshot returns a copy of the breaker state.
func (b *Breaker) Snapshot() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{
		ConsecutiveFailures: b.failures,
		IsOpen:              b.open,
		OpenUntil:           b.openUntil,
		Activations:         b.activations,
	}
}

// IsOpen reports whether the breaker is open and still cooling down.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && time.Now().Before(b.openUntil)
}

// Close releases the probe cache's background resources.
func (b *Breaker) Close() {
	b.probes.Close()
}
