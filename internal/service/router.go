package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/router")

// RouterConfig holds the orchestrator's routing knobs.
type RouterConfig struct {
	UseGenerativeSQL bool
	AdaptiveRouting  bool
	HasCredentials   bool
	GenerateTimeout  time.Duration
	MinConfidence    float64
}

// Router orchestrates the routing layer: it classifies queries, consults
// the breaker-backed health probe, delegates to the adaptive engine once
// enough history exists, dispatches to the chosen strategy and converts
// every strategy failure into a fallback response.
type Router struct {
	cfg       RouterConfig
	generator port.SQLGenerator
	rules     port.RuleProcessor
	runner    port.SQLRunner // optional; nil disables row fetching

	breaker  *Breaker
	adaptive *AdaptiveEngine
	outcomes *OutcomeAggregator
	fallback *FallbackGenerator

	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRouter wires the orchestrator. runner may be nil.
func NewRouter(
	cfg RouterConfig,
	generator port.SQLGenerator,
	rules port.RuleProcessor,
	runner port.SQLRunner,
	breaker *Breaker,
	adaptive *AdaptiveEngine,
	outcomes *OutcomeAggregator,
	fallback *FallbackGenerator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Router {
	breaker.SetFallbackRatioFunc(outcomes.RecentFallbackRatio)
	return &Router{
		cfg:       cfg,
		generator: generator,
		rules:     rules,
		runner:    runner,
		breaker:   breaker,
		adaptive:  adaptive,
		outcomes:  outcomes,
		fallback:  fallback,
		metrics:   metrics,
		logger:    logger,
	}
}

// Route picks exactly one strategy for the query and explains why.
func (r *Router) Route(ctx context.Context, query string, qctx *domain.QueryContext) (domain.RouteDecision, string) {
	ctx, span := tracer.Start(ctx, "Router.Route")
	defer span.End()

	r.outcomes.IncrRequest()

	class := Classify(query)
	span.SetAttributes(attribute.String("query.complexity", class.String()))

	available := r.backendAvailable(ctx)

	if r.cfg.AdaptiveRouting && r.adaptive.Ready() {
		perf := 0.5
		if rate, ok := r.outcomes.SuccessRate(domain.DecisionGenerativeSQL); ok {
			perf = rate
		}
		decision, confidence, reason := r.adaptive.Recommend(class, available, perf)
		return decision, fmt.Sprintf("adaptive (confidence %.2f): %s", confidence, reason)
	}

	// Static precedence below the history threshold.
	if !available {
		return domain.DecisionRuleBased, r.unavailableReason()
	}
	if class == domain.ComplexitySimple {
		return domain.DecisionRuleBased, "simple query; rule-based lookup is cheaper and sufficient"
	}
	return domain.DecisionGenerativeSQL, fmt.Sprintf("%s query; generative SQL preferred", class)
}

// backendAvailable combines the feature flag, credential presence and the
// breaker-cached health probe.
func (r *Router) backendAvailable(ctx context.Context) bool {
	if !r.cfg.UseGenerativeSQL || !r.cfg.HasCredentials {
		return false
	}
	return r.breaker.Probe(ctx, false)
}

// unavailableReason enumerates why the generative path is off.
func (r *Router) unavailableReason() string {
	switch {
	case !r.cfg.UseGenerativeSQL:
		return "generative SQL disabled by configuration"
	case !r.cfg.HasCredentials:
		return "generative backend credentials not configured"
	case r.breaker.IsOpen():
		return "circuit breaker open after repeated backend failures"
	default:
		return "recent backend health checks failing"
	}
}

// Ask routes and executes in one call.
func (r *Router) Ask(ctx context.Context, query string, qctx *domain.QueryContext) *domain.ExecutionResult {
	decision, reason := r.Route(ctx, query, qctx)
	return r.Execute(ctx, decision, reason, query)
}

// Execute dispatches the query to the decided strategy. Strategy failures
// never surface as errors: the result always carries a usable payload,
// degrading to a fallback response when the primary path failed.
func (r *Router) Execute(ctx context.Context, decision domain.RouteDecision, reason, query string) *domain.ExecutionResult {
	ctx, span := tracer.Start(ctx, "Router.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("route.decision", decision.String()))

	result := &domain.ExecutionResult{
		QueryID:  uuid.NewString(),
		Decision: decision,
		Reason:   reason,
	}

	switch decision {
	case domain.DecisionGenerativeSQL:
		r.executeGenerative(ctx, query, result)
	case domain.DecisionRuleBased:
		r.executeRuleBased(ctx, query, result)
	default:
		// Nothing upstream produces a Fallback decision, but the enum is
		// closed and this arm keeps the dispatch exhaustive.
		r.answerWithFallback(ctx, query, domain.TriggerUnsupportedQuery, result)
	}
	return result
}

func (r *Router) executeGenerative(ctx context.Context, query string, result *domain.ExecutionResult) {
	start := time.Now()
	genResult, err := r.generator.Generate(ctx, query, r.cfg.GenerateTimeout)
	result.Latency = time.Since(start)

	if errors.Is(ctx.Err(), context.Canceled) {
		// Caller disconnected; the backend was not at fault and the
		// attempt never completed, so record nothing.
		result.Success = false
		return
	}

	if err != nil {
		r.failGenerative(ctx, query, triggerForError(ctx, err), result)
		return
	}
	if !genResult.Success || genResult.SQL == "" {
		r.failGenerative(ctx, query, domain.TriggerEmptyResponse, result)
		return
	}
	if genResult.Confidence < r.cfg.MinConfidence {
		r.failGenerative(ctx, query, domain.TriggerLowConfidence, result)
		return
	}

	result.SQL = genResult.SQL
	result.Confidence = genResult.Confidence

	if r.runner != nil {
		rows, err := r.runner.Run(ctx, genResult.SQL)
		if err != nil {
			r.logger.Warn("generated SQL failed to execute",
				zap.String("query_id", result.QueryID),
				zap.Error(err),
			)
			r.metrics.IncrExternalError("query-api")
			r.failGenerative(ctx, query, domain.TriggerLLMError, result)
			return
		}
		result.Rows = rows
	}

	result.Success = true
	r.breaker.RecordSuccess()
	r.recordOutcome(domain.DecisionGenerativeSQL, true, result.Latency, result.Confidence, nil, query)
}

func (r *Router) executeRuleBased(ctx context.Context, query string, result *domain.ExecutionResult) {
	start := time.Now()
	procResult, err := r.rules.Process(ctx, query)
	result.Latency = time.Since(start)

	if errors.Is(ctx.Err(), context.Canceled) {
		result.Success = false
		return
	}

	if err != nil {
		r.logger.Warn("rule-based processing failed",
			zap.String("query_id", result.QueryID),
			zap.Error(err),
		)
		r.metrics.IncrExternalError("rule-processor")
		// llm_error is historical naming; it just means the primary
		// strategy failed.
		trigger := domain.TriggerLLMError
		var unsupported *domain.ErrUnsupportedQuery
		if errors.As(err, &unsupported) {
			trigger = domain.TriggerUnsupportedQuery
		}
		r.recordOutcome(domain.DecisionRuleBased, false, result.Latency, 0, &trigger, query)
		r.answerWithFallback(ctx, query, trigger, result)
		return
	}

	result.SQL = procResult.SQL
	result.Confidence = procResult.Confidence

	if r.runner != nil && procResult.SQL != "" {
		rows, err := r.runner.Run(ctx, procResult.SQL)
		if err != nil {
			r.metrics.IncrExternalError("query-api")
			trigger := domain.TriggerLLMError
			r.recordOutcome(domain.DecisionRuleBased, false, result.Latency, 0, &trigger, query)
			r.answerWithFallback(ctx, query, trigger, result)
			return
		}
		result.Rows = rows
	}

	result.Success = true
	r.recordOutcome(domain.DecisionRuleBased, true, result.Latency, result.Confidence, nil, query)
}

// failGenerative reports the failure to the breaker, records the outcome
// and answers with a fallback.
func (r *Router) failGenerative(ctx context.Context, query string, trigger domain.FallbackTrigger, result *domain.ExecutionResult) {
	r.logger.Warn("generative strategy failed",
		zap.String("query_id", result.QueryID),
		zap.String("trigger", trigger.String()),
	)
	r.metrics.IncrExternalError("sql-generator")
	r.breaker.RecordFailure()
	r.recordOutcome(domain.DecisionGenerativeSQL, false, result.Latency, 0, &trigger, query)
	r.answerWithFallback(ctx, query, trigger, result)
}

func (r *Router) answerWithFallback(ctx context.Context, query string, trigger domain.FallbackTrigger, result *domain.ExecutionResult) {
	fb := r.fallback.Generate(trigger, query, nil)
	result.Success = false
	result.Fallback = &fb
	result.Confidence = fb.Confidence
}

// recordOutcome appends a completed attempt to history and, on success,
// to the adaptive engine's per-class pattern table. The latency recorded
// is the measured backend timing, which is authoritative.
func (r *Router) recordOutcome(decision domain.RouteDecision, succeeded bool, latency time.Duration, confidence float64, trigger *domain.FallbackTrigger, query string) {
	class := Classify(query)
	r.outcomes.Record(domain.QueryOutcome{
		Decision:        decision,
		Succeeded:       succeeded,
		Latency:         latency,
		Confidence:      confidence,
		RecordedAt:      time.Now(),
		Complexity:      class,
		FallbackTrigger: trigger,
	})
	if succeeded {
		r.adaptive.ObserveSuccess(class, decision)
	}
}

// triggerForError maps a generative failure to its fallback trigger.
func triggerForError(ctx context.Context, err error) domain.FallbackTrigger {
	var quota *domain.ErrQuotaExceeded
	var outOfDomain *domain.ErrOutOfDomain
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return domain.TriggerTimeout
	case errors.As(err, &quota):
		return domain.TriggerQuotaExceeded
	case errors.As(err, &outOfDomain):
		return domain.TriggerOutOfDomain
	default:
		return domain.TriggerLLMError
	}
}

// RecordUserFeedback attaches a satisfaction score (1–5) to the most recent
// outcome of the given decision.
func (r *Router) RecordUserFeedback(query string, decision domain.RouteDecision, satisfaction float64, comment string) error {
	if satisfaction < 1 || satisfaction > 5 {
		return &domain.ErrValidation{Field: "satisfaction", Message: "must be between 1 and 5"}
	}
	if err := r.outcomes.AttachSatisfaction(decision, satisfaction); err != nil {
		return &domain.ErrValidation{Field: "decision", Message: err.Error()}
	}
	r.logger.Info("user feedback recorded",
		zap.String("decision", decision.String()),
		zap.Float64("satisfaction", satisfaction),
		zap.String("comment", comment),
	)
	return nil
}

// Metrics returns an immutable snapshot of the routing counters.
func (r *Router) Metrics() *domain.RouteMetrics {
	snapshot := r.outcomes.Snapshot()
	state := r.breaker.Snapshot()
	snapshot.BreakerActivations = state.Activations
	snapshot.BreakerOpen = state.IsOpen && time.Now().Before(state.OpenUntil)
	snapshot.AdaptiveEnabled = r.cfg.AdaptiveRouting
	snapshot.AdaptiveActive = r.cfg.AdaptiveRouting && r.adaptive.Ready()
	return snapshot
}

// Health reports the routing layer's own condition for /healthz.
func (r *Router) Health(ctx context.Context) *domain.HealthReport {
	report := &domain.HealthReport{
		Status:          "healthy",
		Issues:          []string{},
		Recommendations: []string{},
	}

	breakerOpen := r.breaker.IsOpen()
	fallbackRatio := r.outcomes.RecentFallbackRatio()

	if !r.cfg.UseGenerativeSQL {
		report.Issues = append(report.Issues, "generative SQL disabled by configuration")
	} else if !r.cfg.HasCredentials {
		report.Issues = append(report.Issues, "generative backend credentials not configured")
		report.Recommendations = append(report.Recommendations, "set SQL_GENERATOR_API_KEY")
	} else if breakerOpen {
		report.Issues = append(report.Issues, "circuit breaker open; generative backend bypassed")
		report.Recommendations = append(report.Recommendations, "check generative backend logs and quota")
	} else if !r.breaker.Probe(ctx, false) {
		report.Issues = append(report.Issues, "generative backend failing health checks")
	}

	if fallbackRatio > 0.3 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%.0f%% of recent queries answered by fallback", fallbackRatio*100))
	}

	switch {
	case breakerOpen && fallbackRatio > 0.5:
		report.Status = "critical"
	case len(report.Issues) > 0:
		report.Status = "degraded"
	}
	return report
}

// Insights exposes the adaptive engine's view of routing quality.
func (r *Router) Insights() *domain.AdaptiveInsights {
	return r.adaptive.Insights()
}

// ResetMetrics clears the aggregator. Administrative action only.
func (r *Router) ResetMetrics() {
	r.logger.Warn("routing metrics reset by administrative action")
	r.outcomes.Reset()
}
