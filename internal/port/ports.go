// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the routing layer
// from the concrete generative backend, rule processor and SQL runner.
package port

import (
	"context"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
)

// GenerateResult is the generative backend's answer for one query.
type GenerateResult struct {
	Success    bool
	SQL        string
	Confidence float64 // 0.0–1.0
	Error      string
}

// SQLGenerator invokes the LLM-driven natural-language-to-SQL backend.
type SQLGenerator interface {
	Generate(ctx context.Context, query string, timeout time.Duration) (*GenerateResult, error)
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// ProcessResult is the rule-based processor's answer for one query.
type ProcessResult struct {
	SQL         string
	Confidence  float64
	Entities    []string
	Suggestions []string
}

// RuleProcessor invokes the deterministic rule-based query processor.
type RuleProcessor interface {
	Process(ctx context.Context, query string) (*ProcessResult, error)
}

// SQLRunner executes a validated SQL statement and returns rows.
// Consumed only for post-execution feedback; validation happens upstream.
type SQLRunner interface {
	Run(ctx context.Context, sql string) ([]map[string]any, error)
}

// Router is the routing layer as seen by the HTTP handlers.
type Router interface {
	Route(ctx context.Context, query string, qctx *domain.QueryContext) (domain.RouteDecision, string)
	Execute(ctx context.Context, decision domain.RouteDecision, reason, query string) *domain.ExecutionResult
	Ask(ctx context.Context, query string, qctx *domain.QueryContext) *domain.ExecutionResult
	RecordUserFeedback(query string, decision domain.RouteDecision, satisfaction float64, comment string) error
	Metrics() *domain.RouteMetrics
	Health(ctx context.Context) *domain.HealthReport
	Insights() *domain.AdaptiveInsights
	ResetMetrics()
}
