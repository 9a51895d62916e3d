package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockGenerator struct {
	result    *port.GenerateResult
	err       error
	healthErr error
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ time.Duration) (*port.GenerateResult, error) {
	return m.result, m.err
}

func (m *mockGenerator) HealthCheck(_ context.Context, _ time.Duration) error {
	return m.healthErr
}

type mockRules struct {
	result *port.ProcessResult
	err    error
}

func (m *mockRules) Process(_ context.Context, _ string) (*port.ProcessResult, error) {
	return m.result, m.err
}

type mockRunner struct {
	rows []map[string]any
	err  error
}

func (m *mockRunner) Run(_ context.Context, _ string) ([]map[string]any, error) {
	return m.rows, m.err
}

// --- Helpers ---

func defaultRouterConfig() service.RouterConfig {
	return service.RouterConfig{
		UseGenerativeSQL: true,
		AdaptiveRouting:  true,
		HasCredentials:   true,
		GenerateTimeout:  time.Second,
		MinConfidence:    0.3,
	}
}

func newTestRouter(t *testing.T, cfg service.RouterConfig, gen port.SQLGenerator, rules port.RuleProcessor, runner port.SQLRunner) *service.Router {
	t.Helper()

	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	breaker := service.NewBreaker(service.BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         time.Hour,
		CheckInterval:    time.Minute,
	}, gen, metrics, logger)
	t.Cleanup(breaker.Close)

	outcomes := service.NewOutcomeAggregator(metrics)
	adaptive := service.NewAdaptiveEngine(outcomes, service.DefaultScoreWeights(), logger)
	fallback := service.NewFallbackGenerator(metrics, logger)

	return service.NewRouter(cfg, gen, rules, runner, breaker, adaptive, outcomes, fallback, metrics, logger)
}

func healthyGenerator() *mockGenerator {
	return &mockGenerator{
		result: &port.GenerateResult{Success: true, SQL: "SELECT count(*) FROM equipamentos", Confidence: 0.9},
	}
}

func workingRules() *mockRules {
	return &mockRules{
		result: &port.ProcessResult{SQL: "SELECT 1", Confidence: 0.95},
	}
}

// --- Route ---

func TestRoute_SimpleQueryGoesRuleBased(t *testing.T) {
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), nil)

	decision, reason := r.Route(context.Background(), "Quantos equipamentos ativos?", nil)

	if decision != domain.DecisionRuleBased {
		t.Errorf("expected rule_based, got %s", decision)
	}
	if !strings.Contains(reason, "simple") {
		t.Errorf("expected reason to mention simplicity, got %q", reason)
	}
}

func TestRoute_ComplexQueryGoesGenerative(t *testing.T) {
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), nil)

	decision, _ := r.Route(context.Background(), "média de custo agrupado por projeto", nil)

	if decision != domain.DecisionGenerativeSQL {
		t.Errorf("expected generative_sql, got %s", decision)
	}
}

func TestRoute_MissingCredentialsForcesRuleBased(t *testing.T) {
	cfg := defaultRouterConfig()
	cfg.HasCredentials = false
	r := newTestRouter(t, cfg, healthyGenerator(), workingRules(), nil)

	decision, reason := r.Route(context.Background(), "média de custo agrupado por projeto", nil)

	if decision != domain.DecisionRuleBased {
		t.Errorf("expected rule_based, got %s", decision)
	}
	if !strings.Contains(reason, "credentials") {
		t.Errorf("expected reason to mention credentials, got %q", reason)
	}
}

func TestRoute_DisabledFlagForcesRuleBased(t *testing.T) {
	cfg := defaultRouterConfig()
	cfg.UseGenerativeSQL = false
	r := newTestRouter(t, cfg, healthyGenerator(), workingRules(), nil)

	decision, reason := r.Route(context.Background(), "comparar a tendência de falhas", nil)

	if decision != domain.DecisionRuleBased {
		t.Errorf("expected rule_based, got %s", decision)
	}
	if !strings.Contains(reason, "disabled") {
		t.Errorf("expected reason to mention the flag, got %q", reason)
	}
}

func TestRoute_AdaptiveTakesOverWithHistory(t *testing.T) {
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), nil)

	for i := 0; i < 10; i++ {
		r.Ask(context.Background(), "Quantos equipamentos ativos?", nil)
	}

	_, reason := r.Route(context.Background(), "Quantos equipamentos ativos?", nil)
	if !strings.Contains(reason, "adaptive") {
		t.Errorf("expected adaptive reason after 10 outcomes, got %q", reason)
	}
}

// --- Execute ---

func TestAsk_GenerativeSuccess(t *testing.T) {
	runner := &mockRunner{rows: []map[string]any{{"count": 42}}}
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), runner)

	result := r.Ask(context.Background(), "média de custo agrupado por projeto", nil)

	if !result.Success {
		t.Fatalf("expected success, got fallback: %+v", result.Fallback)
	}
	if result.Decision != domain.DecisionGenerativeSQL {
		t.Errorf("expected generative decision, got %s", result.Decision)
	}
	if result.SQL == "" {
		t.Error("expected generated SQL")
	}
	if len(result.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(result.Rows))
	}
	if result.QueryID == "" {
		t.Error("expected a query ID")
	}
}

func TestAsk_LowConfidenceFallsBack(t *testing.T) {
	gen := &mockGenerator{
		result: &port.GenerateResult{Success: true, SQL: "SELECT 1", Confidence: 0.1},
	}
	r := newTestRouter(t, defaultRouterConfig(), gen, workingRules(), nil)

	result := r.Ask(context.Background(), "média de custo agrupado por projeto", nil)

	if result.Success {
		t.Fatal("expected failure below the confidence threshold")
	}
	if result.Fallback == nil {
		t.Fatal("expected a fallback response")
	}
	if result.Fallback.Trigger != domain.TriggerLowConfidence {
		t.Errorf("expected low_confidence trigger, got %s", result.Fallback.Trigger)
	}
	if result.Fallback.Message == "" {
		t.Error("fallback must carry a message")
	}
}

func TestAsk_EmptyResponseFallsBack(t *testing.T) {
	gen := &mockGenerator{
		result: &port.GenerateResult{Success: true, SQL: "", Confidence: 0.9},
	}
	r := newTestRouter(t, defaultRouterConfig(), gen, workingRules(), nil)

	result := r.Ask(context.Background(), "média de custo agrupado por projeto", nil)

	if result.Fallback == nil {
		t.Fatal("expected a fallback response")
	}
	if result.Fallback.Trigger != domain.TriggerEmptyResponse {
		t.Errorf("expected empty_response trigger, got %s", result.Fallback.Trigger)
	}
}

func TestExecute_RepeatedGenerativeFailuresOpenBreaker(t *testing.T) {
	gen := &mockGenerator{err: errors.New("backend exploded"), healthErr: errors.New("down")}
	r := newTestRouter(t, defaultRouterConfig(), gen, workingRules(), nil)

	for i := 0; i < 3; i++ {
		result := r.Execute(context.Background(), domain.DecisionGenerativeSQL, "test", "média por projeto")
		if result.Success {
			t.Fatal("expected failure")
		}
		if result.Fallback == nil {
			t.Fatal("expected fallback on every failure")
		}
	}

	decision, reason := r.Route(context.Background(), "média de custo agrupado por projeto", nil)
	if decision != domain.DecisionRuleBased {
		t.Errorf("expected rule_based after breaker opened, got %s", decision)
	}
	if !strings.Contains(reason, "circuit") {
		t.Errorf("expected reason to mention the circuit breaker, got %q", reason)
	}

	m := r.Metrics()
	if !m.BreakerOpen {
		t.Error("expected breaker reported open in metrics")
	}
	if m.BreakerActivations != 1 {
		t.Errorf("expected 1 activation, got %d", m.BreakerActivations)
	}
}

func TestExecute_RuleFailureFallsBackWithoutBreaker(t *testing.T) {
	rules := &mockRules{err: errors.New("processor down")}
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), rules, nil)

	for i := 0; i < 5; i++ {
		result := r.Execute(context.Background(), domain.DecisionRuleBased, "test", "Quantos equipamentos ativos?")
		if result.Success {
			t.Fatal("expected failure")
		}
		if result.Fallback == nil {
			t.Fatal("expected fallback response")
		}
	}

	// Rule failures must not poison the generative breaker.
	if r.Metrics().BreakerOpen {
		t.Error("rule-based failures must not open the generative breaker")
	}
}

func TestExecute_TimeoutTrigger(t *testing.T) {
	gen := &mockGenerator{err: context.DeadlineExceeded}
	r := newTestRouter(t, defaultRouterConfig(), gen, workingRules(), nil)

	result := r.Execute(context.Background(), domain.DecisionGenerativeSQL, "test", "média por projeto")

	if result.Fallback == nil {
		t.Fatal("expected fallback")
	}
	if result.Fallback.Trigger != domain.TriggerTimeout {
		t.Errorf("expected timeout trigger, got %s", result.Fallback.Trigger)
	}
}

func TestExecute_RunnerFailureFallsBack(t *testing.T) {
	runner := &mockRunner{err: errors.New("sql rejected")}
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), runner)

	result := r.Execute(context.Background(), domain.DecisionGenerativeSQL, "test", "média por projeto")

	if result.Success {
		t.Fatal("expected failure when execution rejects the SQL")
	}
	if result.Fallback == nil {
		t.Fatal("expected fallback response")
	}
}

// --- Feedback, metrics, health ---

func TestRecordUserFeedback(t *testing.T) {
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), nil)

	if err := r.RecordUserFeedback("q", domain.DecisionRuleBased, 0.5, ""); err == nil {
		t.Fatal("expected validation error for score below 1")
	}
	if err := r.RecordUserFeedback("q", domain.DecisionRuleBased, 6, ""); err == nil {
		t.Fatal("expected validation error for score above 5")
	}

	r.Ask(context.Background(), "Quantos equipamentos ativos?", nil)
	if err := r.RecordUserFeedback("Quantos equipamentos ativos?", domain.DecisionRuleBased, 4.0, "ótimo"); err != nil {
		t.Fatalf("expected feedback to attach, got %v", err)
	}
}

func TestMetrics_CountsRequests(t *testing.T) {
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), nil)

	r.Ask(context.Background(), "Quantos equipamentos ativos?", nil)
	r.Ask(context.Background(), "Listar todos os projetos", nil)

	m := r.Metrics()
	if m.TotalRequests != 2 {
		t.Errorf("expected 2 requests, got %d", m.TotalRequests)
	}
	if m.Decisions["rule_based"].Requests != 2 {
		t.Errorf("expected 2 rule_based outcomes, got %d", m.Decisions["rule_based"].Requests)
	}
	if !m.AdaptiveEnabled {
		t.Error("expected adaptive routing flagged enabled")
	}
	if m.AdaptiveActive {
		t.Error("adaptive must not be active below the history threshold")
	}
}

func TestHealth_Healthy(t *testing.T) {
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), nil)

	report := r.Health(context.Background())
	if report.Status != "healthy" {
		t.Errorf("expected healthy, got %s (issues: %v)", report.Status, report.Issues)
	}
}

func TestHealth_DegradedWithoutCredentials(t *testing.T) {
	cfg := defaultRouterConfig()
	cfg.HasCredentials = false
	r := newTestRouter(t, cfg, healthyGenerator(), workingRules(), nil)

	report := r.Health(context.Background())
	if report.Status != "degraded" {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if len(report.Recommendations) == 0 {
		t.Error("expected a recommendation about credentials")
	}
}

func TestResetMetrics(t *testing.T) {
	r := newTestRouter(t, defaultRouterConfig(), healthyGenerator(), workingRules(), nil)

	r.Ask(context.Background(), "Quantos equipamentos ativos?", nil)
	r.ResetMetrics()

	m := r.Metrics()
	if m.TotalRequests != 0 || m.HistorySize != 0 {
		t.Errorf("expected cleared metrics, got %+v", m)
	}
}
