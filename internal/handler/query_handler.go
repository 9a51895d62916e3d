package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"

	"go.uber.org/zap"
)

type queryRequest struct {
	Query   string               `json:"query"`
	Context *domain.QueryContext `json:"context,omitempty"`
}

// queryHandler routes and executes a natural-language query.
// Strategy failures still answer 200 with a fallback payload; the caller
// always gets something usable.
func queryHandler(router port.Router, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
			return
		}
		if req.Query == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "query", Message: "must not be empty"}, logger)
			return
		}

		result := router.Ask(r.Context(), req.Query, req.Context)
		writeJSON(w, http.StatusOK, result)
	}
}

type feedbackRequest struct {
	Query        string               `json:"query"`
	Decision     domain.RouteDecision `json:"decision"`
	Satisfaction float64              `json:"satisfaction"`
	Comment      string               `json:"comment,omitempty"`
}

// feedbackHandler attaches a user satisfaction score to a recent outcome.
func feedbackHandler(router port.Router, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
			return
		}

		if err := router.RecordUserFeedback(req.Query, req.Decision, req.Satisfaction, req.Comment); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

// routingMetricsHandler returns the RouteMetrics snapshot.
func routingMetricsHandler(router port.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, router.Metrics())
	}
}

// insightsHandler returns the adaptive engine's trend and preferences.
func insightsHandler(router port.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, router.Insights())
	}
}

// healthzHandler reports the routing layer's condition.
// degraded still answers 200: the service itself is up and responding.
func healthzHandler(router port.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := router.Health(r.Context())
		status := http.StatusOK
		if report.Status == "critical" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
