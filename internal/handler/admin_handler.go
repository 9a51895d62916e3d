package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/service"

	"go.uber.org/zap"
)

type adminLoginRequest struct {
	APIKey string `json:"api_key"`
}

type adminLoginResponse struct {
	AccessToken string `json:"access_token"`
}

// adminLoginHandler exchanges the admin API key for a short-lived token.
func adminLoginHandler(auth *service.AdminAuth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
			return
		}

		token, err := auth.Login(req.APIKey)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, adminLoginResponse{AccessToken: token})
	}
}

// metricsResetHandler clears all routing counters and history.
func metricsResetHandler(router port.Router, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info("metrics reset requested",
			zap.String("subject", AdminSubjectFromContext(r.Context())),
		)
		router.ResetMetrics()
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}
