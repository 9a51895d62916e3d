// Package client implements HTTP adapters for the external collaborators:
// the generative SQL backend, the rule-based processor and the query API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/resilience"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("infra/client")

// GeneratorClient calls the generative natural-language-to-SQL backend.
type GeneratorClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewGeneratorClient creates a new GeneratorClient.
func NewGeneratorClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *GeneratorClient {
	return &GeneratorClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
	}
}

type generateRequest struct {
	Query string `json:"query"`
}

type generateResponse struct {
	Success    bool    `json:"success"`
	SQL        string  `json:"sql,omitempty"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Generate asks the backend to synthesize SQL for a natural-language query.
// The timeout bounds the whole call including retries.
func (c *GeneratorClient) Generate(ctx context.Context, query string, timeout time.Duration) (*port.GenerateResult, error) {
	ctx, span := tracer.Start(ctx, "GeneratorClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("query.length", len(query)))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var genResp generateResponse

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(generateRequest{Query: query})
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/sql/generate", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
			case http.StatusTooManyRequests:
				return &domain.ErrQuotaExceeded{}
			case http.StatusUnprocessableEntity:
				// The backend refuses questions outside the PROAtivo domain.
				return &domain.ErrOutOfDomain{Query: query}
			default:
				return &domain.ErrBackendError{Detail: fmt.Sprintf("status %d", resp.StatusCode)}
			}

			return json.NewDecoder(resp.Body).Decode(&genResp)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &port.GenerateResult{
			Success:    genResp.Success,
			SQL:        genResp.SQL,
			Confidence: genResp.Confidence,
			Error:      genResp.Error,
		}, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "sql-generator", Err: err}
	}

	return result.(*port.GenerateResult), nil
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthCheck probes the backend. Any non-"healthy" status is an error.
// The transport breaker is deliberately bypassed here: the routing-level
// breaker decides when probing is allowed.
func (c *GeneratorClient) HealthCheck(ctx context.Context, timeout time.Duration) error {
	ctx, span := tracer.Start(ctx, "GeneratorClient.HealthCheck")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sql generator health returned status %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("sql generator reports status %q", health.Status)
	}
	return nil
}
