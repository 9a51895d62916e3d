package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/resilience"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"

	"github.com/sony/gobreaker"
)

// RulesClient calls the deterministic rule-based query processor.
type RulesClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewRulesClient creates a new RulesClient.
func NewRulesClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *RulesClient {
	return &RulesClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

type processRequest struct {
	Query string `json:"query"`
}

type processResponse struct {
	SQL         string   `json:"sql,omitempty"`
	Confidence  float64  `json:"confidence"`
	Entities    []string `json:"entities,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Process runs the rule-based pipeline for a query.
func (c *RulesClient) Process(ctx context.Context, query string) (*port.ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "RulesClient.Process")
	defer span.End()

	var procResp processResponse

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(processRequest{Query: query})
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/process", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
			case http.StatusUnprocessableEntity:
				// No rule matches this query shape.
				return &domain.ErrUnsupportedQuery{Query: query}
			default:
				return fmt.Errorf("rule processor returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&procResp)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &port.ProcessResult{
			SQL:         procResp.SQL,
			Confidence:  procResp.Confidence,
			Entities:    procResp.Entities,
			Suggestions: procResp.Suggestions,
		}, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "rule-processor", Err: err}
	}

	return result.(*port.ProcessResult), nil
}
