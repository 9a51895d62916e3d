package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
)

// QueryAPIClient executes validated SQL against the query API.
// Results are consumed only as post-execution feedback for the router;
// SQL validation happens before a statement ever reaches this client.
type QueryAPIClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewQueryAPIClient creates a new QueryAPIClient.
func NewQueryAPIClient(httpClient *http.Client, baseURL string) *QueryAPIClient {
	return &QueryAPIClient{httpClient: httpClient, baseURL: baseURL}
}

type runRequest struct {
	SQL string `json:"sql"`
}

type runResponse struct {
	Rows  []map[string]any `json:"rows"`
	Error string           `json:"error,omitempty"`
}

// Run executes sql and returns the result rows.
func (c *QueryAPIClient) Run(ctx context.Context, sql string) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "QueryAPIClient.Run")
	defer span.End()

	body, err := json.Marshal(runRequest{SQL: sql})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/query", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "query-api", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ErrExternalService{
			Service: "query-api",
			Err:     fmt.Errorf("query API returned status %d", resp.StatusCode),
		}
	}

	var runResp runResponse
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		return nil, err
	}
	if runResp.Error != "" {
		return nil, &domain.ErrExternalService{
			Service: "query-api",
			Err:     fmt.Errorf("%s", runResp.Error),
		}
	}
	return runResp.Rows, nil
}
