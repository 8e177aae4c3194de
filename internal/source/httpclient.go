package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// HTTPClient is the QueryClient implementation for a continuation-token
// HTTP query endpoint. One instance serves one source.
type HTTPClient struct {
	baseURL string
	token   string // bearer credential resolved before the run
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates an HTTPClient for the given endpoint.
// bearerToken is the credential resolved by the orchestrator.
func NewHTTPClient(baseURL, bearerToken string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   bearerToken,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// pageResponse is the wire shape shared by the source query endpoints.
type pageResponse struct {
	Records           []json.RawMessage `json:"records"`
	ContinuationToken string            `json:"continuationToken"`
}

// QueryPage issues one page call. A non-2xx status or a decode failure is
// a retrieval failure for the whole source; the caller does not retry.
func (c *HTTPClient) QueryPage(ctx context.Context, q PageQuery) (*Page, error) {
	params := url.Values{}
	params.Set("recordType", q.Kind.String())
	params.Set("startTime", q.Start.UTC().Format(time.RFC3339))
	params.Set("endTime", q.End.UTC().Format(time.RFC3339))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.Token != "" {
		params.Set("continuationToken", q.Token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("QueryPage: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("QueryPage: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("query endpoint returned error status",
			zap.String("source", q.Kind.String()),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("QueryPage: %s returned %d: %s", q.Kind, resp.StatusCode, string(body))
	}

	var pr pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("QueryPage: decode %s response: %w", q.Kind, err)
	}

	return &Page{Records: pr.Records, NextToken: pr.ContinuationToken}, nil
}
