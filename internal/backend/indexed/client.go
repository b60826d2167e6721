package indexed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// searchRequest is the index service wire shape.
type searchRequest struct {
	Query    string `json:"q"`
	Limit    int    `json:"limit"`
	Bookmark string `json:"bookmark,omitempty"`
	Sort     string `json:"sort,omitempty"`
	SortDesc bool   `json:"sortDesc,omitempty"`
	SortNum  bool   `json:"sortNum,omitempty"`
	Count    bool   `json:"count,omitempty"`
}

type searchResponse struct {
	Rows      []map[string]any `json:"rows"`
	Bookmark  string           `json:"bookmark,omitempty"`
	TotalRows *int             `json:"totalRows,omitempty"`
}

// Client talks to the index service over its internal HTTP API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates an index client against the service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Search posts a compiled query for one table's index.
func (c *Client) Search(ctx context.Context, tableID string, sreq searchRequest) (*searchResponse, error) {
	body, err := json.Marshal(sreq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode index request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/indexes/%s/search", c.BaseURL, tableID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("index service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode index response: %w", err)
	}
	return &out, nil
}
