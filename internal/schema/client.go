package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client fetches table schemas from the platform's internal API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a schema client against the platform base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Table implements Provider by calling GET /v1/tables/{id}/schema.
func (c *Client) Table(id string) (*Table, error) {
	url := fmt.Sprintf("%s/v1/tables/%s/schema", c.BaseURL, id)

	resp, err := c.HTTPClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to call platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ErrTableNotFound{ID: id}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("schema lookup for %s: status %d: %s", id, resp.StatusCode, string(body))
	}

	var t Table
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if t.ID == "" {
		t.ID = id
	}
	return &t, nil
}
