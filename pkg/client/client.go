// Package client is a Go client for the framebase HTTP API.
//
// The REST surface is covered by [Client] and the live state channel by
// [StateSession]:
//
//	c := client.NewClient("http://localhost:5151")
//
//	d, err := c.CreateDataset(ctx, "roses", models.MediaTypeImage)
//	if err != nil {
//		return err
//	}
//
//	res, err := c.Migrate(ctx, d.Name, -1)
//
// Request and response bodies are JSON; non-2xx responses come back as
// [*APIError] carrying the status code and the server's error message.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/framebase/framebase/pkg/migrate"
	"github.com/framebase/framebase/pkg/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d %s", e.StatusCode, e.Message)
}

// Client provides typed access to the framebase REST API. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the server at baseURL, which should
// include the protocol and host without a trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into target, turning non-2xx
// statuses into an *APIError.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(resp.Body)
		var msg struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &msg); err == nil && msg.Error != "" {
			apiErr.Message = msg.Error
		} else {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Health checks the health status of the server.
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var result map[string]string
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateDataset creates a dataset at the latest schema version.
func (c *Client) CreateDataset(ctx context.Context, name string, mediaType models.MediaType) (*models.DatasetDescriptor, error) {
	body := map[string]string{"name": name, "media_type": string(mediaType)}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/datasets", body)
	if err != nil {
		return nil, err
	}

	var result models.DatasetDescriptor
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDataset retrieves a dataset by name.
func (c *Client) GetDataset(ctx context.Context, name string) (*models.DatasetDescriptor, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/datasets/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}

	var result models.DatasetDescriptor
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDatasets lists every dataset.
func (c *Client) ListDatasets(ctx context.Context) ([]*models.DatasetDescriptor, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/datasets", nil)
	if err != nil {
		return nil, err
	}

	var result []*models.DatasetDescriptor
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteDataset deletes a dataset and its documents.
func (c *Client) DeleteDataset(ctx context.Context, name string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/api/datasets/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// SamplesPage is one page of a dataset's samples.
type SamplesPage struct {
	Samples []models.Document `json:"samples"`
	Total   int               `json:"total"`
}

// ListSamples retrieves a page of samples. A non-positive limit uses the
// server default.
func (c *Client) ListSamples(ctx context.Context, dataset string, limit, offset int) (*SamplesPage, error) {
	path := fmt.Sprintf("/api/datasets/%s/samples", url.PathEscape(dataset))
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result SamplesPage
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Migrate moves a dataset to the target schema version. A negative
// target means the latest version the server knows.
func (c *Client) Migrate(ctx context.Context, dataset string, target int) (*migrate.Result, error) {
	var body any
	if target >= 0 {
		body = map[string]int{"target_version": target}
	}

	resp, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/datasets/%s/migrate", url.PathEscape(dataset)), body)
	if err != nil {
		return nil, err
	}

	var result migrate.Result
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
