package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/template-marketplace/internal/models"
)

// ErrNotFound is wrapped by APIError when the server answers 404
var ErrNotFound = errors.New("not found")

// Client is a Go SDK for the template marketplace API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new marketplace client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error envelope returned by the server
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// ChannelDisplay is the rendering hint attached to every template
type ChannelDisplay struct {
	Label    string `json:"label"`
	TabLabel string `json:"tabLabel"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
}

// Template is a catalog record as served by the API
type Template struct {
	models.Record
	Display     ChannelDisplay `json:"display"`
	SourceLabel string         `json:"sourceLabel"`
}

// ChannelTab is one entry of the channel filter bar
type ChannelTab struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	ChannelDisplay
}

// SourceCount is the number of templates from one source
type SourceCount struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats holds the marketplace header figures
type Stats struct {
	Summary struct {
		TotalTemplates       int     `json:"totalTemplates"`
		CommunityTemplates   int     `json:"communityTemplates"`
		AverageEffectiveness float64 `json:"averageEffectiveness"`
		TotalPopularity      int     `json:"totalPopularity"`
	} `json:"summary"`
	Sources []SourceCount `json:"sources"`
}

// ListOptions contains options for listing templates. Empty fields use server defaults.
type ListOptions struct {
	Category string
	Source   string
	Search   string
	Sort     string
}

func (o ListOptions) encode() string {
	v := url.Values{}
	if o.Category != "" {
		v.Set("category", o.Category)
	}
	if o.Source != "" {
		v.Set("source", o.Source)
	}
	if o.Search != "" {
		v.Set("search", o.Search)
	}
	if o.Sort != "" {
		v.Set("sort", o.Sort)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ListTemplates runs a catalog query
func (c *Client) ListTemplates(ctx context.Context, opts ListOptions) ([]Template, error) {
	var data struct {
		Templates []Template `json:"templates"`
		Total     int        `json:"total"`
	}
	if err := c.get(ctx, "/api/v1/templates"+opts.encode(), &data); err != nil {
		return nil, err
	}
	return data.Templates, nil
}

// GetTemplate retrieves a template by ID
func (c *Client) GetTemplate(ctx context.Context, id int) (*Template, error) {
	var tpl Template
	if err := c.get(ctx, "/api/v1/templates/"+strconv.Itoa(id), &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Stats retrieves the marketplace summary
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/v1/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Channels retrieves the channel tabs with counts
func (c *Client) Channels(ctx context.Context) ([]ChannelTab, error) {
	var data struct {
		Channels []ChannelTab `json:"channels"`
	}
	if err := c.get(ctx, "/api/v1/channels", &data); err != nil {
		return nil, err
	}
	return data.Channels, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// get performs a GET request and decodes the envelope's data into out
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	status, body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		if status >= 400 {
			return &APIError{StatusCode: status, Code: "http_error", Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success || status >= 400 {
		apiErr := &APIError{StatusCode: status, Code: "unknown", Message: "request failed"}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
