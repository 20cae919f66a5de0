// Package remote implements the dashboard store client over the store
// server's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// Config configures the HTTP store client.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// StatusError is a non-2xx answer from the store server.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the dashboard store server. It implements
// dashboard.DashboardStoreClient and dashboard.TemplateStore.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var (
	_ dashboard.DashboardStoreClient = (*Client)(nil)
	_ dashboard.TemplateStore        = (*Client)(nil)
)

// NewClient builds a client for the server at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote: base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  httpClient,
	}, nil
}

func (c *Client) ListDashboards(ctx context.Context) ([]dashboard.DashboardItem, error) {
	var items []dashboard.DashboardItem
	if err := c.do(ctx, http.MethodGet, "/dashboards", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) GetDashboard(ctx context.Context, id string) (dashboard.DashboardItem, error) {
	var item dashboard.DashboardItem
	err := c.do(ctx, http.MethodGet, "/dashboards/"+url.PathEscape(id), nil, &item)
	return item, notFound(err, dashboard.ErrDashboardNotFound)
}

func (c *Client) CreateDashboard(ctx context.Context, item dashboard.DashboardItem) (dashboard.DashboardItem, error) {
	var created dashboard.DashboardItem
	if err := c.do(ctx, http.MethodPost, "/dashboards", item, &created); err != nil {
		return dashboard.DashboardItem{}, err
	}
	return created, nil
}

func (c *Client) UpdateDashboard(ctx context.Context, item dashboard.DashboardItem) (dashboard.DashboardItem, error) {
	var updated dashboard.DashboardItem
	err := c.do(ctx, http.MethodPut, "/dashboards/"+url.PathEscape(item.ID), item, &updated)
	return updated, notFound(err, dashboard.ErrDashboardNotFound)
}

func (c *Client) DeleteDashboard(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/dashboards/"+url.PathEscape(id), nil, nil)
	return notFound(err, dashboard.ErrDashboardNotFound)
}

func (c *Client) CreateTemplate(ctx context.Context, tpl dashboard.Template) (dashboard.Template, error) {
	var created dashboard.Template
	if err := c.do(ctx, http.MethodPost, "/templates", tpl, &created); err != nil {
		return dashboard.Template{}, err
	}
	return created, nil
}

func (c *Client) GetTemplate(ctx context.Context, id string) (dashboard.Template, error) {
	var tpl dashboard.Template
	err := c.do(ctx, http.MethodGet, "/templates/"+url.PathEscape(id), nil, &tpl)
	return tpl, notFound(err, dashboard.ErrTemplateNotFound)
}

func (c *Client) UpdateTemplate(ctx context.Context, tpl dashboard.Template) (dashboard.Template, error) {
	var updated dashboard.Template
	err := c.do(ctx, http.MethodPut, "/templates/"+url.PathEscape(tpl.ID), tpl, &updated)
	return updated, notFound(err, dashboard.ErrTemplateNotFound)
}

func (c *Client) ListTemplates(ctx context.Context) ([]dashboard.Template, error) {
	var templates []dashboard.Template
	if err := c.do(ctx, http.MethodGet, "/templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("remote: encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}
	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

// notFound maps a 404 onto sentinel so callers can use errors.Is.
func notFound(err error, sentinel error) error {
	var status *StatusError
	if errors.As(err, &status) && status.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
