package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/terra-clan/template-marketplace/internal/api"
	"github.com/terra-clan/template-marketplace/internal/config"
	"github.com/terra-clan/template-marketplace/internal/templates"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	loader := templates.NewLoader()
	if _, err := loader.LoadFromDir("../../templates"); err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	cfg := &config.Config{Server: config.ServerConfig{Port: 8080}}
	ts := httptest.NewServer(api.NewServer(cfg, loader, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestListTemplates(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL+"/", WithTimeout(5*time.Second))

	got, err := c.ListTemplates(context.Background(), ListOptions{Category: "sms", Sort: "rating"})
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}

	var ids []int
	for _, tpl := range got {
		ids = append(ids, tpl.ID)
		if tpl.Display.Label != "SMS" {
			t.Errorf("template %d display label = %q", tpl.ID, tpl.Display.Label)
		}
	}
	if diff := cmp.Diff([]int{5, 11}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestListTemplatesInvalidSort(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL)

	_, err := c.ListTemplates(context.Background(), ListOptions{Sort: "price"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Code != "validation_error" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestGetTemplate(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL)

	tpl, err := c.GetTemplate(context.Background(), 13)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if tpl.Name != "Vendor Invoice Multi-Channel" || tpl.SourceLabel != "Community" {
		t.Errorf("template = %q / %q", tpl.Name, tpl.SourceLabel)
	}

	if _, err := c.GetTemplate(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestStatsAndChannels(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL)
	ctx := context.Background()

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Summary.TotalTemplates != 14 || stats.Summary.CommunityTemplates != 8 {
		t.Errorf("summary = %+v", stats.Summary)
	}

	tabs, err := c.Channels(ctx)
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(tabs) != 7 || tabs[0].Key != "all" || tabs[0].Count != 14 {
		t.Errorf("tabs = %+v", tabs)
	}

	if err := c.Health(ctx); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestListOptionsEncode(t *testing.T) {
	tests := []struct {
		opts ListOptions
		want string
	}{
		{ListOptions{}, ""},
		{ListOptions{Sort: "newest"}, "?sort=newest"},
		{ListOptions{Category: "qr-code", Search: "wifi trap"}, "?category=qr-code&search=wifi+trap"},
	}
	for _, tt := range tests {
		if got := tt.opts.encode(); got != tt.want {
			t.Errorf("encode(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}
