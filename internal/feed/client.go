// Package feed fetches the static JSON documents (calendar, mess menu, club
// directory) published next to the app.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client reads JSON files from a static host.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	now     func() time.Time
}

// New creates a client with a short timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// GetJSON downloads name and decodes it into v. A ?v=<unix millis> query
// defeats intermediate caches so edits to the files show up immediately.
func (c *Client) GetJSON(ctx context.Context, name string, v any) error {
	u := c.BaseURL + "/" + strings.TrimLeft(name, "/") + "?v=" + url.QueryEscape(strconv.FormatInt(c.now().UnixMilli(), 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("feed %s request failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feed %s error %s: %s", name, resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("feed %s: failed to decode response: %w", name, err)
	}
	return nil
}
