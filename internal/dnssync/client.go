// Package dnssync reconciles a public DNS A record against the provider's
// REST API: look up the zone, look up the record, update it if present,
// create it if absent. Everything is best-effort — DNS is a convenience on
// top of a working mesh node, never a reason to fail the bootstrap.
package dnssync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

const (
	requestTimeout = 15 * time.Second
	// Bounded retry for the read calls only; the mutating calls are not
	// idempotent at the HTTP layer and fire once.
	getRetryInterval = 2 * time.Second
	getRetryAttempts = 2
)

// Client is a minimal DNS provider API client (zone lookup, A-record CRUD).
type Client struct {
	baseURL    string
	httpClient *http.Client
	email      string
	token      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API endpoint. Tests use
// this with httptest.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(email, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		email:   email,
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: requestTimeout}
	}
	return c
}

type apiEnvelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

type apiObject struct {
	ID string `json:"id"`
}

// Record is an A record as the provider reports it.
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// ZoneID resolves the zone identifier for an apex zone name.
func (c *Client) ZoneID(ctx context.Context, zone string) (string, error) {
	var zones []apiObject
	path := "/zones?name=" + url.QueryEscape(zone)
	if err := c.getList(ctx, path, &zones); err != nil {
		return "", fmt.Errorf("look up zone %q: %w", zone, err)
	}
	if len(zones) == 0 {
		return "", fmt.Errorf("zone %q not found", zone)
	}
	return zones[0].ID, nil
}

// FindARecord returns the existing A record for fqdn, if any.
func (c *Client) FindARecord(ctx context.Context, zoneID, fqdn string) (Record, bool, error) {
	var records []Record
	path := fmt.Sprintf("/zones/%s/dns_records?type=A&name=%s", zoneID, url.QueryEscape(fqdn))
	if err := c.getList(ctx, path, &records); err != nil {
		return Record{}, false, fmt.Errorf("look up A record %q: %w", fqdn, err)
	}
	if len(records) == 0 {
		return Record{}, false, nil
	}
	return records[0], true, nil
}

// CreateARecord creates a new A record.
func (c *Client) CreateARecord(ctx context.Context, zoneID, fqdn, content string, ttl int) error {
	path := fmt.Sprintf("/zones/%s/dns_records", zoneID)
	body := map[string]any{"type": "A", "name": fqdn, "content": content, "ttl": ttl}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("create A record %q: %w", fqdn, err)
	}
	return nil
}

// UpdateARecord rewrites an existing A record's content and TTL.
func (c *Client) UpdateARecord(ctx context.Context, zoneID, recordID, fqdn, content string, ttl int) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	body := map[string]any{"type": "A", "name": fqdn, "content": content, "ttl": ttl}
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("update A record %q: %w", fqdn, err)
	}
	return nil
}

// getList performs a GET with bounded retry and decodes the result array.
func (c *Client) getList(ctx context.Context, path string, out any) error {
	op := func() error {
		return c.do(ctx, http.MethodGet, path, nil, out)
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(getRetryInterval), getRetryAttempts),
		ctx,
	)
	return backoff.Retry(op, b)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Auth-Email", c.email)
	req.Header.Set("X-Auth-Key", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if !envelope.Success {
		msg := "unknown provider error"
		if len(envelope.Errors) > 0 {
			msg = envelope.Errors[0].Message
		}
		return fmt.Errorf("provider rejected request (%s): %s", resp.Status, msg)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
