// Package httpstore implements remote.Store against the REST record service.
package httpstore

import (
	"bytes"
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

	"spesesync/internal/core"
	"spesesync/internal/remote"
)

const (
	collectionPath = "/expenses"
	maxErrorBody   = 4 << 10
)

// Client talks to the record service over HTTP. Every call is bounded by the
// client timeout, so a hung request surfaces as an error instead of stalling
// the caller.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ remote.Store = (*Client)(nil)

// New returns a Client for baseURL. A zero timeout defaults to 10s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient lets callers supply their own transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Create posts r. The server treats a repeated id as a replace.
func (c *Client) Create(ctx context.Context, r core.Record) (core.Record, error) {
	var out core.Record
	if err := c.do(ctx, http.MethodPost, collectionPath, r, &out); err != nil {
		return core.Record{}, fmt.Errorf("create %s: %w", r.ID, err)
	}
	return out, nil
}

func (c *Client) Replace(ctx context.Context, id string, r core.Record) (core.Record, error) {
	var out core.Record
	if err := c.do(ctx, http.MethodPut, recordPath(id), r, &out); err != nil {
		return core.Record{}, fmt.Errorf("replace %s: %w", id, err)
	}
	return out, nil
}

// Remove deletes id. A record that is already gone counts as removed.
func (c *Client) Remove(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, recordPath(id), nil, nil)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

func (c *Client) List(ctx context.Context, q remote.ListQuery) (remote.ListResult, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("limit", strconv.Itoa(q.PageSize))
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	path := collectionPath
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out remote.ListResult
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return remote.ListResult{}, fmt.Errorf("list: %w", err)
	}
	if out.Items == nil {
		out.Items = []core.Record{}
	}
	return out, nil
}

func recordPath(id string) string {
	return collectionPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return remote.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &remote.StatusError{Code: resp.StatusCode, Body: string(msg)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
