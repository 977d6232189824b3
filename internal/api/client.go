package api

import (
	"bytes"
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

// Client provides HTTP access to a running daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the daemon API at the given address. The
// address may be a bare host:port or a full http URL.
func NewClient(address string) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(address), "/")
	if trimmed != "" && !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	return &Client{
		baseURL: trimmed,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var out DaemonStatus
	if err := c.get(ctx, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions returns sessions, optionally filtered by status.
func (c *Client) ListSessions(ctx context.Context, statuses ...string) ([]Session, error) {
	query := url.Values{}
	for _, status := range statuses {
		query.Add("status", status)
	}
	var out SessionListResponse
	if err := c.get(ctx, "/api/sessions", query, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// GetSession fetches one session by numeric id or UUID.
func (c *Client) GetSession(ctx context.Context, ref string) (*Session, error) {
	var out SessionResponse
	if err := c.get(ctx, "/api/sessions/"+url.PathEscape(ref), nil, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// Submit queues a new mix session.
func (c *Client) Submit(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	var out SessionResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// Cancel requests cancellation of a session.
func (c *Client) Cancel(ctx context.Context, ref string) (*CancelResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/sessions/"+url.PathEscape(ref)+"/cancel", nil)
	if err != nil {
		return nil, err
	}
	var out CancelResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events fetches progress events after the given cursor. When wait is set
// the daemon holds the request until new events arrive.
func (c *Client) Events(ctx context.Context, ref string, since uint64, wait bool) (*EventListResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	if wait {
		query.Set("wait", "1")
	}
	var out EventListResponse
	if err := c.get(ctx, "/api/sessions/"+url.PathEscape(ref)+"/events", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Artifact streams the rendered mix to the given writer and returns the
// number of bytes written.
func (c *Client) Artifact(ctx context.Context, ref string, dest io.Writer) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/sessions/"+url.PathEscape(ref)+"/artifact", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	return io.Copy(dest, resp.Body)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
