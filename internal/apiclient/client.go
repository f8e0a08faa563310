// Package apiclient talks to the greencampus HTTP API. It satisfies both
// dashboard.Remote and inbox.Remote; every failure wraps remote.ErrUnavailable.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/metrics"
	"github.com/sadopc/greencampus/internal/remote"
)

type Client struct {
	base  string
	token string
	h     *http.Client
	log   *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.h = h
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client for the API rooted at baseURL (scheme and host,
// without the /api prefix). token is sent as a bearer token when set.
func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		h:     &http.Client{Timeout: timeout},
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return remote.Wrap(op, err)
		}
		body = bytes.NewReader(b)
	}

	endpoint := c.base + "/api" + path
	c.log.Debug("api request", "method", method, "endpoint", endpoint)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return remote.Wrap(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.h.Do(req)
	if err != nil {
		return remote.Wrap(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ae apiError
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &ae) == nil && ae.Message != "" {
			msg = ae.Message
		}
		return remote.Wrap(op, fmt.Errorf("http %d: %s", resp.StatusCode, msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return remote.Wrap(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, nil)
}

func (c *Client) FetchSnapshot(ctx context.Context) (metrics.Snapshot, bool, error) {
	var resp struct {
		Dashboard *metrics.Snapshot `json:"dashboard"`
	}
	if err := c.do(ctx, "fetch dashboard snapshot", http.MethodGet, "/dashboard", nil, &resp); err != nil {
		return metrics.Snapshot{}, false, err
	}
	if resp.Dashboard == nil {
		return metrics.Snapshot{}, false, nil
	}
	return *resp.Dashboard, true, nil
}

func (c *Client) SaveSnapshot(ctx context.Context, snap metrics.Snapshot) error {
	return c.do(ctx, "save dashboard snapshot", http.MethodPut, "/dashboard", snap, nil)
}

func (c *Client) FetchMessages(ctx context.Context) ([]inbox.Message, error) {
	var resp struct {
		Messages []inbox.Message `json:"messages"`
	}
	if err := c.do(ctx, "fetch messages", http.MethodGet, "/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, msg inbox.NewMessage) (inbox.Message, error) {
	var resp struct {
		MessageID string        `json:"message_id"`
		Data      inbox.Message `json:"data"`
	}
	if err := c.do(ctx, "send message", http.MethodPost, "/messages/send", msg, &resp); err != nil {
		return inbox.Message{}, err
	}
	if resp.Data.ID == "" {
		resp.Data.ID = resp.MessageID
	}
	return resp.Data, nil
}

func (c *Client) ReplyToMessage(ctx context.Context, id, text string) error {
	body := map[string]string{"reply_text": text}
	return c.do(ctx, "reply to message", http.MethodPost, "/messages/"+url.PathEscape(id)+"/reply", body, nil)
}

func (c *Client) MarkMessageRead(ctx context.Context, id string) error {
	return c.do(ctx, "mark message read", http.MethodPut, "/messages/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, "delete message", http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil)
}
