package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/pkg/xqdto"
	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) (*xqdto.HealthResponse, error) {
	var out xqdto.HealthResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Start(ctx context.Context, side string, networked bool) (*xqdto.SessionState, error) {
	var out xqdto.StartResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games", xqdto.StartRequest{Side: side, Networked: networked}, &out, false); err != nil {
		return nil, err
	}
	return out.State, nil
}

func (c *Client) State(ctx context.Context, id string) (*xqdto.SessionState, error) {
	var out xqdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/games/"+id, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Select(ctx context.Context, id, square string) (*xqdto.SelectResponse, error) {
	var out xqdto.SelectResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+id+"/select", xqdto.SelectRequest{Square: square}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Move(ctx context.Context, id, move string) (*xqdto.MoveResponse, error) {
	var out xqdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+id+"/move", xqdto.MoveRequest{Move: move}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Resign(ctx context.Context, id string) (*xqdto.SessionState, error) {
	var out xqdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+id+"/resign", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// BoardPNG fetches the rendered board.
func (c *Client) BoardPNG(ctx context.Context, id string) ([]byte, error) {
	var raw []byte
	if err := c.do(ctx, fasthttp.MethodGet, "/api/games/"+id+"/board.png", nil, true, func(body []byte) error {
		raw = append([]byte(nil), body...)
		return nil
	}); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}
	return c.do(ctx, method, path, payload, retry, func(body []byte) error {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, retry bool, onOK func([]byte) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if payload != nil {
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := decodeError(status, resp.Body())
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}
		return onOK(resp.Body())
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

// decodeError returns the server's DomainError when the body carries one.
func decodeError(status int, body []byte) error {
	var er xqdto.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Code != "" {
		return er.Error
	}
	return fmt.Errorf("xiangqi api error: status=%d body=%s", status, truncate(string(body), 512))
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
