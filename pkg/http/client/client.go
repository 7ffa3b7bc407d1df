package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Interface interface {
	Post(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error)
}

// Client issues single-shot POST requests. It never retries: callers decide
// what a failed exchange means.
type Client struct {
	httpClient *http.Client
	userAgent  string
	PostFunc   func(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	Transport http.RoundTripper
}

var _ Interface = (*Client)(nil)

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent: opts.UserAgent,
	}
}

func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	if c.PostFunc != nil {
		return c.PostFunc(ctx, url, body, headers)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			return
		}
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}
