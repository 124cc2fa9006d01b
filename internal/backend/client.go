// Package backend is the HTTP client for the remote shop backend. All order,
// voucher, and customer state of record lives there; the terminal only
// drives it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vietshop/posterm/internal/session"
)

// Config holds backend connection settings.
type Config struct {
	BaseURL string        `usage:"Shop backend base URL"`
	Timeout time.Duration `default:"10s" usage:"Per-request timeout"`
}

// Client talks JSON over HTTPS to the shop backend, authenticating with the
// bearer token from the session.
type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.Session
}

// New creates a Client. Requests are instrumented with otelhttp.
func New(cfg Config, sess *session.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		sess: sess,
	}
}

// do issues a request and returns the raw response body. Non-2xx responses
// become a *StatusError with the best-effort parsed backend message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.sess.AccessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request "+path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Code:    resp.StatusCode,
			Message: messageFromBody(raw),
		}
	}
	return raw, nil
}

// decodeItems unmarshals a list response that arrives either as a bare JSON
// array or wrapped in an {"items": [...]} / {"data": [...]} envelope.
func decodeItems(raw []byte, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, dst)
	}

	var envelope struct {
		Items json.RawMessage `json:"items"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	if envelope.Items != nil {
		return json.Unmarshal(envelope.Items, dst)
	}
	if envelope.Data != nil {
		return json.Unmarshal(envelope.Data, dst)
	}
	return errors.New("response has no items")
}
