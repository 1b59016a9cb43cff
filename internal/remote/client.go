package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperengineering/frontdesk/internal/types"
)

const maxErrorBody = 64 << 10

// Client talks to the remote store's REST interface: a PostgREST-compatible
// subset served by the hub or by a hosted Postgres gateway.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client for baseURL. A zero timeout defaults to 30s.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Upsert(ctx context.Context, coll types.Collection, onConflict []string, rows any) error {
	return c.write(ctx, coll, onConflict, MergeDuplicates, rows)
}

func (c *Client) Insert(ctx context.Context, coll types.Collection, onConflict []string, rows any) error {
	return c.write(ctx, coll, onConflict, IgnoreDuplicates, rows)
}

func (c *Client) write(ctx context.Context, coll types.Collection, onConflict []string, res Resolution, rows any) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", coll, err)
	}

	q := url.Values{}
	if len(onConflict) > 0 {
		q.Set("on_conflict", strings.Join(onConflict, ","))
	}
	resp, err := c.do(ctx, http.MethodPost, c.collectionURL(coll, q), bytes.NewReader(body), func(h http.Header) {
		h.Set("Content-Type", "application/json")
		h.Set("Prefer", "resolution="+string(res)+",return=minimal")
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) SelectAll(ctx context.Context, coll types.Collection, dst any) error {
	q := url.Values{}
	q.Set("select", "*")
	resp, err := c.do(ctx, http.MethodGet, c.collectionURL(coll, q), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", coll, err)
	}
	return nil
}

// Ping checks that the remote store answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/health", nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) collectionURL(coll types.Collection, q url.Values) string {
	u := c.baseURL + "/rest/v1/" + url.PathEscape(string(coll))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do sends an authenticated request. Transport failures wrap
// ErrUnavailable; non-2xx answers become *Error.
func (c *Client) do(ctx context.Context, method, u string, body io.Reader, headers func(http.Header)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if headers != nil {
		headers(req.Header)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp, nil
}

// errorFromResponse decodes a problem document or a PostgREST error body.
func errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Title   string `json:"title"`
	}
	_ = json.Unmarshal(data, &body)

	msg := body.Detail
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = body.Title
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Code: body.Code, Message: msg}
}
