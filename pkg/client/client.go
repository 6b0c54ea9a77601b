package client

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
)

// maxResponseBytes bounds a response body. A read may return several packets
// of up to five full transaction messages each.
const maxResponseBytes = 1 << 20

var (
	// ErrPacketTooLarge is returned by Publish when the node cannot fit the
	// message into the fragment limit.
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrPublishDisabled is returned by Publish when the node has no stream key.
	ErrPublishDisabled = errors.New("publishing is disabled on this node")
)

// Packet is a validated packet as returned by the node. Message holds the
// exact JSON object the publisher signed.
type Packet struct {
	Signature string          `json:"signature"`
	Message   json.RawMessage `json:"message"`
}

// ReadResult is the response of Read.
type ReadResult struct {
	Index     string   `json:"index"`
	Statement string   `json:"statement,omitempty"` // set for statement streams
	Epoch     uint64   `json:"epoch,omitempty"`
	Address   string   `json:"address"`
	Packets   []Packet `json:"packets"`
}

// PublishResult is the response of Publish.
type PublishResult struct {
	Address   string `json:"address"`
	Root      string `json:"root"`
	Fragments int    `json:"fragments"`
}

// APIError is an error response from the node.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Client talks to one iamd node.
type Client struct {
	base       string
	httpClient *http.Client
	userAgent  string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// New creates a Client for the node at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		base:       strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "iam-go-client",
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Read returns every valid packet at namespace/position.
func (c *Client) Read(ctx context.Context, namespace string, position uint64) (*ReadResult, error) {
	var out ReadResult
	if err := c.call(ctx, http.MethodGet, streamPath("streams", namespace, position), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Publish signs and attaches message at namespace/position on the node.
// message must encode to a JSON object.
func (c *Client) Publish(ctx context.Context, namespace string, position uint64, message any) (*PublishResult, error) {
	body := struct {
		Message any `json:"message"`
	}{Message: message}

	var out PublishResult
	err := c.call(ctx, http.MethodPost, streamPath("streams", namespace, position), body, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusRequestEntityTooLarge:
			return nil, fmt.Errorf("%w: %s", ErrPacketTooLarge, apiErr.Message)
		case http.StatusServiceUnavailable:
			return nil, ErrPublishDisabled
		}
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Address returns the tangle address of namespace/position.
func (c *Client) Address(ctx context.Context, namespace string, position uint64) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := c.call(ctx, http.MethodGet, streamPath("address", namespace, position), nil, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

func streamPath(resource, namespace string, position uint64) string {
	return "/api/v1/" + resource + "/" + url.PathEscape(namespace) + "/" + strconv.FormatUint(position, 10)
}

// call sends reqBody as JSON (when non-nil) and decodes the response into respBody.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to the raw text.
func errorMessage(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
