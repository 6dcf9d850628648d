package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Client is a thin HTTP client for the bus service REST API. It handles
// Bearer token authentication, JSON marshaling, envelope unwrapping, and
// error classification. Retry policy is the caller's concern.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu    sync.RWMutex
	token string
}

// envelope is the `{success, data|error}` wrapper some endpoints return.
// Endpoints may also return the resource bare; both shapes are accepted.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("component", "api").Logger(),
	}
}

// SetToken installs the bearer token attached to subsequent requests.
// An empty token means unauthenticated.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently installed bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// get performs an HTTP GET request and decodes the response into result.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// post performs an HTTP POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// patch performs an HTTP PATCH request with a JSON body.
func (c *Client) patch(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// do builds the request, attaches auth, classifies failures, and
// normalizes enveloped and bare responses into result.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &Error{
			Class:   ClassNetwork,
			Message: fmt.Sprintf("reading response from %s %s", method, path),
			Err:     readErr,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(method, path, resp.StatusCode, respBody)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	return c.decode(method, path, respBody, result)
}

// decode unwraps an optional `{success, data}` envelope and unmarshals
// the payload into result. Anything that fits neither shape is a
// malformed-response error carrying a description of the payload layout.
func (c *Client) decode(method, path string, body []byte, result interface{}) error {
	payload := body

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
		if !*env.Success {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			return &Error{Class: ClassOther, Message: msg}
		}
		payload = env.Data
	}

	if err := json.Unmarshal(payload, result); err != nil {
		shape := describeShape(payload)
		c.log.Warn().
			Str("method", method).
			Str("path", path).
			Str("shape", shape).
			Msg("malformed response payload")
		return &Error{
			Class:   ClassMalformed,
			Message: fmt.Sprintf("unexpected payload from %s %s", method, path),
			Shape:   shape,
			Err:     err,
		}
	}

	return nil
}

// statusError turns a non-2xx response into a classified error carrying
// the server-provided message when one is present.
func (c *Client) statusError(method, path string, status int, body []byte) error {
	message := ""
	var env envelope
	if json.Unmarshal(body, &env) == nil {
		if env.Error != "" {
			message = env.Error
		} else if env.Message != "" {
			message = env.Message
		}
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status %d on %s %s", status, method, path)
	}

	class := ClassOther
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		class = ClassAuth
	case status == http.StatusTooManyRequests || status == http.StatusInsufficientStorage:
		class = ClassExhausted
	case status >= 500:
		class = ClassNetwork
	}

	return &Error{Class: class, StatusCode: status, Message: message}
}

// classifyTransport maps transport-level failures onto the error
// taxonomy: refused connections and address failures count as
// exhaustion (terminal), timeouts and resets as transient network
// errors, and a cancelled context passes through unwrapped.
func classifyTransport(method, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	class := ClassNetwork
	if errors.Is(err, syscall.ECONNREFUSED) {
		class = ClassExhausted
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		class = ClassExhausted
	}

	return &Error{
		Class:   class,
		Message: fmt.Sprintf("request %s %s failed", method, path),
		Err:     err,
	}
}

// describeShape summarizes the layout of a JSON payload for diagnostics
// without logging its contents.
func describeShape(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return "empty"
	}
	if string(trimmed) == "null" {
		return "null"
	}

	var asObject map[string]json.RawMessage
	if json.Unmarshal(trimmed, &asObject) == nil {
		keys := make([]string, 0, len(asObject))
		for k := range asObject {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("object{%s}", strings.Join(keys, ","))
	}

	var asArray []json.RawMessage
	if json.Unmarshal(trimmed, &asArray) == nil {
		return fmt.Sprintf("array[%d]", len(asArray))
	}

	switch trimmed[0] {
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	default:
		return "number"
	}
}
