// Package client is the HTTP transport for the file metadata service.
//
// Each lookup resolves exactly once, to metadata or to a failure message.
// There are no retries and no client-side validation of the path.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
)

// Client issues metadata lookups against one service base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	authToken  string
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the service root, e.g. http://localhost:8080/filemetadata.
	BaseURL string
	// Timeout bounds a whole request. Zero means no client timeout.
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	AuthToken  string
	Logger     *zap.Logger
}

// New creates a new client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: hc,
		log:        log,
		authToken:  cfg.AuthToken,
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// applyAuth adds the auth header to a request if a token is set.
func (c *Client) applyAuth(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// Result is the single value delivered by a lookup: Err is nil on success.
type Result struct {
	Data []protocol.FileMetadata
	Err  error
}

// OK reports whether the lookup succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Message returns the failure payload, or "" on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	if re, ok := AsRequestError(r.Err); ok {
		return re.Message
	}
	return r.Err.Error()
}

// RequestError is returned when the service answers with a non-2xx status.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// AsRequestError checks if an error is a RequestError and returns it.
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// FetchFileMetadata looks up a file. The returned channel yields one Result
// and is then closed.
func (c *Client) FetchFileMetadata(ctx context.Context, path string) <-chan Result {
	return c.fetch(ctx, protocol.FilePath, path)
}

// FetchDirectoryMetadata looks up a directory tree. The returned channel
// yields one Result and is then closed.
func (c *Client) FetchDirectoryMetadata(ctx context.Context, path string) <-chan Result {
	return c.fetch(ctx, protocol.DirectoryPath, path)
}

// FileMetadata is the blocking form of FetchFileMetadata.
func (c *Client) FileMetadata(ctx context.Context, path string) ([]protocol.FileMetadata, error) {
	return c.get(ctx, protocol.FilePath, path)
}

// DirectoryMetadata is the blocking form of FetchDirectoryMetadata.
func (c *Client) DirectoryMetadata(ctx context.Context, path string) ([]protocol.FileMetadata, error) {
	return c.get(ctx, protocol.DirectoryPath, path)
}

func (c *Client) fetch(ctx context.Context, endpoint, path string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		data, err := c.get(ctx, endpoint, path)
		out <- Result{Data: data, Err: err}
	}()
	return out
}

// LookupURL builds the request URL for an endpoint and path.
func (c *Client) LookupURL(endpoint, path string) string {
	q := url.Values{}
	q.Set(protocol.PathParam, path)
	return c.baseURL + endpoint + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]protocol.FileMetadata, error) {
	reqURL := c.LookupURL(endpoint, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	c.applyAuth(req)

	c.log.Debug("metadata request", zap.String("url", reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gr.Close()
		reader = gr
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp.StatusCode, body)
		c.log.Debug("metadata request failed",
			zap.String("url", reqURL),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg))
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: msg}
	}

	return decodeResults(body)
}

// decodeResults splits a JSON array body into its elements; any other JSON
// value becomes a one-element list. Element bytes are kept verbatim.
func decodeResults(body []byte) ([]protocol.FileMetadata, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []protocol.FileMetadata{}, nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("response is not valid JSON")
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		results := make([]protocol.FileMetadata, len(items))
		for i, item := range items {
			results[i] = protocol.FileMetadata(item)
		}
		return results, nil
	}
	return []protocol.FileMetadata{protocol.FileMetadata(trimmed)}, nil
}

// errorMessage extracts the human-readable failure payload from an error body.
func errorMessage(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return http.StatusText(status)
	}

	var s string
	if json.Unmarshal(trimmed, &s) == nil {
		return s
	}

	var errResp protocol.ErrorResponse
	if json.Unmarshal(trimmed, &errResp) == nil {
		if errResp.Error != "" {
			return errResp.Error
		}
		if errResp.ErrorDescription != "" {
			return errResp.ErrorDescription
		}
	}
	return string(trimmed)
}

// Ping checks if the service is reachable via its /health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}
