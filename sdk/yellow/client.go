// Package yellow is the Go SDK for the yellow agent backend: a sandboxed
// coding agent that streams its progress over SSE, proposes file changes as
// pending diffs, and pauses for human review before applying them.
//
// Example usage:
//
//	client := yellow.NewClient("http://localhost:8000")
//
//	events, errs, err := client.Invoke(ctx, "add a subscription flow")
//	if err != nil {
//		return err
//	}
//	for ev := range events {
//		// handle streaming events
//	}
package yellow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one yellow agent backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client for request/response calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout. Streaming calls ignore it; an
// agent turn may legitimately take a long time between events.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithLogger sets the SDK logger.
func WithLogger(l *Logger) ClientOption {
	return func(client *Client) {
		if l != nil {
			client.logger = l
		}
	}
}

// NewClient creates a new SDK client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: &Logger{level: LevelOff},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs a JSON request/response call.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	rl := c.logger.StartRequest(method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		rl.Error(err)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
		rl.Error(err)
		return err
	}
	rl.Success(resp.StatusCode)

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// doStreamRequest opens an SSE stream and decodes its frames. Each logical
// frame is a "data: <json>" block terminated by a blank line; the reader
// buffers partial lines across chunks and drops only malformed frames,
// continuing with the rest of the stream.
func (c *Client) doStreamRequest(ctx context.Context, method, path string, body any) (<-chan *Event, <-chan error, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	// A fresh client without timeout: the stream stays open for the whole run.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	eventCh := make(chan *Event, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		var dataLines []string

		flush := func() {
			if len(dataLines) == 0 {
				return
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = nil

			ev, err := DecodeEvent([]byte(payload))
			if err != nil {
				// One bad frame never aborts the stream.
				c.logger.Warn("dropping malformed frame", "error", err)
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				flush()
				if err != io.EOF {
					errCh <- err
				}
				return
			}
			line = strings.TrimRight(line, "\r\n")

			switch {
			case line == "":
				flush()
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			case strings.HasPrefix(line, ":"):
				// comment / keep-alive
			default:
				// Field we don't use (event:, id:, retry:); ignore.
			}
		}
	}()

	return eventCh, errCh, nil
}

// Invoke starts an agent run for the given prompt and streams its events.
// Cancel the context to abort client-side consumption.
func (c *Client) Invoke(ctx context.Context, prompt string) (<-chan *Event, <-chan error, error) {
	return c.doStreamRequest(ctx, http.MethodPost, "/api/yellow-agent/stream", PromptRequest{Prompt: prompt})
}

// Resume continues a run paused for review. The response is a continuation
// stream using the same event vocabulary and the same runId.
func (c *Client) Resume(ctx context.Context, runID string, approved bool) (<-chan *Event, <-chan error, error) {
	return c.doStreamRequest(ctx, http.MethodPost, "/api/yellow-agent/resume", ResumeRequest{RunID: runID, Approved: approved})
}

// ResolveAll applies (approved=true) or discards (approved=false) every
// pending diff server-side.
func (c *Client) ResolveAll(ctx context.Context, req ResolveAllRequest) (*ResolveAllResponse, error) {
	var result ResolveAllResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/yellow-agent/apply", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AcknowledgeAll clears the server's pending diff set without letting the
// server write anything. Used after the client has persisted edited content
// itself; the wire verb is the discard form of the bulk endpoint, so callers
// must write files before acknowledging.
func (c *Client) AcknowledgeAll(ctx context.Context, runID string) error {
	_, err := c.ResolveAll(ctx, ResolveAllRequest{RunID: runID, Approved: false})
	return err
}

// ResolveFile applies or rejects the pending diff for one file.
func (c *Client) ResolveFile(ctx context.Context, req ResolveFileRequest) (*ResolveFileResponse, error) {
	var result ResolveFileResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/diff/approve", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FileTree fetches the sandbox file tree.
func (c *Client) FileTree(ctx context.Context) (*FileNode, error) {
	var result TreeResponse
	if err := c.doRequest(ctx, http.MethodGet, "/files/tree", nil, &result); err != nil {
		return nil, err
	}
	return result.Tree, nil
}

// FileContent reads one sandbox file.
func (c *Client) FileContent(ctx context.Context, path string) (*FileContentResponse, error) {
	var result FileContentResponse
	p := "/files/content?path=" + url.QueryEscape(path)
	if err := c.doRequest(ctx, http.MethodGet, p, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WriteFile persists content to a sandbox file.
func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	return c.doRequest(ctx, http.MethodPut, "/files/content", WriteFileRequest{Path: path, Content: content}, nil)
}

// DeleteFile removes a sandbox file.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodDelete, "/files?path="+url.QueryEscape(path), nil, nil)
}

// Upload ingests a GitHub project into the sandbox.
func (c *Client) Upload(ctx context.Context, githubURL string) error {
	return c.doRequest(ctx, http.MethodPost, "/upload", UploadRequest{GitHubURL: githubURL}, nil)
}

// Exec runs a shell command inside the sandbox root.
func (c *Client) Exec(ctx context.Context, command string) (*ExecResponse, error) {
	var result ExecResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/terminal/exec", ExecRequest{Command: command}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Download fetches the sandbox as a zip archive.
func (c *Client) Download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/project/download", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	rl := c.logger.StartRequest(http.MethodGet, "/api/project/download")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		rl.Error(err)
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
		rl.Error(err)
		return nil, err
	}
	rl.Success(resp.StatusCode)
	return io.ReadAll(resp.Body)
}

// Health checks whether the backend is reachable.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var result HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
