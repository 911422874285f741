package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 60 * time.Second
)

// APIError captures non-200 responses to allow inspection of the status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a remote PDF compression service. The service does all
// the work; the client only submits a file, waits for the task to finish,
// downloads the result, and cleans the task up.
type Client struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
}

// NewClient creates a client for the service at baseURL. apiKey may be
// empty when the service is unauthenticated.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval overrides the status polling interval.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

type taskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Submit uploads a PDF and returns an opaque task handle.
func (c *Client) Submit(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tasks", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	var task taskResponse
	if err := c.doJSON(req, &task); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if task.TaskID == "" {
		return "", fmt.Errorf("submit: service returned no task id")
	}
	return task.TaskID, nil
}

// Wait polls the task until it reports done, or fails. The context bounds
// the total wait.
func (c *Client) Wait(ctx context.Context, taskID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tasks/"+taskID, nil)
		if err != nil {
			return err
		}
		c.setAuth(req)

		var task taskResponse
		if err := c.doJSON(req, &task); err != nil {
			return fmt.Errorf("poll task %s: %w", taskID, err)
		}

		switch task.Status {
		case "done":
			return nil
		case "failed":
			return fmt.Errorf("task %s failed remotely: %s", taskID, task.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download fetches the compressed result bytes for a finished task.
func (c *Client) Download(ctx context.Context, taskID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tasks/"+taskID+"/result", nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(resp.Body)
}

// Cleanup deletes the remote task. Best effort: callers usually defer it
// and ignore the error.
func (c *Client) Cleanup(ctx context.Context, taskID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Compress submits the document, waits for completion, and downloads the
// result. The remote task is cleaned up regardless of outcome.
func (c *Client) Compress(ctx context.Context, name string, data []byte) ([]byte, error) {
	taskID, err := c.Submit(ctx, name, data)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = c.Cleanup(context.WithoutCancel(ctx), taskID)
	}()

	if err := c.Wait(ctx, taskID); err != nil {
		return nil, err
	}
	return c.Download(ctx, taskID)
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) doJSON(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
