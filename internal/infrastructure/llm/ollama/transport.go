package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes bounds a generate reply; extracted text of a large scan
// stays well under it.
const maxResponseBytes = 16 << 20

// HTTPStatusError is a non-2xx reply from the model server. Message holds
// Ollama's own {"error": "..."} text when the body has that shape.
type HTTPStatusError struct {
	Operation  string
	Model      string
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	prefix := fmt.Sprintf("ollama %s", e.Operation)
	if e.Model != "" {
		prefix += fmt.Sprintf(" (model %s)", e.Model)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s status: %s", prefix, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", prefix, e.Status, e.Message)
}

// ModelMissing reports a model that was never pulled on the server.
func (e *HTTPStatusError) ModelMissing() bool {
	if e.StatusCode != http.StatusNotFound {
		return false
	}
	return e.Message == "" || strings.Contains(strings.ToLower(e.Message), "model")
}

// DocumentTooLarge reports a prompt the model cannot take, which only a
// shorter document fixes.
func (e *HTTPStatusError) DocumentTooLarge() bool {
	if e.StatusCode == http.StatusRequestEntityTooLarge {
		return true
	}
	msg := strings.ToLower(e.Message)
	return e.StatusCode == http.StatusBadRequest &&
		(strings.Contains(msg, "context length") || strings.Contains(msg, "too long"))
}

func (c *Client) postJSON(ctx context.Context, path, model string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, model, resp)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation, model string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(raw))
	var shaped struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &shaped) == nil && strings.TrimSpace(shaped.Error) != "" {
		msg = strings.TrimSpace(shaped.Error)
	}
	return &HTTPStatusError{
		Operation:  operation,
		Model:      model,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    msg,
	}
}
