package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/your-org/facecommand/internal/command"
)

// WebhookHandler posts the triggering status as JSON to a URL.
type WebhookHandler struct {
	client *http.Client
}

func NewWebhookHandler(timeout time.Duration) *WebhookHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookHandler{client: &http.Client{Timeout: timeout}}
}

type webhookData struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

func (h *WebhookHandler) Run(ctx context.Context, opts command.Options) (any, error) {
	var d webhookData
	if err := decodeData(opts.Data, &d); err != nil {
		return nil, err
	}
	if d.URL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	if d.Method == "" {
		d.Method = http.MethodPost
	}

	body, err := json.Marshal(newPayload(opts))
	if err != nil {
		return nil, fmt.Errorf("webhook: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook: %s returned %d", d.URL, resp.StatusCode)
	}
	return resp.StatusCode, nil
}
