package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"entrypass/internal/submission/failure"
)

const maxErrorBody = 2048

// HTTPPortalClient posts JSON submissions over HTTP.
type HTTPPortalClient struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPPortalClient(timeout time.Duration, logger *slog.Logger) *HTTPPortalClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPPortalClient{client: &http.Client{Timeout: timeout}, logger: logger}
}

func (c *HTTPPortalClient) Submit(ctx context.Context, endpoint string, payload Payload, headers map[string]string) (Confirmation, error) {
	reqID := uuid.NewString()
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return Confirmation{}, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Confirmation{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "portal request failed", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Confirmation{}, err
	}
	defer resp.Body.Close()

	c.logger.InfoContext(ctx, "portal response", "req_id", reqID, "status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Confirmation{}, &failure.PortalError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var conf Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return Confirmation{}, fmt.Errorf("decode portal confirmation: %w", err)
	}
	return conf, nil
}
