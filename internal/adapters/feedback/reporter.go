package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// HTTPReporter posts trade outcomes to the signal originator.
type HTTPReporter struct {
	endpoint string
	client   *http.Client
	logger   ports.Logger
}

// NewHTTPReporter creates a reporter that POSTs to {baseURL}/feedback.
func NewHTTPReporter(baseURL string, timeout time.Duration, logger ports.Logger) (*HTTPReporter, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: feedback base URL is required", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPReporter{
		endpoint: baseURL + "/feedback",
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// Report sends one feedback message. Any non-2xx answer is an error.
func (r *HTTPReporter) Report(ctx context.Context, fb domain.Feedback) error {
	op := "Report"
	body, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s failed: %w: feedback endpoint answered %d", op, ports.ErrUnknown, resp.StatusCode)
	}

	r.logger.Debug(ctx, "Feedback delivered", map[string]interface{}{
		"tradeID": fb.TradeID,
		"status":  fb.Status,
	})
	return nil
}

// NopReporter drops feedback. It is used when no feedback URL is configured.
type NopReporter struct{}

func (NopReporter) Report(context.Context, domain.Feedback) error { return nil }
