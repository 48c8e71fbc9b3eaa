package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SlackConfig configures the Slack incoming-webhook notifier.
type SlackConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// SlackNotifier delivers run reports to a Slack incoming webhook.
type SlackNotifier struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewSlackNotifier creates a Slack notifier. The rate limiter is pinned
// to 1 req/s, the Slack incoming-webhook limit.
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(1.0, 1),
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

const slackMaxAttempts = 3

// NotifyReport posts the report, retrying transient failures and
// honoring 429 retry-after hints.
func (s *SlackNotifier) NotifyReport(ctx context.Context, report Report) error {
	requestID := uuid.NewString()

	body, err := json.Marshal(slackPayload{Text: formatReport(report)})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= slackMaxAttempts; attempt++ {
		if err := s.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("slack rate limiter: %w", err)
		}

		lastErr = s.post(ctx, body)
		if lastErr == nil {
			slog.Debug("slack report delivered",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt))
			return nil
		}

		if rateErr, ok := is429Error(lastErr); ok {
			slog.Warn("slack rate limited",
				slog.String("request_id", requestID),
				slog.Duration("retry_after", rateErr.RetryAfter))
			select {
			case <-time.After(rateErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("slack notify aborted: %w", ctx.Err())
			}
		}

		if !isRetryableError(lastErr) {
			return fmt.Errorf("slack notify: %w", lastErr)
		}

		slog.Warn("slack notify failed, retrying",
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr))
	}

	return fmt.Errorf("slack notify after %d attempts: %w", slackMaxAttempts, lastErr)
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfterHeader(resp, 2*time.Second)}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Message: responseSnippet(resp)}
	default:
		return &ClientError{StatusCode: resp.StatusCode, Message: responseSnippet(resp)}
	}
}

// retryAfterHeader reads a Retry-After seconds header, falling back when
// absent or malformed.
func retryAfterHeader(resp *http.Response, fallback time.Duration) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

func responseSnippet(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))
}
