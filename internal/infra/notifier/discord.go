package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DiscordConfig configures the Discord webhook notifier.
type DiscordConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

// DiscordNotifier delivers run reports to a Discord webhook.
type DiscordNotifier struct {
	config      DiscordConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewDiscordNotifier creates a Discord notifier. Discord webhooks allow
// bursts, so the limiter is 2 req/s with burst 5.
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(2.0, 5),
	}
}

type discordPayload struct {
	Content string `json:"content"`
}

// discordRateLimitResponse is Discord's 429 body; retry_after is seconds.
type discordRateLimitResponse struct {
	RetryAfter float64 `json:"retry_after"`
}

const discordMaxAttempts = 3

// NotifyReport posts the report, retrying transient failures and
// honoring 429 retry-after hints.
func (d *DiscordNotifier) NotifyReport(ctx context.Context, report Report) error {
	requestID := uuid.NewString()

	body, err := json.Marshal(discordPayload{Content: formatReport(report)})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= discordMaxAttempts; attempt++ {
		if err := d.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("discord rate limiter: %w", err)
		}

		lastErr = d.post(ctx, body)
		if lastErr == nil {
			slog.Debug("discord report delivered",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt))
			return nil
		}

		if rateErr, ok := is429Error(lastErr); ok {
			slog.Warn("discord rate limited",
				slog.String("request_id", requestID),
				slog.Duration("retry_after", rateErr.RetryAfter))
			select {
			case <-time.After(rateErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("discord notify aborted: %w", ctx.Err())
			}
		}

		if !isRetryableError(lastErr) {
			return fmt.Errorf("discord notify: %w", lastErr)
		}

		slog.Warn("discord notify failed, retrying",
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr))
	}

	return fmt.Errorf("discord notify after %d attempts: %w", discordMaxAttempts, lastErr)
}

func (d *DiscordNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to discord: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 2 * time.Second
		var rateResp discordRateLimitResponse
		if err := json.NewDecoder(resp.Body).Decode(&rateResp); err == nil && rateResp.RetryAfter > 0 {
			retryAfter = time.Duration(rateResp.RetryAfter * float64(time.Second))
		}
		return &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Message: responseSnippet(resp)}
	default:
		return &ClientError{StatusCode: resp.StatusCode, Message: responseSnippet(resp)}
	}
}
