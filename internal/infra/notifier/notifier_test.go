package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		RanAt:    time.Date(2025, 3, 2, 10, 30, 0, 0, time.UTC),
		Sources:  3,
		NewLinks: 12,
		Failures: 1,
		Duration: 42 * time.Second,
	}
}

func TestFormatReport(t *testing.T) {
	msg := formatReport(sampleReport())
	assert.Contains(t, msg, "12 new links")
	assert.Contains(t, msg, "3 sources")
	assert.Contains(t, msg, "1 failed")
	assert.Contains(t, msg, "2025-03-02T10:30:00Z")
}

func TestSlackNotifierDelivers(t *testing.T) {
	var got slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, n.NotifyReport(context.Background(), sampleReport()))
	assert.Contains(t, got.Text, "12 new links")
}

func TestSlackNotifierRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, n.NotifyReport(context.Background(), sampleReport()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlackNotifierAbortsOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	err := n.NotifyReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "client errors must not be retried")
}

func TestSlackNotifierHonors429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	start := time.Now()
	require.NoError(t, n.NotifyReport(context.Background(), sampleReport()))
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDiscordNotifierDelivers(t *testing.T) {
	var got discordPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, n.NotifyReport(context.Background(), sampleReport()))
	assert.Contains(t, got.Content, "12 new links")
}

func TestDiscordNotifierHonors429Body(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"retry_after": 0.05}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, n.NotifyReport(context.Background(), sampleReport()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoopNotifier(t *testing.T) {
	n := NewNoopNotifier()
	assert.NoError(t, n.NotifyReport(context.Background(), sampleReport()))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&ServerError{StatusCode: 502}))
	assert.False(t, isRetryableError(&ClientError{StatusCode: 404}))
	assert.False(t, isRetryableError(&RateLimitError{RetryAfter: time.Second}))
	assert.True(t, isRetryableError(assert.AnError))
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) NotifyReport(context.Context, Report) error {
	s.calls++
	return s.err
}

func TestMultiNotifierDeliversToAll(t *testing.T) {
	a := &stubNotifier{}
	b := &stubNotifier{}

	m := NewMulti(a, b)
	require.NoError(t, m.NotifyReport(context.Background(), sampleReport()))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestMultiNotifierJoinsFailures(t *testing.T) {
	a := &stubNotifier{err: &ServerError{StatusCode: 503, Message: "unavailable"}}
	b := &stubNotifier{}

	m := NewMulti(a, b)
	err := m.NotifyReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Equal(t, 1, b.calls, "one failing notifier must not block the others")
}
