// Package notifier delivers pipeline run reports to chat webhooks. It
// defines the Notifier interface with Slack and Discord implementations
// plus a no-op notifier for when reporting is disabled.
//
// Implementations rate-limit themselves, retry transient webhook
// failures, and honor 429 retry-after hints.
package notifier

import (
	"context"
	"time"
)

// Report summarizes one scheduled collection run.
type Report struct {
	// RanAt is when the run started.
	RanAt time.Time

	// Sources is how many publishers were polled.
	Sources int

	// NewLinks is how many previously unseen links were stored.
	NewLinks int64

	// Failures is how many sources failed to be polled.
	Failures int

	// Duration is how long the run took.
	Duration time.Duration
}

// Notifier sends collection run reports. Implementations handle rate
// limiting and retries internally; a returned error means delivery
// failed after all attempts.
type Notifier interface {
	NotifyReport(ctx context.Context, report Report) error
}
