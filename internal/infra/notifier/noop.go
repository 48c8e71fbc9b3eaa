package notifier

import "context"

// NoopNotifier discards reports. Used when no webhook is configured.
type NoopNotifier struct{}

// NewNoopNotifier creates a notifier that does nothing.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

// NotifyReport always succeeds.
func (n *NoopNotifier) NotifyReport(context.Context, Report) error {
	return nil
}
