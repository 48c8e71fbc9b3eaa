package notifier

import (
	"context"
	"errors"
)

// MultiNotifier fans a report out to several notifiers. Every notifier
// is attempted; failures are joined.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMulti combines notifiers. With none configured it behaves like the
// no-op notifier.
func NewMulti(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// NotifyReport delivers to every notifier and returns the combined
// failures, if any.
func (m *MultiNotifier) NotifyReport(ctx context.Context, report Report) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyReport(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
