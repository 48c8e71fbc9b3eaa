package dispatch

import (
	"errors"

	"newsingest/internal/infra/publisher"
	"newsingest/internal/repository"
)

// classifyFetchError maps an adapter fetch error to a retry outcome.
//
// Ownership violations are logical errors that no retry can fix, so they fail
// the link immediately. Everything else, including short content, timeouts,
// HTTP errors, and an open circuit breaker, counts against the retry budget
// and leaves the link pending until the budget runs out.
func classifyFetchError(err error) repository.FetchOutcome {
	if errors.Is(err, publisher.ErrWrongPublisher) {
		return repository.OutcomePermanent
	}
	return repository.OutcomeRetry
}
