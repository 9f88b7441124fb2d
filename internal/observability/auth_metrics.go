package observability

import (
	"context"

	"github.com/spec-kit/auth-service/internal/events"
)

// RegisterAuthMetrics subscribes counters to auth domain events so
// signup/signin/refresh outcomes show up in metrics without the
// service knowing about observability.
func RegisterAuthMetrics(dispatcher events.Dispatcher, metrics *Metrics) {
	if dispatcher == nil || metrics == nil {
		return
	}

	record := func(operation, outcome string) events.EventHandler {
		return func(context.Context, events.Event) error {
			metrics.RecordAuthOutcome(operation, outcome)
			return nil
		}
	}

	dispatcher.Subscribe(events.EventUserRegistered, record("signup", "ok"))
	dispatcher.Subscribe(events.EventUserSignedIn, record("signin", "ok"))
	dispatcher.Subscribe(events.EventTokenRefreshed, record("refresh", "ok"))
	dispatcher.Subscribe(events.EventSigninRateLimited, record("signin", "rate_limited"))
}
