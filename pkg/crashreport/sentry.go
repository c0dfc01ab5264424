package crashreport

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryReporter reports errors to Sentry, tagging each event the way
// the caller requests before capturing it.
type SentryReporter struct{}

// NewSentryReporter initializes the global Sentry SDK with dsn and
// returns a Reporter backed by it.
func NewSentryReporter(dsn string) (*SentryReporter, error) {
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		return nil, fmt.Errorf("crashreport: init sentry: %w", err)
	}
	return &SentryReporter{}, nil
}

// Report captures err as a Sentry event with tags applied to a scoped
// hub, then flushes with a short deadline so the caller is not blocked
// indefinitely by a slow or unreachable Sentry endpoint.
func (SentryReporter) Report(ctx context.Context, err error, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
	sentry.Flush(2 * time.Second)
}
