package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry wires the error sink. An empty DSN disables reporting, which
// is the local-development default; internal taxonomy errors and recovered
// panics are the only things captured.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

// FlushSentry drains buffered events on shutdown.
func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
