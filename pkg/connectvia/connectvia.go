// Package connectvia implements the "connect-via" design note from
// spec §9: retry/backoff is a policy value threaded explicitly through
// the call chain rather than a global, so CLI-side callers can fail
// fast while in-cluster callers (worker, babysitter) retry transient
// database errors with exponential backoff.
package connectvia

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how a caller wants transient errors handled.
type Policy struct {
	// Retry enables exponential-backoff retries. false means fail fast
	// (the CLI-side policy).
	Retry bool
	// MaxElapsed bounds the total time spent retrying. Zero means the
	// backoff library's default (15 minutes).
	MaxElapsed backoff.BackOff
}

// Cli is the fail-fast policy CLI-side callers use.
func Cli() Policy {
	return Policy{Retry: false}
}

// Cluster is the retrying policy in-cluster callers (worker pods, the
// babysitter) use: thousands of worker-hours and transient networking
// issues are expected, per spec §4.E.
func Cluster() Policy {
	return Policy{Retry: true, MaxElapsed: backoff.NewExponentialBackOff()}
}

// Do runs fn, retrying with exponential backoff if the policy says to.
// fn should return a nil error on success; any non-nil error is treated
// as retryable under the Cluster policy.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if !p.Retry {
		return fn()
	}
	b := p.MaxElapsed
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}
	return backoff.Retry(fn, backoff.WithContext(b, ctx))
}
