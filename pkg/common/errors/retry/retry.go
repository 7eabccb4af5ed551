/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package retry re-runs whole operations that failed with a transient error.
//
// Failures fall into three kinds. A Conflict (identity already registered) is
// resolved by the identity manager itself and is never retried here. A
// PropagationDelay (the endorser cannot yet deserialize a freshly enrolled
// creator) is retried after a fixed delay until the attempt ceiling is hit.
// Everything else is Fatal and is returned untouched.
package retry

import (
	"time"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
)

// Kind classifies a failure for retry purposes
type Kind int

const (
	// Fatal failures are surfaced to the caller without retry
	Fatal Kind = iota
	// Conflict is a registration conflict, recovered inline by the identity manager
	Conflict
	// PropagationDelay is a transient failure worth retrying
	PropagationDelay
)

func (k Kind) String() string {
	switch k {
	case Conflict:
		return "Conflict"
	case PropagationDelay:
		return "PropagationDelay"
	default:
		return "Fatal"
	}
}

// Opts defines the retry parameters
type Opts struct {
	// Attempts is the maximum number of retries after the first invocation
	Attempts int
	// InitialBackoff the backoff interval for the first retry attempt
	InitialBackoff time.Duration
	// MaxBackoff the maximum backoff interval for any retry attempt
	MaxBackoff time.Duration
	// BackoffFactor the factor by which InitialBackoff grows for consecutive
	// attempts. A factor of 1 gives a fixed delay.
	BackoffFactor float64
	// RetryableCodes the status codes, mapped by group, that warrant a retry.
	// Defaults to PropagationRetryableCodes.
	RetryableCodes map[status.Group][]status.Code
}

// Handler decides whether a retry is required for the given error
type Handler interface {
	Required(err error) bool
	Classify(err error) Kind
	Attempts() int
}

type impl struct {
	opts    Opts
	retries int
}

// New retry Handler with the given opts
func New(opts Opts) Handler {
	if len(opts.RetryableCodes) == 0 {
		opts.RetryableCodes = PropagationRetryableCodes
	}
	if opts.BackoffFactor < 1 {
		opts.BackoffFactor = 1
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	return &impl{opts: opts}
}

// WithDefaults new retry Handler with default opts
func WithDefaults() Handler {
	return New(DefaultOpts)
}

// WithAttempts new retry Handler with given attempts. Other opts are set to default.
func WithAttempts(attempts int) Handler {
	opts := DefaultOpts
	opts.Attempts = attempts
	return New(opts)
}

// Required determines if retry is required for the given error. It sleeps for
// the backoff period before returning true.
func (i *impl) Required(err error) bool {
	if i.retries >= i.opts.Attempts {
		return false
	}
	if i.Classify(err) != PropagationDelay {
		return false
	}
	time.Sleep(i.backoffPeriod())
	i.retries++
	return true
}

// Attempts returns the number of retries performed so far
func (i *impl) Attempts() int {
	return i.retries
}

// Classify returns the retry kind of err
func (i *impl) Classify(err error) Kind {
	s, ok := status.FromError(err)
	if !ok {
		return Fatal
	}
	if s.Group == status.CAClientStatus && s.Code == status.IdentityAlreadyRegistered.ToInt32() {
		return Conflict
	}
	if i.isRetryable(s.Group, s.Code) {
		return PropagationDelay
	}
	return Fatal
}

func (i *impl) backoffPeriod() time.Duration {
	backoff, max := float64(i.opts.InitialBackoff), float64(i.opts.MaxBackoff)
	for j := 0; j < i.retries && backoff < max; j++ {
		backoff *= i.opts.BackoffFactor
	}
	if backoff > max {
		backoff = max
	}
	return time.Duration(backoff)
}

func (i *impl) isRetryable(g status.Group, c int32) bool {
	for _, code := range i.opts.RetryableCodes[g] {
		if status.Code(c) == code {
			return true
		}
	}
	return false
}
