/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"time"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
)

const (
	// DefaultAttempts caps propagation retries. With the one second delay this
	// allows roughly three minutes for a new identity to reach every endorser.
	DefaultAttempts = 180
	// DefaultDelay fixed delay between attempts
	DefaultDelay = time.Second
)

// DefaultOpts default retry options: fixed one second delay, 180 attempts
var DefaultOpts = Opts{
	Attempts:       DefaultAttempts,
	InitialBackoff: DefaultDelay,
	MaxBackoff:     DefaultDelay,
	BackoffFactor:  1,
	RetryableCodes: PropagationRetryableCodes,
}

// PropagationRetryableCodes are the codes treated as identity propagation lag
var PropagationRetryableCodes = map[status.Group][]status.Code{
	status.EndorserServerStatus: {
		status.CreatorIdentityNotPropagated,
	},
}

// TestRetryableCodes are used by tests to determine error situations that can be retried.
var TestRetryableCodes = map[status.Group][]status.Code{
	status.TestStatus: {
		status.GenericTransient,
	},
	status.EndorserServerStatus: {
		status.CreatorIdentityNotPropagated,
	},
}
