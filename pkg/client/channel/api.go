/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"time"

	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel/invoke"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/retry"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
)

// opts allows the user to specify more advanced options
type requestOptions struct {
	Targets   []fab.ProposalProcessor // targets
	Validator invoke.Validator
	Timeout   time.Duration
	Retry     *retry.Opts
}

// RequestOption func for each Opts argument
type RequestOption func(opts *requestOptions) error

// Request contains the parameters to submit an invocation transaction
type Request struct {
	ChaincodeID  string
	Fcn          string
	Args         [][]byte
	TransientMap map[string][]byte
}

// Response contains the outcome of a submission
type Response invoke.Response

//WithTimeout bounds the whole submission, retries included
func WithTimeout(timeout time.Duration) RequestOption {
	return func(o *requestOptions) error {
		o.Timeout = timeout
		return nil
	}
}

//WithTargets encapsulates ProposalProcessors to Option
func WithTargets(targets ...fab.ProposalProcessor) RequestOption {
	return func(o *requestOptions) error {
		o.Targets = targets
		return nil
	}
}

// WithValidator judges endorsements in ValidatedCommit mode
func WithValidator(validator invoke.Validator) RequestOption {
	return func(o *requestOptions) error {
		o.Validator = validator
		return nil
	}
}

// WithRetry option to configure retries
func WithRetry(retryOpt retry.Opts) RequestOption {
	return func(o *requestOptions) error {
		o.Retry = &retryOpt
		return nil
	}
}

// RetryOpts converts the configured retry ceiling and delay into a
// fixed-delay retry.Opts
func RetryOpts(cfg config.RetryConfig) retry.Opts {
	opts := retry.DefaultOpts
	if cfg.Attempts > 0 {
		opts.Attempts = cfg.Attempts
	}
	if cfg.Delay > 0 {
		opts.InitialBackoff = cfg.Delay
		opts.MaxBackoff = cfg.Delay
	}
	return opts
}
