/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"fmt"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/multi"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
)

var logger = logging.NewLogger("delphi/retry")

// Invocation is the function to be invoked.
type Invocation func() (interface{}, error)

// BeforeRetryHandler is invoked before a retry attempt with the attempt number
// about to run and the error that caused the retry.
type BeforeRetryHandler func(attempt int, err error)

// RetryableInvoker manages invocations that could return
// errors and retries the invocation on transient errors.
type RetryableInvoker struct {
	handler     Handler
	beforeRetry BeforeRetryHandler
}

// InvokerOpt is an invoker option
type InvokerOpt func(invoker *RetryableInvoker)

// WithBeforeRetry specifies a function to call before a retry attempt
func WithBeforeRetry(beforeRetry BeforeRetryHandler) InvokerOpt {
	return func(invoker *RetryableInvoker) {
		invoker.beforeRetry = beforeRetry
	}
}

// NewInvoker creates a new RetryableInvoker
func NewInvoker(handler Handler, opts ...InvokerOpt) *RetryableInvoker {
	invoker := &RetryableInvoker{
		handler: handler,
	}
	for _, opt := range opts {
		opt(invoker)
	}
	return invoker
}

// Invoke runs invocation until it succeeds, fails with a non-transient error
// or the handler's attempt ceiling is reached. In the last case the returned
// error has code RetriesExhausted and carries the last failure in its details.
func (ri *RetryableInvoker) Invoke(invocation Invocation) (interface{}, error) {
	attemptNum := 0
	var lastErr error
	for {
		attemptNum++
		retval, err := invocation()
		if err == nil {
			if attemptNum > 1 {
				logger.Infof("Success on attempt #%d after error [%s]", attemptNum, lastErr)
			}
			return retval, nil
		}

		transient := ri.transient(err)
		if !ri.resolveRetry(err) {
			if transient {
				logger.Warnf("Giving up after %d attempt(s) on transient error [%s]", attemptNum, err)
				return nil, status.New(status.ClientStatus, status.RetriesExhausted.ToInt32(),
					fmt.Sprintf("retries exhausted after %d attempt(s): %s", attemptNum, err), []interface{}{err})
			}
			logger.Debugf("Retry for err [%s] is NOT warranted after %d attempt(s)", err, attemptNum)
			return nil, err
		}
		lastErr = err
		logger.Warnf("Retry attempt #%d on error [%s]", attemptNum+1, err)
		if ri.beforeRetry != nil {
			ri.beforeRetry(attemptNum+1, err)
		}
	}
}

func (ri *RetryableInvoker) transient(err error) bool {
	for _, e := range flatten(err) {
		if ri.handler.Classify(e) == PropagationDelay {
			return true
		}
	}
	return false
}

func (ri *RetryableInvoker) resolveRetry(err error) bool {
	for _, e := range flatten(err) {
		if ri.handler.Required(e) {
			return true
		}
	}
	return false
}

func flatten(err error) multi.Errors {
	if errs, ok := err.(multi.Errors); ok {
		return errs
	}
	return multi.Errors{err}
}
