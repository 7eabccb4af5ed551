/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"fmt"
	"testing"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
)

var (
	propagationErr = status.Errorf(status.EndorserServerStatus, status.CreatorIdentityNotPropagated,
		"Failed to deserialize creator identity")
	conflictErr = status.Errorf(status.CAClientStatus, status.IdentityAlreadyRegistered,
		"Identity 'userB' is already registered")
)

func testOpts(attempts int) Opts {
	return Opts{
		Attempts:       attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
	}
}

func TestRetryRequired(t *testing.T) {
	attempts := 3
	badRequest := status.New(status.EndorserServerStatus, int32(common.Status_BAD_REQUEST), "", nil)

	r := New(testOpts(attempts))
	for i := 1; i <= attempts; i++ {
		assert.True(t, r.Required(propagationErr), "Expected retry to be required on propagation delay")
	}
	assert.False(t, r.Required(propagationErr), "Expected retry to not be required after exhausting attempts")
	assert.Equal(t, attempts, r.Attempts())

	r = New(testOpts(attempts))
	assert.False(t, r.Required(badRequest))
	assert.False(t, r.Required(conflictErr), "conflicts are handled by the identity manager")
	assert.False(t, r.Required(fmt.Errorf("unknown")))
	assert.Equal(t, 0, r.Attempts())
}

func TestClassify(t *testing.T) {
	r := WithDefaults()
	assert.Equal(t, PropagationDelay, r.Classify(propagationErr))
	assert.Equal(t, Conflict, r.Classify(conflictErr))
	assert.Equal(t, Fatal, r.Classify(fmt.Errorf("Failed to deserialize creator identity")),
		"classification relies on the status assigned at the boundary, not on text")
	assert.Equal(t, Fatal, r.Classify(status.Errorf(status.ClientStatus, status.MissingPortMapping, "peer0")))
	assert.Equal(t, "PropagationDelay", PropagationDelay.String())
	assert.Equal(t, "Fatal", Kind(42).String())
}

func TestFixedDelay(t *testing.T) {
	r := New(Opts{Attempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffFactor: 1})
	i := r.(*impl)
	assert.Equal(t, time.Second, i.backoffPeriod())
	i.retries = 4
	assert.Equal(t, time.Second, i.backoffPeriod())

	r = New(Opts{Attempts: 5, InitialBackoff: time.Second, BackoffFactor: 0})
	i = r.(*impl)
	assert.Equal(t, float64(1), i.opts.BackoffFactor)
	assert.Equal(t, time.Second, i.opts.MaxBackoff)
}

func TestBackoffPeriod(t *testing.T) {
	r := New(Opts{
		Attempts:       10,
		BackoffFactor:  2,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Second,
	})
	i := r.(*impl)
	assert.Equal(t, 2*time.Second, i.backoffPeriod())
	i.retries = 1
	assert.Equal(t, 4*time.Second, i.backoffPeriod())
	i.retries = 2
	assert.Equal(t, 5*time.Second, i.backoffPeriod())
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, 180, DefaultOpts.Attempts)
	assert.Equal(t, time.Second, DefaultOpts.InitialBackoff)
	assert.Equal(t, DefaultOpts.InitialBackoff, DefaultOpts.MaxBackoff)

	r := WithAttempts(7).(*impl)
	assert.Equal(t, 7, r.opts.Attempts)
	assert.Equal(t, PropagationRetryableCodes, r.opts.RetryableCodes)
}
