/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	reqContext "context"
	"sync"

	"github.com/hyperledger/fabric-protos-go/common"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
)

// MockOrderer is a mock fab.Orderer that records the envelopes it receives
type MockOrderer struct {
	mutex      sync.Mutex
	OrdererURL string
	Error      error
	Envelopes  []*fab.SignedEnvelope
}

// NewMockOrderer returns a MockOrderer answering at url
func NewMockOrderer(url string) *MockOrderer {
	return &MockOrderer{OrdererURL: url}
}

// URL returns the URL of the mock Orderer
func (o *MockOrderer) URL() string {
	return o.OrdererURL
}

// SendBroadcast records envelope and returns SUCCESS, or Error when set
func (o *MockOrderer) SendBroadcast(ctx reqContext.Context, envelope *fab.SignedEnvelope) (*common.Status, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.Error != nil {
		return nil, o.Error
	}
	o.Envelopes = append(o.Envelopes, envelope)
	s := common.Status_SUCCESS
	return &s, nil
}

// Received returns the number of envelopes accepted so far
func (o *MockOrderer) Received() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return len(o.Envelopes)
}
