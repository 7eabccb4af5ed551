/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"github.com/golang/protobuf/proto"
	pb_msp "github.com/hyperledger/fabric-protos-go/msp"
)

// MockSigner is a fab.SigningIdentity with a fixed certificate and signature
type MockSigner struct {
	MSPID     string
	Cert      []byte
	Signature []byte
	SignErr   error
}

// NewMockSigner returns a signer for mspID
func NewMockSigner(mspID string, cert string) *MockSigner {
	return &MockSigner{MSPID: mspID, Cert: []byte(cert), Signature: []byte("signature")}
}

// Serialize returns the marshalled SerializedIdentity
func (s *MockSigner) Serialize() ([]byte, error) {
	return proto.Marshal(&pb_msp.SerializedIdentity{Mspid: s.MSPID, IdBytes: s.Cert})
}

// Sign returns the configured signature
func (s *MockSigner) Sign(msg []byte) ([]byte, error) {
	if s.SignErr != nil {
		return nil, s.SignErr
	}
	return s.Signature, nil
}
