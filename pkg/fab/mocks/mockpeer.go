/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mocks provides in-memory peers, orderers and signers plus gRPC
// endorser and broadcast servers for tests of the transaction pipeline.
package mocks

import (
	reqContext "context"
	"sync"

	"github.com/golang/protobuf/proto"
	pb "github.com/hyperledger/fabric-protos-go/peer"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
)

// MockPeer is a mock fab.Peer.
type MockPeer struct {
	RWLock                  *sync.RWMutex
	Error                   error
	MockURL                 string
	MockMSP                 string
	Payload                 []byte
	ResponseMessage         string
	ProposalResponsePayload []byte // Overrides proposal response payload generated from other values
	Status                  int32
	ProcessProposalCalls    int
	Endorser                []byte
	ChaincodeID             string
}

// NewMockPeer creates basic mock peer
func NewMockPeer(url string) *MockPeer {
	return &MockPeer{MockMSP: "BUMSP", MockURL: url, Status: 200, RWLock: &sync.RWMutex{}}
}

// MSPID gets the Peer mspID.
func (p *MockPeer) MSPID() string {
	return p.MockMSP
}

// URL returns the mock peer's mock URL
func (p *MockPeer) URL() string {
	return p.MockURL
}

// Calls returns the number of proposals processed so far
func (p *MockPeer) Calls() int {
	p.RWLock.RLock()
	defer p.RWLock.RUnlock()
	return p.ProcessProposalCalls
}

// ProcessTransactionProposal does not send anything anywhere but returns a mock ProposalResponse
func (p *MockPeer) ProcessTransactionProposal(ctx reqContext.Context, tp fab.ProcessProposalRequest) (*fab.TransactionProposalResponse, error) {
	p.RWLock.Lock()
	defer p.RWLock.Unlock()
	p.ProcessProposalCalls++

	if p.Error != nil {
		return nil, p.Error
	}

	return &fab.TransactionProposalResponse{
		Endorser:        p.MockURL,
		Status:          200,
		ChaincodeStatus: p.Status,
		ProposalResponse: &pb.ProposalResponse{
			Response: &pb.Response{
				Message: p.ResponseMessage,
				Status:  p.Status,
				Payload: p.Payload,
			},
			Endorsement: &pb.Endorsement{
				Endorser:  p.Endorser,
				Signature: []byte("signature"),
			},
			Payload: p.getProposalResponsePayload(),
		},
	}, nil
}

func (p *MockPeer) getProposalResponsePayload() []byte {
	if len(p.ProposalResponsePayload) > 0 {
		return p.ProposalResponsePayload
	}
	return NewProposalResponsePayload(p.ChaincodeID, p.Status, p.ResponseMessage, p.Payload)
}

// NewProposalResponsePayload marshals a ProposalResponsePayload whose
// ChaincodeAction carries the given chaincode response
func NewProposalResponsePayload(ccID string, status int32, message string, payload []byte) []byte {
	action := &pb.ChaincodeAction{
		Response: &pb.Response{Message: message, Status: status, Payload: payload},
	}
	if ccID != "" {
		action.ChaincodeId = &pb.ChaincodeID{Name: ccID}
	}
	actionBytes, err := proto.Marshal(action)
	if err != nil {
		panic(err)
	}
	prpBytes, err := proto.Marshal(&pb.ProposalResponsePayload{Extension: actionBytes})
	if err != nil {
		panic(err)
	}
	return prpBytes
}
