/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"context"
	"net"
	"sync"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
)

// MockEndorserServer mock endorser server to process endorsement proposals
type MockEndorserServer struct {
	// ProposalError is returned as a gRPC error when set
	ProposalError error
	// Status of the chaincode response, 200 when zero
	Status int32
	// Message of the chaincode response
	Message string
	// CreatorUnknownFor answers the first n proposals the way an endorser
	// does before the creator's MSP has propagated
	CreatorUnknownFor int32
	// Calls counts processed proposals
	Calls atomic.Int32

	srv *grpc.Server
	wg  sync.WaitGroup
}

// ProcessProposal mock implementation that returns success if error is not set
// error if it is
func (m *MockEndorserServer) ProcessProposal(ctx context.Context, proposal *pb.SignedProposal) (*pb.ProposalResponse, error) {
	n := m.Calls.Inc()
	if m.ProposalError != nil {
		return nil, m.ProposalError
	}
	if n <= m.CreatorUnknownFor {
		return &pb.ProposalResponse{Response: &pb.Response{
			Status:  500,
			Message: "access denied: Failed to deserialize creator identity, err MSP BUMSP is unknown",
		}}, nil
	}

	status := m.Status
	if status == 0 {
		status = 200
	}
	return &pb.ProposalResponse{
		Response:    &pb.Response{Status: status, Message: m.Message},
		Endorsement: &pb.Endorsement{Endorser: []byte("endorser"), Signature: []byte("signature")},
		Payload:     NewProposalResponsePayload("", status, m.Message, nil),
	}, nil
}

// Start serves the endorser on lis
func (m *MockEndorserServer) Start(lis net.Listener) {
	if m.srv != nil {
		panic("MockEndorserServer already started")
	}
	m.srv = grpc.NewServer()
	pb.RegisterEndorserServer(m.srv, m)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.srv.Serve(lis) // nolint: errcheck
	}()
}

// Stop the mock endorser server and wait for completion.
func (m *MockEndorserServer) Stop() {
	if m.srv == nil {
		panic("MockEndorserServer not started")
	}
	m.srv.Stop()
	m.wg.Wait()
	m.srv = nil
}
