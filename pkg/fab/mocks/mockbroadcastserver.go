/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"io"
	"net"
	"sync"

	"github.com/hyperledger/fabric-protos-go/common"
	po "github.com/hyperledger/fabric-protos-go/orderer"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/codes"
)

var broadcastResponseSuccess = &po.BroadcastResponse{Status: common.Status_SUCCESS}

// MockBroadcastServer mock broadcast server
type MockBroadcastServer struct {
	BroadcastError          error
	BroadcastCustomResponse *po.BroadcastResponse
	// Received counts the envelopes accepted
	Received atomic.Int32

	srv *grpc.Server
	wg  sync.WaitGroup
}

// Broadcast mock broadcast
func (m *MockBroadcastServer) Broadcast(server po.AtomicBroadcast_BroadcastServer) error {
	for {
		_, err := server.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if m.BroadcastError != nil {
			return m.BroadcastError
		}
		if m.BroadcastCustomResponse != nil {
			if err := server.Send(m.BroadcastCustomResponse); err != nil {
				return err
			}
			continue
		}

		m.Received.Inc()
		if err := server.Send(broadcastResponseSuccess); err != nil {
			return err
		}
	}
}

// Deliver is not served
func (m *MockBroadcastServer) Deliver(server po.AtomicBroadcast_DeliverServer) error {
	return grpcstatus.Error(codes.Unimplemented, "deliver is not supported")
}

// Start serves the broadcast service on lis
func (m *MockBroadcastServer) Start(lis net.Listener) {
	if m.srv != nil {
		panic("MockBroadcastServer already started")
	}
	m.srv = grpc.NewServer()
	po.RegisterAtomicBroadcastServer(m.srv, m)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.srv.Serve(lis) // nolint: errcheck
	}()
}

// Stop the mock broadcast server and wait for completion.
func (m *MockBroadcastServer) Stop() {
	if m.srv == nil {
		panic("MockBroadcastServer not started")
	}
	m.srv.Stop()
	m.wg.Wait()
	m.srv = nil
}
