/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package orderer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	po "github.com/hyperledger/fabric-protos-go/orderer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/comm"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/mocks"
)

const ordererURL = "grpc://orderer0.delphi.com:7050"

var envelope = &fab.SignedEnvelope{Payload: []byte("payload"), Signature: []byte("signature")}

func startOrderer(t *testing.T, srv *mocks.MockBroadcastServer) *Orderer {
	lis := bufconn.Listen(1024 * 1024)
	srv.Start(lis)
	t.Cleanup(srv.Stop)

	connector := comm.NewCachingConnector(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.Dial()
	}))
	t.Cleanup(connector.Close)

	o, err := New(WithURL(ordererURL), WithConnector(connector), WithDialTimeout(time.Second))
	require.NoError(t, err)
	return o
}

func TestNew(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
	_, err = New(WithEndpoint(comm.Endpoint{URL: "grpcs://orderer0.delphi.com:7050", TLSCACert: "/does/not/exist"}))
	assert.Error(t, err)
	_, err = New(WithURL(ordererURL), WithConnector(nil))
	assert.Error(t, err)

	o, err := New(WithEndpoint(comm.Endpoint{URL: ordererURL}))
	require.NoError(t, err)
	assert.Equal(t, ordererURL, o.URL())
	assert.Equal(t, ordererURL, o.String())
	assert.Empty(t, o.TLSCACert())
}

func TestSendBroadcast(t *testing.T) {
	srv := &mocks.MockBroadcastServer{}
	o := startOrderer(t, srv)

	s, err := o.SendBroadcast(context.Background(), envelope)
	require.NoError(t, err)
	assert.Equal(t, common.Status_SUCCESS, *s)
	assert.Equal(t, int32(1), srv.Received.Load())
}

func TestSendBroadcastRejected(t *testing.T) {
	srv := &mocks.MockBroadcastServer{BroadcastCustomResponse: &po.BroadcastResponse{Status: common.Status_SERVICE_UNAVAILABLE, Info: "kafka not ready"}}
	o := startOrderer(t, srv)

	_, err := o.SendBroadcast(context.Background(), envelope)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.OrdererServerStatus, status.Code(common.Status_SERVICE_UNAVAILABLE)))
}

func TestSendBroadcastServerError(t *testing.T) {
	srv := &mocks.MockBroadcastServer{BroadcastError: grpcstatus.Error(codes.Unavailable, "shutting down")}
	o := startOrderer(t, srv)

	_, err := o.SendBroadcast(context.Background(), envelope)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.GRPCTransportStatus, status.Code(codes.Unavailable)))
}

func TestSendBroadcastConnectionFailure(t *testing.T) {
	connector := comm.NewCachingConnector(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}))
	defer connector.Close()

	o, err := New(WithURL(ordererURL), WithConnector(connector), WithDialTimeout(100*time.Millisecond))
	require.NoError(t, err)
	_, err = o.SendBroadcast(context.Background(), envelope)
	assert.True(t, status.Is(err, status.OrdererClientStatus, status.ConnectionFailed))
}
