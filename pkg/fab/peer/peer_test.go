/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	"context"
	"net"
	"testing"
	"time"

	pb "github.com/hyperledger/fabric-protos-go/peer"
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

const peerURL = "grpc://peer0.bu.delphi.com:7051"

func startEndorser(t *testing.T, srv *mocks.MockEndorserServer) *comm.CachingConnector {
	lis := bufconn.Listen(1024 * 1024)
	srv.Start(lis)
	t.Cleanup(srv.Stop)

	connector := comm.NewCachingConnector(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.Dial()
	}))
	t.Cleanup(connector.Close)
	return connector
}

func newPeer(t *testing.T, connector comm.Connector) *Peer {
	p, err := New(WithURL(peerURL), WithMSPID("BUMSP"), WithOrg("bu", 0),
		WithEventURL("grpc://peer0.bu.delphi.com:7053"), WithConnector(connector), WithDialTimeout(time.Second))
	require.NoError(t, err)
	return p
}

func request() fab.ProcessProposalRequest {
	return fab.ProcessProposalRequest{SignedProposal: &pb.SignedProposal{ProposalBytes: []byte("proposal")}}
}

func TestPeerAccessors(t *testing.T) {
	p := newPeer(t, &comm.OneShotConnector{})
	assert.Equal(t, peerURL, p.URL())
	assert.Equal(t, peerURL, p.String())
	assert.Equal(t, "BUMSP", p.MSPID())
	assert.Equal(t, "bu", p.OrgName())
	assert.Equal(t, 0, p.PeerIndex())
	assert.Equal(t, "grpc://peer0.bu.delphi.com:7053", p.EventURL())
	assert.Empty(t, p.TLSCACert())

	_, err := New()
	assert.Error(t, err, "url is required")
	_, err = New(WithEndpoint(comm.Endpoint{URL: "grpcs://peer0.bu.delphi.com:7051", TLSCACert: "/does/not/exist"}))
	assert.Error(t, err)
	_, err = New(WithURL(peerURL), WithConnector(nil))
	assert.Error(t, err)

	procs := PeersToTxnProcessors([]fab.Peer{p})
	assert.Len(t, procs, 1)
}

func TestProcessProposal(t *testing.T) {
	srv := &mocks.MockEndorserServer{}
	p := newPeer(t, startEndorser(t, srv))

	resp, err := p.ProcessTransactionProposal(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, int32(200), resp.Status)
	assert.Equal(t, int32(200), resp.ChaincodeStatus)
	assert.Equal(t, "peer0.bu.delphi.com:7051", resp.Endorser)
}

func TestProcessProposalChaincodeFailure(t *testing.T) {
	srv := &mocks.MockEndorserServer{Status: 500, Message: "key already exists"}
	p := newPeer(t, startEndorser(t, srv))

	resp, err := p.ProcessTransactionProposal(context.Background(), request())
	require.NoError(t, err, "an unsuccessful response is still a response")
	assert.Equal(t, int32(500), resp.Status)
	assert.Equal(t, "key already exists", resp.ProposalResponse.Response.Message)
}

func TestProcessProposalCreatorNotPropagated(t *testing.T) {
	srv := &mocks.MockEndorserServer{CreatorUnknownFor: 1}
	p := newPeer(t, startEndorser(t, srv))

	_, err := p.ProcessTransactionProposal(context.Background(), request())
	require.Error(t, err)
	assert.True(t, status.Is(err, status.EndorserServerStatus, status.CreatorIdentityNotPropagated))

	_, err = p.ProcessTransactionProposal(context.Background(), request())
	assert.NoError(t, err)
}

func TestProcessProposalGRPCError(t *testing.T) {
	srv := &mocks.MockEndorserServer{ProposalError: grpcstatus.Error(codes.Unknown, "Failed to deserialize creator identity, err unknown MSP")}
	p := newPeer(t, startEndorser(t, srv))

	_, err := p.ProcessTransactionProposal(context.Background(), request())
	assert.True(t, status.Is(err, status.EndorserServerStatus, status.CreatorIdentityNotPropagated))

	srv.ProposalError = grpcstatus.Error(codes.PermissionDenied, "access denied")
	_, err = p.ProcessTransactionProposal(context.Background(), request())
	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.GRPCTransportStatus, s.Group)
	assert.Equal(t, int32(codes.PermissionDenied), s.Code)
}

func TestProcessProposalConnectionFailure(t *testing.T) {
	connector := comm.NewCachingConnector(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}))
	defer connector.Close()
	p, err := New(WithURL(peerURL), WithConnector(connector), WithDialTimeout(100*time.Millisecond))
	require.NoError(t, err)

	_, err = p.ProcessTransactionProposal(context.Background(), request())
	assert.True(t, status.Is(err, status.EndorserClientStatus, status.ConnectionFailed))
}
