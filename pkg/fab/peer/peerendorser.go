/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	reqContext "context"
	"strings"
	"time"

	"github.com/golang/protobuf/proto"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/comm"
)

// CreatorNotPropagatedMessage is reported by an endorser that has not yet
// learned about the MSP material of a freshly enrolled creator
const CreatorNotPropagatedMessage = "Failed to deserialize creator identity"

// peerEndorser enables access to a GRPC-based endorser for running transaction proposal simulations
type peerEndorser struct {
	grpcDialOption []grpc.DialOption
	target         string
	dialTimeout    time.Duration
	connector      comm.Connector
}

func newPeerEndorser(ep *comm.Endpoint, connector comm.Connector, dialTimeout time.Duration) (*peerEndorser, error) {
	grpcOpts, err := comm.DialOptions(ep)
	if err != nil {
		return nil, errors.WithMessagef(err, "endorser [%s]", ep.URL)
	}

	return &peerEndorser{
		grpcDialOption: grpcOpts,
		target:         comm.ToAddress(ep.URL),
		dialTimeout:    dialTimeout,
		connector:      connector,
	}, nil
}

// ProcessTransactionProposal sends the transaction proposal to a peer and returns the response.
// A response with a non-success status is returned without error; only
// failures to obtain a response are errors.
func (p *peerEndorser) ProcessTransactionProposal(ctx reqContext.Context, request fab.ProcessProposalRequest) (*fab.TransactionProposalResponse, error) {
	logger.Debugf("Processing proposal using endorser: %s", p.target)

	proposalResponse, err := p.sendProposal(ctx, request)
	if err != nil {
		return nil, errors.WithMessagef(err, "Transaction processing for endorser [%s]", p.target)
	}

	chaincodeStatus, err := getChaincodeResponseStatus(proposalResponse)
	if err != nil {
		return nil, errors.WithMessage(err, "chaincode response status parsing failed")
	}

	tpr := fab.TransactionProposalResponse{
		ProposalResponse: proposalResponse,
		Endorser:         p.target,
		ChaincodeStatus:  chaincodeStatus,
		Status:           proposalResponse.GetResponse().GetStatus(),
	}
	return &tpr, nil
}

func (p *peerEndorser) conn(ctx reqContext.Context) (*grpc.ClientConn, error) {
	ctx, cancel := reqContext.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	return p.connector.DialContext(ctx, p.target, p.grpcDialOption...)
}

func (p *peerEndorser) sendProposal(ctx reqContext.Context, proposal fab.ProcessProposalRequest) (*pb.ProposalResponse, error) {
	conn, err := p.conn(ctx)
	if err != nil {
		return nil, status.New(status.EndorserClientStatus, status.ConnectionFailed.ToInt32(), err.Error(), []interface{}{p.target})
	}
	defer p.connector.ReleaseConn(conn)

	endorserClient := pb.NewEndorserClient(conn)
	resp, err := endorserClient.ProcessProposal(ctx, proposal.SignedProposal)
	if err != nil {
		logger.Errorf("process proposal failed [%s]", err)
		rpcStatus, ok := grpcstatus.FromError(err)
		if !ok {
			return nil, err
		}
		if strings.Contains(rpcStatus.Message(), CreatorNotPropagatedMessage) {
			return nil, status.New(status.EndorserServerStatus, status.CreatorIdentityNotPropagated.ToInt32(), rpcStatus.Message(), []interface{}{p.target})
		}
		return nil, status.NewFromGRPCStatus(rpcStatus)
	}

	if resp.GetResponse() == nil {
		return nil, status.New(status.EndorserClientStatus, status.Unknown.ToInt32(), "proposal response carries no response", []interface{}{p.target})
	}
	return resp, extractCreatorError(resp, p.target)
}

// extractCreatorError turns the endorser's creator deserialization failure into
// a transient status. Other unsuccessful responses are left to the caller.
func extractCreatorError(resp *pb.ProposalResponse, target string) error {
	if resp.Response.Status < 400 || !strings.Contains(resp.Response.Message, CreatorNotPropagatedMessage) {
		return nil
	}
	return status.New(status.EndorserServerStatus, status.CreatorIdentityNotPropagated.ToInt32(), resp.Response.Message, []interface{}{target})
}

// getChaincodeResponseStatus gets the actual response status from response.Payload.extension.Response.status, as fabric always returns actual 200
func getChaincodeResponseStatus(response *pb.ProposalResponse) (int32, error) {
	if response.Payload != nil {
		payload := &pb.ProposalResponsePayload{}
		if err := proto.Unmarshal(response.Payload, payload); err != nil {
			return 0, errors.Wrap(err, "unmarshal of proposal response payload failed")
		}

		extension := &pb.ChaincodeAction{}
		if err := proto.Unmarshal(payload.Extension, extension); err != nil {
			return 0, errors.Wrap(err, "unmarshal of chaincode action failed")
		}

		if extension.Response != nil {
			return extension.Response.Status, nil
		}
	}
	return response.Response.Status, nil
}
