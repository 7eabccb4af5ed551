/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package txn enables creating, endorsing and sending transactions to Fabric peers and orderers.
package txn

import (
	"bytes"
	reqContext "context"
	"math/rand"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/multi"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
)

var logger = logging.NewLogger("delphi/txn")

// New create a transaction with proposal response, following the endorsement policy.
// Every response must carry status 200 and the same proposal response payload.
func New(request fab.TransactionRequest) (*fab.Transaction, error) {
	if len(request.ProposalResponses) == 0 {
		return nil, errors.New("at least one proposal response is necessary")
	}

	responsePayload := request.ProposalResponses[0].ProposalResponse.GetPayload()
	for _, r := range request.ProposalResponses {
		if r.ProposalResponse.GetResponse().GetStatus() != 200 {
			return nil, errors.Errorf("proposal response was not successful, error code %d, msg %s",
				r.ProposalResponse.GetResponse().GetStatus(), r.ProposalResponse.GetResponse().GetMessage())
		}
		if !bytes.Equal(responsePayload, r.ProposalResponse.GetPayload()) {
			return nil, errors.Errorf("proposal response payloads are not the same (%v, %v)", responsePayload, r.ProposalResponse.GetPayload())
		}
	}

	return assemble(request)
}

// NewUnverified creates a transaction from whatever the endorsers returned,
// without checking statuses or payload agreement. The orderer and the
// committing peers are left to reject a bad transaction.
func NewUnverified(request fab.TransactionRequest) (*fab.Transaction, error) {
	if len(request.ProposalResponses) == 0 {
		return nil, errors.New("at least one proposal response is necessary")
	}
	for _, r := range request.ProposalResponses {
		if r == nil || r.ProposalResponse == nil {
			return nil, errors.New("proposal response is nil")
		}
	}
	return assemble(request)
}

func assemble(request fab.TransactionRequest) (*fab.Transaction, error) {
	proposal := request.Proposal
	if proposal == nil || proposal.Proposal == nil {
		return nil, errors.New("proposal is nil")
	}

	// the original header
	hdr := &common.Header{}
	if err := proto.Unmarshal(proposal.Header, hdr); err != nil {
		return nil, errors.Wrap(err, "unmarshal proposal header failed")
	}

	// the original payload
	pPayl := &pb.ChaincodeProposalPayload{}
	if err := proto.Unmarshal(proposal.Payload, pPayl); err != nil {
		return nil, errors.Wrap(err, "unmarshal proposal payload failed")
	}

	endorsements := make([]*pb.Endorsement, len(request.ProposalResponses))
	for n, r := range request.ProposalResponses {
		endorsements[n] = r.ProposalResponse.Endorsement
	}

	cea := &pb.ChaincodeEndorsedAction{
		ProposalResponsePayload: request.ProposalResponses[0].ProposalResponse.Payload,
		Endorsements:            endorsements,
	}

	// the transient map never leaves the endorsers
	propPayloadBytes, err := proto.Marshal(&pb.ChaincodeProposalPayload{Input: pPayl.Input})
	if err != nil {
		return nil, errors.Wrap(err, "marshal of proposal payload failed")
	}

	capBytes, err := proto.Marshal(&pb.ChaincodeActionPayload{ChaincodeProposalPayload: propPayloadBytes, Action: cea})
	if err != nil {
		return nil, errors.Wrap(err, "marshal of chaincode action payload failed")
	}

	taa := &pb.TransactionAction{Header: hdr.SignatureHeader, Payload: capBytes}

	return &fab.Transaction{
		Transaction: &pb.Transaction{Actions: []*pb.TransactionAction{taa}},
		Proposal:    proposal,
	}, nil
}

// Send send a transaction to the chain’s orderer service (one or more orderer endpoints) for consensus and committing to the ledger.
func Send(reqCtx reqContext.Context, signer fab.SigningIdentity, tx *fab.Transaction, orderers []fab.Orderer) (*fab.TransactionResponse, error) {
	if len(orderers) == 0 {
		return nil, errors.New("orderers is nil")
	}
	if tx == nil {
		return nil, errors.New("transaction is nil")
	}
	if tx.Proposal == nil || tx.Proposal.Proposal == nil {
		return nil, errors.New("proposal is nil")
	}

	// the original header
	hdr := &common.Header{}
	if err := proto.Unmarshal(tx.Proposal.Proposal.Header, hdr); err != nil {
		return nil, errors.Wrap(err, "unmarshal proposal header failed")
	}
	// serialize the tx
	txBytes, err := proto.Marshal(tx.Transaction)
	if err != nil {
		return nil, errors.Wrap(err, "marshal of transaction failed")
	}

	payload := common.Payload{Header: hdr, Data: txBytes}
	return BroadcastPayload(reqCtx, signer, &payload, orderers)
}

// BroadcastPayload will send the given payload to some orderer, picking random endpoints
// until all are exhausted
func BroadcastPayload(reqCtx reqContext.Context, signer fab.SigningIdentity, payload *common.Payload, orderers []fab.Orderer) (*fab.TransactionResponse, error) {
	if len(orderers) == 0 {
		return nil, errors.New("orderers not set")
	}

	envelope, err := signPayload(signer, payload)
	if err != nil {
		return nil, err
	}

	return broadcastEnvelope(reqCtx, envelope, orderers)
}

// broadcastEnvelope tries the orderers in random order and stops at the first one
// that accepts the envelope
func broadcastEnvelope(reqCtx reqContext.Context, envelope *fab.SignedEnvelope, orderers []fab.Orderer) (*fab.TransactionResponse, error) {
	var errs multi.Errors
	for _, i := range rand.Perm(len(orderers)) {
		orderer := orderers[i]
		logger.Debugf("Broadcasting envelope to orderer :%s", orderer.URL())
		if _, err := orderer.SendBroadcast(reqCtx, envelope); err != nil {
			logger.Debugf("Receive Error Response from orderer :%s", err)
			errs = append(errs, errors.WithMessagef(err, "calling orderer '%s' failed", orderer.URL()))
			continue
		}
		logger.Debugf("Receive Success Response from orderer")
		return &fab.TransactionResponse{Orderer: orderer.URL()}, nil
	}
	return nil, errs.ToError()
}
