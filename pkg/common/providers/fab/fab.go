/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fab declares the ledger network abstractions shared by the
// transaction pipeline, the peer and orderer clients and the topology.
package fab

import (
	reqContext "context"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
)

// ProposalProcessor endorses a signed proposal. Peers implement it, and so
// do the test doubles of the pipeline.
type ProposalProcessor interface {
	ProcessTransactionProposal(reqContext.Context, ProcessProposalRequest) (*TransactionProposalResponse, error)
}

// Peer is a ProposalProcessor with an address and an owning MSP
type Peer interface {
	ProposalProcessor
	MSPID() string
	URL() string
}

// Orderer accepts signed envelopes for ordering
type Orderer interface {
	URL() string
	SendBroadcast(ctx reqContext.Context, envelope *SignedEnvelope) (*common.Status, error)
}

// SigningIdentity creates proposals and transactions
type SigningIdentity interface {
	// Serialize returns the marshalled msp.SerializedIdentity
	Serialize() ([]byte, error)
	Sign(msg []byte) ([]byte, error)
}

// TransactionID is hex(sha256(nonce || creator))
type TransactionID string

// TransactionHeader is the per-submission metadata a proposal is built from
type TransactionHeader interface {
	TransactionID() TransactionID
	Creator() []byte
	Nonce() []byte
	ChannelID() string
}

// ChaincodeInvokeRequest names the chaincode function and its arguments.
// Lang defaults to golang.
type ChaincodeInvokeRequest struct {
	ChaincodeID  string
	Fcn          string
	Args         [][]byte
	TransientMap map[string][]byte
	Lang         pb.ChaincodeSpec_Type
	IsInit       bool
}

// TransactionProposal is an unsigned proposal and its transaction id
type TransactionProposal struct {
	TxnID TransactionID
	*pb.Proposal
}

// ProcessProposalRequest carries a signed proposal to an endorser
type ProcessProposalRequest struct {
	SignedProposal *pb.SignedProposal
}

// TransactionProposalResponse is one endorser's answer
type TransactionProposalResponse struct {
	Endorser string
	// Status is the endorser status, ChaincodeStatus the one set by chaincode
	Status          int32
	ChaincodeStatus int32
	*pb.ProposalResponse
}

// TransactionRequest gathers the endorsements a transaction is assembled from
type TransactionRequest struct {
	Proposal          *TransactionProposal
	ProposalResponses []*TransactionProposalResponse
}

// Transaction is an endorsed transaction ready for broadcast
type Transaction struct {
	Proposal    *TransactionProposal
	Transaction *pb.Transaction
}

// SignedEnvelope is the signed payload sent to an orderer
type SignedEnvelope struct {
	Payload   []byte
	Signature []byte
}

// TransactionResponse names the orderer that accepted a transaction
type TransactionResponse struct {
	Orderer string
}
